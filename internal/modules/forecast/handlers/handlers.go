// Package handlers provides HTTP handlers for forecast operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/internal/modules/charts"
	"github.com/pnlync/asset-forecast-api/internal/modules/forecast"
)

const (
	defaultDays        = 7
	defaultSimulations = 10000
)

// Handler handles forecast HTTP requests
type Handler struct {
	svc *forecast.Service
	log zerolog.Logger
}

// NewHandler creates a new forecast handler
func NewHandler(svc *forecast.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "forecast").Logger(),
	}
}

// HandleForecast handles GET /api/forecast/{symbol}
// Query params: days (default 7), simulations (default 10000), seed (default random)
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request, symbol string) {
	days, sims, seed, err := parseSimulationParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.svc.Forecast(symbol, days, sims, seed)
	if err != nil {
		h.writeError(w, symbol, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": out,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleForecastChart handles GET /api/forecast/{symbol}/chart
// Renders the expected-price trajectory as a PNG.
func (h *Handler) HandleForecastChart(w http.ResponseWriter, r *http.Request, symbol string) {
	days, sims, seed, err := parseSimulationParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.svc.Forecast(symbol, days, sims, seed)
	if err != nil {
		h.writeError(w, symbol, err)
		return
	}

	img, err := charts.RenderForecast(symbol, out.Expected)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to render forecast chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func parseSimulationParams(r *http.Request) (days, sims int, seed uint64, err error) {
	days = defaultDays
	sims = defaultSimulations

	q := r.URL.Query()
	if v := q.Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, 0, errors.New("invalid days parameter")
		}
	}
	if v := q.Get("simulations"); v != "" {
		sims, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, 0, errors.New("invalid simulations parameter")
		}
	}
	if v := q.Get("seed"); v != "" {
		seed, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, 0, 0, errors.New("invalid seed parameter")
		}
	}

	return days, sims, seed, nil
}

func (h *Handler) writeError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameters):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrDataUnavailable):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientHistory):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Forecast failed")
		http.Error(w, "Forecast failed", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
