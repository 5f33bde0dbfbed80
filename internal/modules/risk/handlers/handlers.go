// Package handlers provides HTTP handlers for portfolio VaR operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/internal/modules/risk"
)

const (
	defaultDays        = 7
	defaultSimulations = 10000
)

var defaultConfidenceLevels = []float64{0.95, 0.99}

// Handler handles risk HTTP requests
type Handler struct {
	svc *risk.Service
	log zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(svc *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "risk").Logger(),
	}
}

// varRequestBody is the JSON body for POST /api/risk/var
type varRequestBody struct {
	Symbols          []string  `json:"symbols"`
	Weights          []float64 `json:"weights"`
	PortfolioValue   float64   `json:"portfolio_value"`
	Days             int       `json:"days"`
	Simulations      int       `json:"simulations"`
	ConfidenceLevels []float64 `json:"confidence_levels"`
	Seed             uint64    `json:"seed"`
}

// HandleComputeVaR handles POST /api/risk/var
func (h *Handler) HandleComputeVaR(w http.ResponseWriter, r *http.Request) {
	var body varRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if body.Days == 0 {
		body.Days = defaultDays
	}
	if body.Simulations == 0 {
		body.Simulations = defaultSimulations
	}
	if len(body.ConfidenceLevels) == 0 {
		body.ConfidenceLevels = defaultConfidenceLevels
	}

	// Equal weights when omitted.
	if len(body.Weights) == 0 && len(body.Symbols) > 0 {
		body.Weights = make([]float64, len(body.Symbols))
		for i := range body.Weights {
			body.Weights[i] = 1.0 / float64(len(body.Symbols))
		}
	}

	out, err := h.svc.ComputeVaR(risk.VaRRequest{
		Symbols:          body.Symbols,
		Weights:          body.Weights,
		PortfolioValue:   body.PortfolioValue,
		Days:             body.Days,
		Simulations:      body.Simulations,
		ConfidenceLevels: body.ConfidenceLevels,
	}, body.Seed)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": out,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameters):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrDataUnavailable):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientHistory),
		errors.Is(err, domain.ErrCorrelationFailed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg("VaR computation failed")
		http.Error(w, "VaR computation failed", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
