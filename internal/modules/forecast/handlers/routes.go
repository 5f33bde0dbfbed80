package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all forecast routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/forecast", func(r chi.Router) {
		r.Route("/{symbol}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				symbol := chi.URLParam(r, "symbol")
				h.HandleForecast(w, r, symbol)
			})
			r.Get("/chart", func(w http.ResponseWriter, r *http.Request) {
				symbol := chi.URLParam(r, "symbol")
				h.HandleForecastChart(w, r, symbol)
			})
		})
	})
}
