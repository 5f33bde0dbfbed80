package forecast

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/internal/history"
	"github.com/pnlync/asset-forecast-api/pkg/formulas"
)

// LookbackDays is the price history depth used for parameter estimation,
// roughly one year of trading days.
const LookbackDays = 252

// PriceSource provides daily price history, newest first.
type PriceSource interface {
	GetDailyPrices(symbol string, limit int) ([]history.DailyPrice, error)
}

// Output is a completed forecast run.
type Output struct {
	RunID       string             `json:"run_id"`
	Symbol      string             `json:"symbol"`
	Days        int                `json:"days"`
	Simulations int                `json:"simulations"`
	Seed        uint64             `json:"seed"`
	LastPrice   float64            `json:"last_price"`
	Volatility  float64            `json:"volatility"`
	Expected    []float64          `json:"expected_prices"`
	Paths       [][]float64        `json:"-"`
	Params      formulas.GBMParams `json:"-"`
}

// Service runs forecasts against the stored price history.
type Service struct {
	prices PriceSource
	engine *Engine
	log    zerolog.Logger
}

// NewService creates a forecast service.
func NewService(prices PriceSource, engine *Engine, log zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		engine: engine,
		log:    log.With().Str("component", "forecast_service").Logger(),
	}
}

// Forecast estimates GBM parameters for the symbol and simulates its price
// over the horizon. A zero seed picks a fresh one, so repeated calls differ;
// a fixed seed reproduces the run exactly.
func (s *Service) Forecast(symbol string, days, sims int, seed uint64) (*Output, error) {
	rows, err := s.prices.GetDailyPrices(symbol, LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no price history for %s: %w", symbol, domain.ErrDataUnavailable)
	}

	// Rows come newest first; the estimator wants ascending dates.
	prices := make([]float64, len(rows))
	for i, row := range rows {
		prices[len(rows)-1-i] = row.Close
	}

	params, err := formulas.EstimateGBM(prices, formulas.DefaultSigmaWindow)
	if err != nil {
		return nil, fmt.Errorf("estimating GBM parameters for %s: %w", symbol, err)
	}

	if seed == 0 {
		seed = rand.Uint64()
	}

	result, err := s.engine.Simulate(params, days, sims, rand.NewPCG(seed, seed))
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	s.log.Info().
		Str("run_id", runID).
		Str("symbol", symbol).
		Int("days", days).
		Int("simulations", sims).
		Float64("last_price", params.LastPrice).
		Float64("volatility", params.Volatility).
		Msg("Forecast complete")

	return &Output{
		RunID:       runID,
		Symbol:      symbol,
		Days:        days,
		Simulations: sims,
		Seed:        seed,
		LastPrice:   params.LastPrice,
		Volatility:  params.Volatility,
		Expected:    result.Expected,
		Paths:       result.Paths,
		Params:      params,
	}, nil
}
