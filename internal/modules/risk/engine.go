// Package risk implements the multi-asset portfolio VaR engine: correlated
// GBM simulation via Cholesky-factored covariance, PnL aggregation and
// quantile-based risk extraction.
package risk

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pnlync/asset-forecast-api/internal/calculations"
	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/pkg/formulas"
)

const weightSumTolerance = 1e-6

// VaRRequest describes one portfolio VaR computation.
type VaRRequest struct {
	Symbols          []string
	Weights          []float64 // one per symbol, summing to 1
	PortfolioValue   float64
	Days             int
	Simulations      int
	ConfidenceLevels []float64 // each in (0,1)
	Window           int       // sigma window, 0 means formulas.DefaultSigmaWindow
}

// VaRResult holds the portfolio path matrix, the PnL distribution and the
// VaR estimate per confidence level.
//
// PortfolioPaths is time-major ([day][simulation]); the per-asset price state
// during simulation is simulation-major, matching the shock matrix layout.
type VaRResult struct {
	PortfolioPaths [][]float64
	PnL            []float64
	VaR            map[float64]float64
	InitialValue   float64
	LastPrices     []float64
	Shares         []float64
}

// Engine runs correlated multi-asset GBM simulations.
type Engine struct {
	log   zerolog.Logger
	cache *calculations.Cache
}

// NewEngine creates a VaR engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "var_engine").Logger()}
}

// SetCache enables covariance-matrix caching. Optional; without it the model
// is estimated fresh on every run.
func (e *Engine) SetCache(cache *calculations.Cache) {
	e.cache = cache
}

func validateRequest(req VaRRequest) error {
	if len(req.Symbols) == 0 {
		return fmt.Errorf("no symbols provided: %w", domain.ErrInvalidParameters)
	}
	if len(req.Weights) != len(req.Symbols) {
		return fmt.Errorf("%d weights for %d symbols: %w",
			len(req.Weights), len(req.Symbols), domain.ErrInvalidParameters)
	}

	var sum float64
	for _, w := range req.Weights {
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights sum to %v, expected 1: %w", sum, domain.ErrInvalidParameters)
	}

	if req.PortfolioValue <= 0 {
		return fmt.Errorf("portfolio value %v must be positive: %w", req.PortfolioValue, domain.ErrInvalidParameters)
	}
	if req.Days < 1 {
		return fmt.Errorf("horizon must be >= 1 day, got %d: %w", req.Days, domain.ErrInvalidParameters)
	}
	if req.Simulations < 1 {
		return fmt.Errorf("simulation count must be >= 1, got %d: %w", req.Simulations, domain.ErrInvalidParameters)
	}
	if len(req.ConfidenceLevels) == 0 {
		return fmt.Errorf("no confidence levels requested: %w", domain.ErrInvalidParameters)
	}
	for _, c := range req.ConfidenceLevels {
		if c <= 0 || c >= 1 {
			return fmt.Errorf("confidence level %v outside (0,1): %w", c, domain.ErrInvalidParameters)
		}
	}

	return nil
}

// Run simulates correlated GBM paths for the portfolio described by req over
// the aligned, gap-free price series and extracts VaR at each requested
// confidence level. The random source is caller-provided for reproducibility.
func (e *Engine) Run(series TimeSeries, req VaRRequest, src rand.Source) (*VaRResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required: %w", domain.ErrInvalidParameters)
	}

	window := req.Window
	if window <= 0 {
		window = formulas.DefaultSigmaWindow
	}

	nAssets := len(req.Symbols)

	// Last observed price and log-return series per asset.
	lastPrices := make([]float64, nAssets)
	returns := make(map[string][]float64, nAssets)
	for i, symbol := range req.Symbols {
		prices, ok := series.Data[symbol]
		if !ok || len(prices) == 0 {
			return nil, fmt.Errorf("no aligned prices for %s: %w", symbol, domain.ErrDataUnavailable)
		}
		lastPrices[i] = prices[len(prices)-1]

		r, err := formulas.LogReturns(prices)
		if err != nil {
			return nil, fmt.Errorf("log-returns for %s: %w", symbol, err)
		}
		returns[symbol] = r
	}

	var asOf string
	if len(series.Dates) > 0 {
		asOf = series.Dates[len(series.Dates)-1]
	}

	model, err := e.buildModel(returns, req.Symbols, window, asOf)
	if err != nil {
		return nil, err
	}

	// Initial share count per asset: weight * value / last price.
	shares := make([]float64, nAssets)
	for i := range shares {
		shares[i] = req.Weights[i] * req.PortfolioValue / lastPrices[i]
	}

	e.log.Debug().
		Int("assets", nAssets).
		Int("days", req.Days).
		Int("simulations", req.Simulations).
		Int("window", window).
		Msg("Running portfolio simulation")

	paths := e.simulate(model, lastPrices, shares, req, src)

	// PnL over the horizon: final portfolio value minus initial value.
	final := paths[req.Days]
	pnl := make([]float64, req.Simulations)
	for i, v := range final {
		pnl[i] = v - req.PortfolioValue
	}

	varByLevel := make(map[float64]float64, len(req.ConfidenceLevels))
	for _, c := range req.ConfidenceLevels {
		v, err := formulas.VaRFromPnL(pnl, c)
		if err != nil {
			return nil, err
		}
		varByLevel[c] = v
	}

	return &VaRResult{
		PortfolioPaths: paths,
		PnL:            pnl,
		VaR:            varByLevel,
		InitialValue:   req.PortfolioValue,
		LastPrices:     lastPrices,
		Shares:         shares,
	}, nil
}

// cachedCovariance is the cache payload for a correlation model. The Cholesky
// factor is re-derived on load, never persisted.
type cachedCovariance struct {
	Symbols []string    `msgpack:"symbols"`
	Drift   []float64   `msgpack:"drift"`
	Cov     [][]float64 `msgpack:"cov"`
}

// buildModel returns the correlation model for the symbols, consulting the
// covariance cache when one is configured. The cache key includes the newest
// aligned date so a fresh price sync invalidates prior entries.
func (e *Engine) buildModel(returns map[string][]float64, symbols []string, window int, asOf string) (*CorrelationModel, error) {
	if e.cache == nil {
		return BuildCorrelationModel(returns, symbols, window)
	}

	key := calculations.HashSymbols(symbols, window, asOf)

	var cached cachedCovariance
	hit, err := e.cache.Get("covariance", key, &cached)
	if err != nil {
		e.log.Warn().Err(err).Msg("Covariance cache read failed")
	}
	if hit && len(cached.Symbols) == len(symbols) {
		match := true
		for i := range symbols {
			if cached.Symbols[i] != symbols[i] {
				match = false
				break
			}
		}
		if match {
			n := len(symbols)
			cov := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					cov.SetSym(i, j, cached.Cov[i][j])
				}
			}
			if model, err := NewCorrelationModelFromCov(symbols, cached.Drift, cov); err == nil {
				e.log.Debug().Str("key", key[:8]).Msg("Using cached covariance matrix")
				return model, nil
			}
		}
	}

	model, err := BuildCorrelationModel(returns, symbols, window)
	if err != nil {
		return nil, err
	}

	n := len(symbols)
	covRows := make([][]float64, n)
	for i := 0; i < n; i++ {
		covRows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			covRows[i][j] = model.Cov.At(i, j)
		}
	}
	payload := cachedCovariance{Symbols: symbols, Drift: model.Drift, Cov: covRows}
	if err := e.cache.Store("covariance", key, payload, calculations.TTLCovariance); err != nil {
		e.log.Warn().Err(err).Msg("Failed to cache covariance matrix")
	}

	return model, nil
}

// simulate advances all simulations one day at a time. Asset prices are held
// in a simulations × assets matrix; each step draws an independent standard
// normal matrix Z, correlates it as Z·Lᵀ and applies the multiplicative GBM
// update exp(drift - variance/2 + shock) per asset.
func (e *Engine) simulate(model *CorrelationModel, lastPrices, shares []float64, req VaRRequest, src rand.Source) [][]float64 {
	nSims := req.Simulations
	nAssets := len(model.Symbols)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	// Net drift per asset: the half-variance term cancels the Itô correction
	// the estimator added.
	drift := make([]float64, nAssets)
	for i := range drift {
		drift[i] = model.Drift[i] - model.Variances[i]/2
	}

	prices := mat.NewDense(nSims, nAssets, nil)
	for i := 0; i < nSims; i++ {
		for j := 0; j < nAssets; j++ {
			prices.Set(i, j, lastPrices[j])
		}
	}

	paths := make([][]float64, req.Days+1)
	paths[0] = make([]float64, nSims)
	for i := range paths[0] {
		paths[0][i] = req.PortfolioValue
	}

	l := model.L()
	z := mat.NewDense(nSims, nAssets, nil)
	var shocks mat.Dense

	for t := 1; t <= req.Days; t++ {
		for i := 0; i < nSims; i++ {
			for j := 0; j < nAssets; j++ {
				z.Set(i, j, normal.Rand())
			}
		}
		shocks.Mul(z, l.T())

		paths[t] = make([]float64, nSims)
		for i := 0; i < nSims; i++ {
			var value float64
			for j := 0; j < nAssets; j++ {
				p := prices.At(i, j) * math.Exp(drift[j]+shocks.At(i, j))
				prices.Set(i, j, p)
				value += p * shares[j]
			}
			paths[t][i] = value
		}
	}

	return paths
}
