// Package forecast implements the single-asset GBM Monte Carlo forecast engine.
package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/pkg/formulas"
)

// Result holds the simulated paths and the expected-price trajectory.
//
// Paths is time-major: Paths[t][i] is simulation i's price on day t. Day 0 is
// the last observed price for every simulation.
type Result struct {
	Paths    [][]float64
	Expected []float64 // arithmetic mean across simulations, per day
}

// Engine simulates independent GBM price paths for a single instrument.
type Engine struct{}

// NewEngine creates a forecast engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Simulate runs `sims` independent GBM paths over `days` steps. The random
// source is caller-provided so a fixed seed reproduces the full path matrix.
//
// Each step applies price * exp(drift - variance/2 + volatility*Z). The
// half-variance subtraction undoes the Itô term the estimator added, so the
// net drift is the plain mean log-return.
func (e *Engine) Simulate(params formulas.GBMParams, days, sims int, src rand.Source) (*Result, error) {
	if days < 1 {
		return nil, fmt.Errorf("horizon must be >= 1 day, got %d: %w", days, domain.ErrInvalidParameters)
	}
	if sims < 1 {
		return nil, fmt.Errorf("simulation count must be >= 1, got %d: %w", sims, domain.ErrInvalidParameters)
	}
	if params.LastPrice <= 0 {
		return nil, fmt.Errorf("last price %v must be positive: %w", params.LastPrice, domain.ErrInvalidParameters)
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required: %w", domain.ErrInvalidParameters)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	drift := params.Drift - params.Variance/2

	paths := make([][]float64, days+1)
	paths[0] = make([]float64, sims)
	for i := range paths[0] {
		paths[0][i] = params.LastPrice
	}

	for t := 1; t <= days; t++ {
		paths[t] = make([]float64, sims)
		for i := 0; i < sims; i++ {
			shock := params.Volatility * normal.Rand()
			paths[t][i] = paths[t-1][i] * math.Exp(drift+shock)
		}
	}

	expected := make([]float64, days+1)
	for t := 0; t <= days; t++ {
		var sum float64
		for _, p := range paths[t] {
			sum += p
		}
		expected[t] = sum / float64(sims)
	}

	return &Result{Paths: paths, Expected: expected}, nil
}
