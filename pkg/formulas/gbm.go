// Package formulas provides the pure statistical building blocks shared by the
// forecast and VaR engines: log-return derivation, GBM parameter estimation and
// empirical quantile extraction.
package formulas

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pnlync/asset-forecast-api/internal/domain"
)

// DefaultSigmaWindow is the number of most recent log-return observations used
// for the volatility and covariance estimates.
const DefaultSigmaWindow = 30

// GBMParams holds the daily GBM parameters estimated from a price history.
//
// Drift carries the Itô half-variance correction on top of the full-history
// mean log-return. The simulation step subtracts the same half-variance again,
// so the net drift applied to paths equals the plain mean log-return.
type GBMParams struct {
	LastPrice  float64
	Drift      float64 // mean(log-returns) + variance/2
	Volatility float64 // windowed sample standard deviation (divisor n-1)
	Variance   float64 // Volatility squared
}

// LogReturns derives the log-return series from an ascending price series.
// Element i is ln(prices[i+1] / prices[i]).
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("need at least 2 prices, got %d: %w", len(prices), domain.ErrDataUnavailable)
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			return nil, fmt.Errorf("non-positive price at index %d: %w", i, domain.ErrInvalidParameters)
		}
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}

	return returns, nil
}

// EstimateGBM estimates daily GBM parameters from an ascending price series.
// Volatility uses the most recent `window` log-returns; drift uses the full
// history. The series must contain more observations than the window.
func EstimateGBM(prices []float64, window int) (GBMParams, error) {
	if window < 2 {
		return GBMParams{}, fmt.Errorf("sigma window must be >= 2, got %d: %w", window, domain.ErrInvalidParameters)
	}

	returns, err := LogReturns(prices)
	if err != nil {
		return GBMParams{}, err
	}

	if len(returns) < window {
		return GBMParams{}, fmt.Errorf("have %d log-returns, window needs %d: %w",
			len(returns), window, domain.ErrInsufficientHistory)
	}

	recent := returns[len(returns)-window:]
	sigma := stat.StdDev(recent, nil)
	variance := sigma * sigma

	return GBMParams{
		LastPrice:  prices[len(prices)-1],
		Drift:      stat.Mean(returns, nil) + variance/2,
		Volatility: sigma,
		Variance:   variance,
	}, nil
}

// VaRFromPnL extracts the Value at Risk at the given confidence level from a
// simulated PnL distribution. VaR(c) is the negated (1-c) empirical quantile
// of the PnL vector: the order statistics are interpolated linearly at rank
// (1-c)*(n-1), so an n-point distribution spans ranks 0 through n-1 and the
// quantile of 11 evenly spaced points lands exactly on the grid.
func VaRFromPnL(pnl []float64, confidence float64) (float64, error) {
	if len(pnl) == 0 {
		return 0, fmt.Errorf("empty PnL distribution: %w", domain.ErrInvalidParameters)
	}
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("confidence level %v outside (0,1): %w", confidence, domain.ErrInvalidParameters)
	}

	sorted := make([]float64, len(pnl))
	copy(sorted, pnl)
	sort.Float64s(sorted)

	rank := (1 - confidence) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	q := sorted[lo]
	if frac := rank - float64(lo); frac > 0 {
		q += frac * (sorted[lo+1] - sorted[lo])
	}

	return -q, nil
}
