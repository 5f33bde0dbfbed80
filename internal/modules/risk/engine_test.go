package risk

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pnlync/asset-forecast-api/internal/calculations"
	"github.com/pnlync/asset-forecast-api/internal/database"
	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/internal/modules/forecast"
	"github.com/pnlync/asset-forecast-api/pkg/formulas"
)

// syntheticPrices builds a deterministic GBM-ish price series.
func syntheticPrices(seed uint64, n int, start, mu, sigma float64) []float64 {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed)}
	prices := make([]float64, n)
	prices[0] = start
	for i := 1; i < n; i++ {
		prices[i] = prices[i-1] * math.Exp(mu+sigma*normal.Rand())
	}
	return prices
}

func seriesFor(prices map[string][]float64) TimeSeries {
	ts := TimeSeries{Data: prices}
	var n int
	for _, p := range prices {
		n = len(p)
		break
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts.Dates = make([]string, n)
	for i := range ts.Dates {
		ts.Dates[i] = base.AddDate(0, 0, i).Format("2006-01-02")
	}
	return ts
}

func threeAssetSeries() TimeSeries {
	return seriesFor(map[string][]float64{
		"AAA": syntheticPrices(1, 120, 100, 0.0005, 0.02),
		"BBB": syntheticPrices(2, 120, 250, 0.0002, 0.015),
		"CCC": syntheticPrices(3, 120, 40, -0.0001, 0.03),
	})
}

func baseRequest() VaRRequest {
	return VaRRequest{
		Symbols:          []string{"AAA", "BBB", "CCC"},
		Weights:          []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		PortfolioValue:   1_000_000,
		Days:             7,
		Simulations:      5000,
		ConfidenceLevels: []float64{0.95, 0.99},
	}
}

func TestRunShapesAndDayZero(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	res, err := engine.Run(threeAssetSeries(), baseRequest(), rand.NewPCG(7, 7))
	require.NoError(t, err)

	require.Len(t, res.PortfolioPaths, 8)
	for d, day := range res.PortfolioPaths {
		require.Lenf(t, day, 5000, "day %d", d)
	}
	require.Len(t, res.PnL, 5000)

	// Day 0 equals the portfolio value exactly, no randomness applied.
	for _, v := range res.PortfolioPaths[0] {
		assert.Equal(t, 1_000_000.0, v)
	}

	// PnL is final value minus initial value.
	for i, v := range res.PortfolioPaths[7] {
		assert.InDelta(t, v-1_000_000, res.PnL[i], 1e-9)
	}

	// Shares were sized as weight * value / last price.
	for i := range res.Shares {
		assert.InDelta(t, (1.0/3)*1_000_000/res.LastPrices[i], res.Shares[i], 1e-9)
	}
}

func TestRunVaRMonotonicInConfidence(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	req := baseRequest()
	req.ConfidenceLevels = []float64{0.90, 0.95, 0.99}

	res, err := engine.Run(threeAssetSeries(), req, rand.NewPCG(11, 13))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.VaR[0.95], res.VaR[0.90])
	assert.GreaterOrEqual(t, res.VaR[0.99], res.VaR[0.95])
}

func TestRunDeterministicWithSeed(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	req := baseRequest()
	req.Simulations = 500

	a, err := engine.Run(threeAssetSeries(), req, rand.NewPCG(5, 6))
	require.NoError(t, err)
	b, err := engine.Run(threeAssetSeries(), req, rand.NewPCG(5, 6))
	require.NoError(t, err)

	assert.Equal(t, a.PnL, b.PnL)
	assert.Equal(t, a.VaR, b.VaR)
}

// A one-asset portfolio with weight 1.0 must reproduce the single-asset
// forecast engine's paths scaled by the share count, given matched draws.
func TestRunSingleAssetReduction(t *testing.T) {
	prices := syntheticPrices(21, 120, 100, 0.0005, 0.02)
	series := seriesFor(map[string][]float64{"AAA": prices})

	req := VaRRequest{
		Symbols:          []string{"AAA"},
		Weights:          []float64{1.0},
		PortfolioValue:   500_000,
		Days:             5,
		Simulations:      2000,
		ConfidenceLevels: []float64{0.95},
	}

	riskEngine := NewEngine(zerolog.Nop())
	res, err := riskEngine.Run(series, req, rand.NewPCG(77, 77))
	require.NoError(t, err)

	params, err := formulas.EstimateGBM(prices, formulas.DefaultSigmaWindow)
	require.NoError(t, err)

	fcEngine := forecast.NewEngine()
	fc, err := fcEngine.Simulate(params, 5, 2000, rand.NewPCG(77, 77))
	require.NoError(t, err)

	shares := 500_000 / prices[len(prices)-1]
	for d := 0; d <= 5; d++ {
		var fcMean float64
		for _, p := range fc.Paths[d] {
			fcMean += p
		}
		fcMean /= 2000

		var portMean float64
		for _, v := range res.PortfolioPaths[d] {
			portMean += v
		}
		portMean /= 2000

		assert.InEpsilonf(t, fcMean*shares, portMean, 1e-9, "day %d", d)
	}
}

// With a diagonal covariance matrix the correlated-shock update degenerates to
// independent per-asset GBM, so portfolio statistics must match the sum of
// independent single-asset forecasts within Monte Carlo tolerance.
func TestRunUncorrelatedAssetsMatchIndependentForecasts(t *testing.T) {
	prices := map[string][]float64{
		"AAA": syntheticPrices(31, 150, 100, 0.0004, 0.02),
		"BBB": syntheticPrices(37, 150, 80, 0.0001, 0.018),
		"CCC": syntheticPrices(41, 150, 60, 0.0002, 0.025),
	}
	series := seriesFor(prices)

	req := VaRRequest{
		Symbols:          []string{"AAA", "BBB", "CCC"},
		Weights:          []float64{0.4, 0.35, 0.25},
		PortfolioValue:   900_000,
		Days:             5,
		Simulations:      20000,
		ConfidenceLevels: []float64{0.95},
	}

	riskEngine := NewEngine(zerolog.Nop())
	res, err := riskEngine.Run(series, req, rand.NewPCG(101, 102))
	require.NoError(t, err)

	// Independent single-asset expectation of the final portfolio value.
	fcEngine := forecast.NewEngine()
	var wantFinal float64
	for i, symbol := range req.Symbols {
		params, err := formulas.EstimateGBM(prices[symbol], formulas.DefaultSigmaWindow)
		require.NoError(t, err)

		fc, err := fcEngine.Simulate(params, 5, 20000, rand.NewPCG(uint64(200+i), uint64(300+i)))
		require.NoError(t, err)

		shares := req.Weights[i] * req.PortfolioValue / params.LastPrice
		wantFinal += shares * fc.Expected[5]
	}

	var gotFinal float64
	for _, v := range res.PortfolioPaths[5] {
		gotFinal += v
	}
	gotFinal /= float64(req.Simulations)

	// The series are pseudo-random, not exactly orthogonal, so allow a
	// combined sampling + estimation tolerance of 1%.
	assert.InEpsilon(t, wantFinal, gotFinal, 0.01)
}

// A covariance entry cached before new prices arrive must not be reused once
// the aligned series extends to a newer date.
func TestRunCachedCovarianceTracksNewestDate(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "risk-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := calculations.NewCache(db.Conn())
	require.NoError(t, cache.EnsureSchema())

	full := map[string][]float64{
		"AAA": syntheticPrices(55, 120, 100, 0.0004, 0.02),
		"BBB": syntheticPrices(56, 120, 70, 0.0002, 0.025),
	}
	stale := map[string][]float64{
		"AAA": full["AAA"][:119],
		"BBB": full["BBB"][:119],
	}

	req := baseRequest()
	req.Symbols = []string{"AAA", "BBB"}
	req.Weights = []float64{0.5, 0.5}
	req.Simulations = 500

	cachedEngine := NewEngine(zerolog.Nop())
	cachedEngine.SetCache(cache)

	// Prime the cache on the shorter series, then run after "new prices".
	_, err = cachedEngine.Run(seriesFor(stale), req, rand.NewPCG(9, 9))
	require.NoError(t, err)

	got, err := cachedEngine.Run(seriesFor(full), req, rand.NewPCG(9, 9))
	require.NoError(t, err)

	plainEngine := NewEngine(zerolog.Nop())
	want, err := plainEngine.Run(seriesFor(full), req, rand.NewPCG(9, 9))
	require.NoError(t, err)

	assert.Equal(t, want.PnL, got.PnL)
	assert.Equal(t, want.VaR, got.VaR)
}

func TestRunValidation(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	series := threeAssetSeries()

	mutate := func(f func(*VaRRequest)) VaRRequest {
		req := baseRequest()
		f(&req)
		return req
	}

	tests := []struct {
		name string
		req  VaRRequest
	}{
		{"no symbols", mutate(func(r *VaRRequest) { r.Symbols = nil; r.Weights = nil })},
		{"weight count mismatch", mutate(func(r *VaRRequest) { r.Weights = []float64{0.5, 0.5} })},
		{"weights do not sum to one", mutate(func(r *VaRRequest) { r.Weights = []float64{0.5, 0.4, 0.2} })},
		{"zero portfolio value", mutate(func(r *VaRRequest) { r.PortfolioValue = 0 })},
		{"zero days", mutate(func(r *VaRRequest) { r.Days = 0 })},
		{"zero simulations", mutate(func(r *VaRRequest) { r.Simulations = 0 })},
		{"no confidence levels", mutate(func(r *VaRRequest) { r.ConfidenceLevels = nil })},
		{"confidence level out of range", mutate(func(r *VaRRequest) { r.ConfidenceLevels = []float64{1.5} })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Run(series, tt.req, rand.NewPCG(1, 1))
			assert.ErrorIs(t, err, domain.ErrInvalidParameters)
		})
	}
}

func TestRunInsufficientHistory(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	series := seriesFor(map[string][]float64{
		"AAA": syntheticPrices(1, 10, 100, 0, 0.02),
		"BBB": syntheticPrices(2, 10, 50, 0, 0.02),
	})

	req := baseRequest()
	req.Symbols = []string{"AAA", "BBB"}
	req.Weights = []float64{0.5, 0.5}

	_, err := engine.Run(series, req, rand.NewPCG(1, 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestRunMissingSymbol(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	series := seriesFor(map[string][]float64{
		"AAA": syntheticPrices(1, 120, 100, 0, 0.02),
	})

	req := baseRequest()
	req.Symbols = []string{"AAA", "ZZZ", "CCC"}

	_, err := engine.Run(series, req, rand.NewPCG(1, 1))
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}
