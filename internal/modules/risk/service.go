package risk

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/domain"
	"github.com/pnlync/asset-forecast-api/internal/history"
)

// LookbackDays is the price history depth used for estimation, roughly one
// year of trading days.
const LookbackDays = 252

// PriceSource provides daily price history, newest first.
type PriceSource interface {
	GetDailyPrices(symbol string, limit int) ([]history.DailyPrice, error)
}

// Output is a completed VaR run.
type Output struct {
	RunID          string             `json:"run_id"`
	Symbols        []string           `json:"symbols"`
	Seed           uint64             `json:"seed"`
	InitialValue   float64            `json:"initial_value"`
	Days           int                `json:"days"`
	Simulations    int                `json:"simulations"`
	VaR            map[string]float64 `json:"var"` // "95%" -> loss amount
	ExpectedFinal  float64            `json:"expected_final_value"`
	PnL            []float64          `json:"-"`
	PortfolioPaths [][]float64        `json:"-"`
}

// Service runs portfolio VaR computations against the stored price history.
type Service struct {
	prices PriceSource
	engine *Engine
	log    zerolog.Logger
}

// NewService creates a risk service.
func NewService(prices PriceSource, engine *Engine, log zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		engine: engine,
		log:    log.With().Str("component", "risk_service").Logger(),
	}
}

// ComputeVaR loads and aligns the price histories for the requested portfolio
// and runs the correlated simulation. Interior history gaps are
// forward-filled per symbol; dates still incomplete across symbols are
// dropped before estimation. Any symbol with no history at all aborts the
// request before simulation work begins.
func (s *Service) ComputeVaR(req VaRRequest, seed uint64) (*Output, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]history.DailyPrice, len(req.Symbols))
	for _, symbol := range req.Symbols {
		rows, err := s.prices.GetDailyPrices(symbol, LookbackDays)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("no price history for %s: %w", symbol, domain.ErrDataUnavailable)
		}
		bySymbol[symbol] = rows
	}

	series := AlignSeries(bySymbol).ForwardFill().DropIncompleteRows()

	if seed == 0 {
		seed = rand.Uint64()
	}

	result, err := s.engine.Run(series, req, rand.NewPCG(seed, seed))
	if err != nil {
		return nil, err
	}

	varByLabel := make(map[string]float64, len(result.VaR))
	for level, amount := range result.VaR {
		varByLabel[fmt.Sprintf("%g%%", level*100)] = amount
	}

	var expectedFinal float64
	for _, v := range result.PortfolioPaths[req.Days] {
		expectedFinal += v
	}
	expectedFinal /= float64(req.Simulations)

	runID := uuid.New().String()
	s.log.Info().
		Str("run_id", runID).
		Strs("symbols", req.Symbols).
		Int("days", req.Days).
		Int("simulations", req.Simulations).
		Float64("portfolio_value", req.PortfolioValue).
		Int("aligned_dates", len(series.Dates)).
		Msg("VaR computation complete")

	return &Output{
		RunID:          runID,
		Symbols:        req.Symbols,
		Seed:           seed,
		InitialValue:   result.InitialValue,
		Days:           req.Days,
		Simulations:    req.Simulations,
		VaR:            varByLabel,
		ExpectedFinal:  expectedFinal,
		PnL:            result.PnL,
		PortfolioPaths: result.PortfolioPaths,
	}, nil
}
