package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pnlync/asset-forecast-api/internal/domain"
)

// CorrelationModel holds the multi-asset GBM parameters: per-asset drift and
// variance, the windowed sample covariance matrix and its Cholesky factor.
type CorrelationModel struct {
	Symbols   []string
	Drift     []float64 // mean(full-history returns) + windowed variance/2, per asset
	Variances []float64 // covariance diagonal
	Cov       *mat.SymDense

	chol mat.Cholesky
}

// BuildCorrelationModel estimates the covariance matrix over the most recent
// `window` observations of each symbol's log-return series and factorizes it.
//
// The covariance of n assets estimated from w observations is only
// positive-definite when n <= w-2, so the asset count is checked up front and
// violations surface as ErrCorrelationFailed before any decomposition work.
func BuildCorrelationModel(returns map[string][]float64, symbols []string, window int) (*CorrelationModel, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided: %w", domain.ErrInvalidParameters)
	}
	if window < 2 {
		return nil, fmt.Errorf("sigma window must be >= 2, got %d: %w", window, domain.ErrInvalidParameters)
	}
	if len(symbols) > window-2 {
		return nil, fmt.Errorf("%d assets exceed the window capacity (need assets <= window-2 = %d): %w",
			len(symbols), window-2, domain.ErrCorrelationFailed)
	}

	// Validate return series and slice the estimation window.
	windowed := make([][]float64, len(symbols))
	full := make([][]float64, len(symbols))
	for i, symbol := range symbols {
		r, ok := returns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing returns for %s: %w", symbol, domain.ErrDataUnavailable)
		}
		if len(r) < window {
			return nil, fmt.Errorf("%s has %d log-returns, window needs %d: %w",
				symbol, len(r), window, domain.ErrInsufficientHistory)
		}
		if i > 0 && len(r) != len(full[0]) {
			return nil, fmt.Errorf("return series lengths differ (%s has %d, %s has %d): %w",
				symbols[0], len(full[0]), symbol, len(r), domain.ErrInvalidParameters)
		}
		full[i] = r
		windowed[i] = r[len(r)-window:]
	}

	n := len(symbols)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, stat.Covariance(windowed[i], windowed[j], nil))
		}
	}

	drift := make([]float64, n)
	variances := make([]float64, n)
	for i := 0; i < n; i++ {
		variances[i] = cov.At(i, i)
		drift[i] = stat.Mean(full[i], nil) + variances[i]/2
	}

	model := &CorrelationModel{
		Symbols:   symbols,
		Drift:     drift,
		Variances: variances,
		Cov:       cov,
	}

	if ok := model.chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("Cholesky factorization failed for %d assets (collinear or duplicate series): %w",
			n, domain.ErrCorrelationFailed)
	}

	return model, nil
}

// NewCorrelationModelFromCov rebuilds a model from a previously computed
// covariance matrix and drift vector (e.g. a cache hit). The Cholesky factor
// is re-derived, so a matrix that stopped being positive-definite still fails.
func NewCorrelationModelFromCov(symbols []string, drift []float64, cov *mat.SymDense) (*CorrelationModel, error) {
	n := len(symbols)
	if cov.SymmetricDim() != n || len(drift) != n {
		return nil, fmt.Errorf("covariance/drift dimensions do not match %d symbols: %w", n, domain.ErrInvalidParameters)
	}

	variances := make([]float64, n)
	for i := 0; i < n; i++ {
		variances[i] = cov.At(i, i)
	}

	model := &CorrelationModel{
		Symbols:   symbols,
		Drift:     drift,
		Variances: variances,
		Cov:       cov,
	}

	if ok := model.chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("cached covariance matrix is not positive-definite: %w", domain.ErrCorrelationFailed)
	}

	return model, nil
}

// L returns the lower-triangular Cholesky factor, L·Lᵀ = Cov.
func (m *CorrelationModel) L() *mat.TriDense {
	var l mat.TriDense
	m.chol.LTo(&l)
	return &l
}
