// Package domain contains shared types and error taxonomy for the risk engines.
package domain

import "errors"

// Sentinel errors for the simulation pipeline. Callers classify failures with
// errors.Is; lower layers wrap these with context via fmt.Errorf and %w.
var (
	// ErrDataUnavailable indicates no usable price history exists for a
	// requested instrument. Fatal for the request, never retried internally.
	ErrDataUnavailable = errors.New("price data unavailable")

	// ErrInsufficientHistory indicates the available history is shorter than
	// the estimation window requires.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrCorrelationFailed indicates the return covariance matrix is not
	// positive-definite, so no Cholesky factor exists. Typically too many
	// assets for the estimation window, or collinear series.
	ErrCorrelationFailed = errors.New("covariance matrix not positive-definite")

	// ErrInvalidParameters indicates simulation inputs failed validation
	// (non-positive horizon or simulation count, bad weights, and so on).
	ErrInvalidParameters = errors.New("invalid simulation parameters")
)
