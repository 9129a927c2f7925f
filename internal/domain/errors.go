package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery signals an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidQuery signals a query that failed validation.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRecordNotFound signals a missing corpus record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidRecord signals a record that failed validation.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrCorpusLoad signals an unreadable or structurally invalid corpus store.
	ErrCorpusLoad = errors.New("corpus load failed")
	// ErrDimensionMismatch signals an embedding dimension skew between the
	// query vector and the corpus matrix. Fatal for serving: it means the
	// embedding provider version no longer matches the indexed corpus.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrTimeout signals that a request exceeded its latency budget.
	ErrTimeout = errors.New("request timed out")
)

// DimensionError wraps ErrDimensionMismatch with the expected and actual sizes.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(want, got int) error {
	return &DimensionError{Want: want, Got: got}
}
