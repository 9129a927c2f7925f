package atrium

import "github.com/atriumhq/atrium/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuery        = domain.ErrEmptyQuery
	ErrInvalidQuery      = domain.ErrInvalidQuery
	ErrRecordNotFound    = domain.ErrRecordNotFound
	ErrInvalidRecord     = domain.ErrInvalidRecord
	ErrCorpusLoad        = domain.ErrCorpusLoad
	ErrDimensionMismatch = domain.ErrDimensionMismatch
	ErrEmbeddingProvider = domain.ErrEmbeddingProvider
	ErrTimeout           = domain.ErrTimeout
)
