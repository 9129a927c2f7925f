package search

import (
	"context"

	"github.com/atriumhq/atrium/internal/domain"
	domsearch "github.com/atriumhq/atrium/internal/domain/search"
	"github.com/atriumhq/atrium/internal/domain/search/result"
)

// IndexProvider yields the current ranking snapshot.
type IndexProvider interface {
	Index() *domsearch.Index
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ResultCache stores ranked result lists keyed by query fingerprint.
// Generation returns a token that Put requires back: a write whose token
// predates an invalidation is discarded instead of stored.
type ResultCache interface {
	Get(fingerprint string) ([]result.Result, bool)
	Put(fingerprint string, results []result.Result, generation uint64)
	Generation() uint64
}
