package corpus

import (
	"time"

	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
)

// Store is the durable-corpus contract for this service.
type Store interface {
	Load() (*domcorpus.Corpus, error)
	Upsert(records ...domcorpus.Record) (*domcorpus.Corpus, error)
	ModTime() (time.Time, error)
	Path() string
}

// Invalidator drops derived caches when the corpus content changes.
type Invalidator interface {
	Invalidate()
}
