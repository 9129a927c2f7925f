package atrium

import (
	"fmt"
	"time"

	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
	"github.com/atriumhq/atrium/internal/domain/search/result"
)

// Result is a single ranked search hit.
type Result struct {
	// ID is the corpus record identifier, derived from the image path.
	ID string
	// Similarity is the raw cosine similarity in [-1, 1].
	Similarity float64
	// Confidence is the display score in [0, 1].
	Confidence float64
	// Description is the generated visual-content summary.
	Description string
	// Tags are the record's feature labels.
	Tags []string
}

// SearchInfo describes how a search was answered. An empty result list
// with NoMatches set is a valid answer, not an error.
type SearchInfo struct {
	CandidateCount int
	MatchCount     int
	NoMatches      bool
	CacheHit       bool
	Truncated      bool
	Elapsed        time.Duration
}

// FileAttributes holds file-level metadata for an indexed image.
type FileAttributes struct {
	SizeBytes   int64
	Width       int
	Height      int
	ProcessedAt time.Time
}

// Record is one indexed image.
type Record struct {
	ID             string
	Embedding      []float32
	Description    string
	Tags           []string
	FileAttributes FileAttributes
}

// Stats reports corpus composition. Invalid records are retained in the
// corpus file but excluded from ranking.
type Stats struct {
	TotalRecords   int
	ValidRecords   int
	InvalidRecords int
	Dimensions     int
	GeneratedAt    time.Time
	LoadedAt       time.Time
	Path           string
}

// SearchStats summarizes searches served since Open.
type SearchStats struct {
	Searches   uint64
	CacheHits  uint64
	NoMatches  uint64
	Failures   uint64
	AvgLatency time.Duration
}

// HealthReport aggregates component health check outcomes.
type HealthReport struct {
	Status string
	Checks map[string]string
}

func resultsFromInternal(results []result.Result) []Result {
	out := make([]Result, len(results))
	for i := range results {
		r := &results[i]
		out[i] = Result{
			ID:          r.ID(),
			Similarity:  r.Similarity(),
			Confidence:  r.Confidence(),
			Description: r.Description(),
			Tags:        r.Tags(),
		}
	}
	return out
}

func recordToInternal(rec Record, dim int) (domcorpus.Record, error) {
	r, err := domcorpus.New(rec.ID, rec.Embedding, rec.Description, rec.Tags, domcorpus.Attributes{
		SizeBytes:   rec.FileAttributes.SizeBytes,
		Width:       rec.FileAttributes.Width,
		Height:      rec.FileAttributes.Height,
		ProcessedAt: rec.FileAttributes.ProcessedAt,
	}, dim)
	if err != nil {
		return domcorpus.Record{}, fmt.Errorf("build record: %w", err)
	}
	return r, nil
}

func recordFromInternal(rec domcorpus.Record) Record {
	attrs := rec.Attrs()
	return Record{
		ID:          rec.ID(),
		Embedding:   rec.Embedding(),
		Description: rec.Description(),
		Tags:        rec.Tags(),
		FileAttributes: FileAttributes{
			SizeBytes:   attrs.SizeBytes,
			Width:       attrs.Width,
			Height:      attrs.Height,
			ProcessedAt: attrs.ProcessedAt,
		},
	}
}
