// Package result defines ranked search hits and per-search diagnostics.
package result

import "time"

// Result is a single ranked hit. The id is a lookup key into the corpus, not
// ownership: the referenced record stays with the corpus store.
type Result struct {
	id          string
	similarity  float64
	confidence  float64
	description string
	tags        []string
}

// New creates a search result.
func New(id string, similarity, confidence float64, description string, tags []string) Result {
	return Result{
		id:          id,
		similarity:  similarity,
		confidence:  confidence,
		description: description,
		tags:        tags,
	}
}

// ID returns the corpus record identifier.
func (r *Result) ID() string { return r.id }

// Similarity returns the raw cosine similarity in [-1, 1].
func (r *Result) Similarity() float64 { return r.similarity }

// Confidence returns the display score in [0, 1].
func (r *Result) Confidence() float64 { return r.confidence }

// Description returns the record's visual-content summary.
func (r *Result) Description() string { return r.description }

// Tags returns the record's feature labels.
func (r *Result) Tags() []string { return r.tags }

// Diagnostics describes how a search was answered. An empty result list with
// NoMatches set is a valid answer, not an error; the caller renders it as a
// structured "no matches" state.
type Diagnostics struct {
	// CandidateCount is the number of valid records scored.
	CandidateCount int
	// MatchCount is the number of results above the confidence threshold
	// before truncation to k.
	MatchCount int
	// NoMatches is set when the corpus was empty or every score fell below
	// the threshold.
	NoMatches bool
	// CacheHit is set when the result list came from the query cache.
	CacheHit bool
	// Truncated is set when the query text was cut to the maximum length.
	Truncated bool
	// Elapsed is the total time spent answering the search.
	Elapsed time.Duration
}
