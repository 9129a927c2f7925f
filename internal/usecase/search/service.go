// Package search ranks corpus records against a text query by cosine
// similarity in the shared embedding space.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	domsearch "github.com/atriumhq/atrium/internal/domain/search"
	"github.com/atriumhq/atrium/internal/domain/search/query"
	"github.com/atriumhq/atrium/internal/domain/search/result"
	"github.com/atriumhq/atrium/internal/metrics"
)

// Service answers search queries. A request flows: result-cache lookup →
// embed → normalize → score every valid record → threshold → rank → cache.
type Service struct {
	index   IndexProvider
	embed   Embedder
	cache   ResultCache
	timeout time.Duration
	logger  *zap.Logger

	// dimensionSkew latches when a query embedding no longer matches the
	// corpus dimension. It clears on the next successful search (a refresh
	// with a matching corpus heals the engine without a restart).
	dimensionSkew atomic.Bool

	// process-lifetime counters for the stats endpoint
	searches     atomic.Uint64
	cacheHits    atomic.Uint64
	noMatches    atomic.Uint64
	failures     atomic.Uint64
	elapsedNanos atomic.Int64
}

// Stats summarizes searches served since startup.
type Stats struct {
	Searches   uint64
	CacheHits  uint64
	NoMatches  uint64
	Failures   uint64
	AvgLatency time.Duration
}

// New creates a search service. timeout bounds the end-to-end request,
// embedding call included; 0 disables the deadline.
func New(index IndexProvider, embed Embedder, cache ResultCache, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		index:   index,
		embed:   embed,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
	}
}

// DimensionSkew reports whether the last search hit an embedding dimension
// mismatch. The health endpoint surfaces it as a degraded state.
func (s *Service) DimensionSkew() bool { return s.dimensionSkew.Load() }

// Stats returns search counters accumulated since startup.
func (s *Service) Stats() Stats {
	st := Stats{
		Searches:  s.searches.Load(),
		CacheHits: s.cacheHits.Load(),
		NoMatches: s.noMatches.Load(),
		Failures:  s.failures.Load(),
	}
	if st.Searches > 0 {
		st.AvgLatency = time.Duration(s.elapsedNanos.Load() / int64(st.Searches))
	}
	return st
}

// Search executes a validated query and returns ranked results with
// diagnostics. An empty result list with NoMatches set is a normal answer.
func (s *Service) Search(ctx context.Context, q query.Query) ([]result.Result, result.Diagnostics, error) {
	start := time.Now()

	results, diag, err := s.search(ctx, q)
	diag.Elapsed = time.Since(start)
	diag.Truncated = q.Truncated()

	s.searches.Add(1)
	s.elapsedNanos.Add(diag.Elapsed.Nanoseconds())
	if diag.CacheHit {
		s.cacheHits.Add(1)
	}
	if err != nil {
		s.failures.Add(1)
	} else if diag.NoMatches {
		s.noMatches.Add(1)
	}

	metrics.SearchDuration.Observe(diag.Elapsed.Seconds())
	switch {
	case err != nil:
		metrics.SearchesTotal.WithLabelValues("error").Inc()
	case diag.NoMatches:
		metrics.SearchesTotal.WithLabelValues("no_matches").Inc()
	default:
		metrics.SearchesTotal.WithLabelValues("ok").Inc()
	}
	if err == nil {
		metrics.SearchResults.Observe(float64(len(results)))
	}

	if q.Truncated() {
		s.logger.Warn("Query text truncated", zap.Int("max_bytes", query.MaxTextLength))
	}
	return results, diag, err
}

func (s *Service) search(ctx context.Context, q query.Query) ([]result.Result, result.Diagnostics, error) {
	var diag result.Diagnostics

	fingerprint := q.Fingerprint()
	if cached, ok := s.cache.Get(fingerprint); ok {
		diag.CacheHit = true
		diag.MatchCount = len(cached)
		diag.NoMatches = len(cached) == 0
		return cached, diag, nil
	}

	// Read the generation token before touching the index: if the corpus
	// changes while this search is in flight, the Put below is discarded
	// instead of caching results ranked against the old snapshot.
	generation := s.cache.Generation()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	embResult, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, diag, fmt.Errorf("%w: embedding query", domain.ErrTimeout)
		}
		return nil, diag, fmt.Errorf("embed query: %w", err)
	}

	queryUnit, ok := domain.Normalize(embResult.Embedding)
	if !ok {
		return nil, diag, fmt.Errorf("%w: query embedding has zero norm", domain.ErrEmbeddingProvider)
	}

	ix := s.index.Index()
	diag.CandidateCount = ix.Len()
	if ix.Len() == 0 {
		diag.NoMatches = true
		s.cache.Put(fingerprint, []result.Result{}, generation)
		return []result.Result{}, diag, nil
	}

	scores, err := ix.Similarities(queryUnit)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			s.dimensionSkew.Store(true)
			s.logger.Error("Embedding dimension skew, provider no longer matches corpus",
				zap.Int("corpus_dim", ix.Dim()),
				zap.Int("query_dim", len(queryUnit)),
			)
		}
		return nil, diag, err
	}

	results := rank(ix, scores, q)
	diag.MatchCount = len(results)
	if len(results) > q.K() {
		results = results[:q.K()]
	}
	diag.NoMatches = len(results) == 0

	s.dimensionSkew.Store(false)
	s.cache.Put(fingerprint, results, generation)
	return results, diag, nil
}

// rank converts similarities to confidence scores, applies the confidence
// floor, and orders by descending confidence with ascending ID as the
// tie-break so equal scores rank deterministically.
func rank(ix *domsearch.Index, scores []float64, q query.Query) []result.Result {
	results := make([]result.Result, 0, len(scores))
	for i, sim := range scores {
		confidence := (sim + 1) / 2
		if confidence < q.MinConfidence() {
			continue
		}
		rec := ix.Record(i)
		results = append(results, result.New(ix.ID(i), sim, confidence, rec.Description(), rec.Tags()))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence() != results[j].Confidence() {
			return results[i].Confidence() > results[j].Confidence()
		}
		return results[i].ID() < results[j].ID()
	})
	return results
}
