// Package corpus owns the live corpus: the durable document, the in-memory
// similarity index built from it, and the cache invalidation that follows
// every content change.
package corpus

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
	"github.com/atriumhq/atrium/internal/domain/search"
	"github.com/atriumhq/atrium/internal/metrics"
)

// Stats is a point-in-time corpus summary for the stats endpoint.
type Stats struct {
	TotalRecords   int
	ValidRecords   int
	InvalidRecords int
	Dimensions     int
	GeneratedAt    time.Time
	LoadedAt       time.Time
	Path           string
}

// Service keeps the active corpus and its index. The index is an immutable
// snapshot swapped atomically under the lock; searches score against
// whichever snapshot they grabbed.
type Service struct {
	store        Store
	dim          int
	staleCheck   time.Duration
	invalidators []Invalidator
	logger       *zap.Logger

	mu             sync.RWMutex
	corpus         *domcorpus.Corpus
	index          *search.Index
	loadedAt       time.Time
	modTime        time.Time
	lastStaleCheck time.Time
}

// New creates the corpus service. dim fixes the expected embedding
// dimension (0 infers it from the data); staleCheck throttles how often the
// corpus file's mtime is re-examined, 0 disables the check entirely.
func New(store Store, dim int, staleCheck time.Duration, logger *zap.Logger, invalidators ...Invalidator) *Service {
	return &Service{
		store:        store,
		dim:          dim,
		staleCheck:   staleCheck,
		invalidators: invalidators,
		logger:       logger,
	}
}

// Load performs the initial corpus load. Any storage failure is fatal: the
// engine must not serve from an unknown corpus state.
func (s *Service) Load() error {
	return s.reload(false)
}

// Refresh rebuilds the in-memory index from the durable store and drops
// every derived cache.
func (s *Service) Refresh() error {
	return s.reload(true)
}

func (s *Service) reload(invalidate bool) error {
	c, err := s.store.Load()
	if err != nil {
		return err
	}
	mt, err := s.store.ModTime()
	if err != nil {
		return fmt.Errorf("corpus mod time: %w", err)
	}

	ix := search.BuildIndex(c, s.dim)

	s.mu.Lock()
	s.corpus = c
	s.index = ix
	s.loadedAt = time.Now()
	s.modTime = mt
	s.mu.Unlock()

	if invalidate {
		s.invalidateCaches()
	}

	s.publishGauges(ix)
	metrics.CorpusRefreshesTotal.Inc()
	s.logger.Info("Corpus index built",
		zap.Int("valid_records", ix.Len()),
		zap.Int("invalid_records", ix.InvalidCount()),
		zap.Int("dimensions", ix.Dim()),
	)
	return nil
}

// Index returns the current ranking snapshot, first refreshing it when the
// corpus file changed on disk. The mtime stat is throttled to at most one
// per stale-check interval; a failed check logs and serves the held
// snapshot rather than failing the search.
func (s *Service) Index() *search.Index {
	if s.shouldCheckStale() {
		s.checkStale()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

func (s *Service) shouldCheckStale() bool {
	if s.staleCheck <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastStaleCheck) < s.staleCheck {
		return false
	}
	s.lastStaleCheck = time.Now()
	return true
}

func (s *Service) checkStale() {
	mt, err := s.store.ModTime()
	if err != nil {
		s.logger.Warn("Stale check failed, serving current index", zap.Error(err))
		return
	}

	s.mu.RLock()
	stale := mt.After(s.modTime)
	s.mu.RUnlock()
	if !stale {
		return
	}

	s.logger.Info("Corpus file changed on disk, refreshing index")
	if err := s.Refresh(); err != nil {
		s.logger.Error("Stale refresh failed, serving current index", zap.Error(err))
	}
}

// Loaded reports whether an index snapshot is available.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Record returns a single record by ID.
func (s *Service) Record(id string) (domcorpus.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.corpus.Get(id)
	if !ok {
		return domcorpus.Record{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	return r, nil
}

// Upsert adds or replaces one record: one atomic write to the durable
// store, one index rebuild, full cache invalidation.
func (s *Service) Upsert(record domcorpus.Record) error {
	return s.UpsertBatch([]domcorpus.Record{record})
}

// UpsertBatch applies several records in a single write and rebuild.
func (s *Service) UpsertBatch(records []domcorpus.Record) error {
	if len(records) == 0 {
		return nil
	}

	c, err := s.store.Upsert(records...)
	if err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	mt, err := s.store.ModTime()
	if err != nil {
		return fmt.Errorf("corpus mod time: %w", err)
	}

	ix := search.BuildIndex(c, s.dim)

	s.mu.Lock()
	s.corpus = c
	s.index = ix
	s.loadedAt = time.Now()
	s.modTime = mt
	s.mu.Unlock()

	s.invalidateCaches()
	s.publishGauges(ix)
	s.logger.Info("Corpus updated",
		zap.Int("upserted", len(records)),
		zap.Int("valid_records", ix.Len()),
		zap.Int("invalid_records", ix.InvalidCount()),
	)
	return nil
}

// Stats summarizes the active corpus.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		TotalRecords:   s.corpus.Len(),
		ValidRecords:   s.index.Len(),
		InvalidRecords: s.index.InvalidCount(),
		Dimensions:     s.index.Dim(),
		GeneratedAt:    s.corpus.GeneratedAt(),
		LoadedAt:       s.loadedAt,
		Path:           s.store.Path(),
	}
}

func (s *Service) invalidateCaches() {
	for _, inv := range s.invalidators {
		inv.Invalidate()
	}
}

func (s *Service) publishGauges(ix *search.Index) {
	metrics.CorpusRecords.WithLabelValues("valid").Set(float64(ix.Len()))
	metrics.CorpusRecords.WithLabelValues("invalid").Set(float64(ix.InvalidCount()))
}
