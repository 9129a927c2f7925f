package atrium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
	"github.com/atriumhq/atrium/internal/domain/search/query"
	"github.com/atriumhq/atrium/internal/kv"
	corpusrepo "github.com/atriumhq/atrium/internal/repository/corpus"
	"github.com/atriumhq/atrium/internal/repository/embcache"
	"github.com/atriumhq/atrium/internal/repository/querycache"
	openaiEmb "github.com/atriumhq/atrium/internal/transport/openai"
	corpusuc "github.com/atriumhq/atrium/internal/usecase/corpus"
	healthuc "github.com/atriumhq/atrium/internal/usecase/health"
	searchuc "github.com/atriumhq/atrium/internal/usecase/search"
)

const (
	defaultK             = 5
	defaultMinConfidence = 0.1
	defaultEmbCacheTTL   = time.Hour
)

// Embedder converts text into a vector in the same embedding space as the
// corpus images.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult is the outcome of an embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Client is the atrium engine entry point for in-process use.
type Client struct {
	cache     kv.Store
	corpusSvc *corpusuc.Service
	searchSvc *searchuc.Service
	healthSvc *healthuc.Service

	defaultK      int
	minConfidence float64
}

// Open loads the corpus and wires the engine. The corpus file must exist;
// a missing or malformed corpus fails fast with ErrCorpusLoad.
func Open(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		defaultK:      defaultK,
		minConfidence: defaultMinConfidence,
		embCacheTTL:   defaultEmbCacheTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.corpusPath == "" {
		return nil, errors.New("atrium: corpus path required (use WithCorpusPath)")
	}
	if cfg.embedder == nil && cfg.openAIKey == "" {
		return nil, errors.New("atrium: embedder required (use WithEmbedder or WithOpenAI)")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	var embCache kv.Store
	if !cfg.disableCache {
		embCache = kv.NewMemory()
		embedder = embcache.New(embedder, embCache, cfg.embCacheTTL, nil, logger)
	}
	if cfg.instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.instruction)
	}

	resultCache := querycache.New(cfg.resultCacheSize, cfg.resultCacheTTL, nil)

	store := corpusrepo.NewStore(cfg.corpusPath)
	corpusSvc := corpusuc.New(store, cfg.dimensions, cfg.staleCheck, logger, resultCache)
	if err := corpusSvc.Load(); err != nil {
		if embCache != nil {
			embCache.Close()
		}
		return nil, fmt.Errorf("atrium: %w", err)
	}

	searchSvc := searchuc.New(corpusSvc, embedder, resultCache, cfg.timeout, logger)
	healthSvc := healthuc.New(corpusSvc, searchSvc, embeddingChecker{embedder}, nil)

	return &Client{
		cache:         embCache,
		corpusSvc:     corpusSvc,
		searchSvc:     searchSvc,
		healthSvc:     healthSvc,
		defaultK:      cfg.defaultK,
		minConfidence: cfg.minConfidence,
	}, nil
}

func buildEmbedder(cfg *clientConfig, logger *zap.Logger) (domain.Embedder, error) {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}, nil
	}
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.openAIKey,
		BaseURL:    cfg.openAIURL,
		Model:      cfg.openAIModel,
		Dimensions: cfg.dimensions,
		Provider:   "openai",
		Logger:     logger,
	}), nil
}

// Close releases the embedding cache.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// SearchOptions override the client defaults for a single search.
// Zero values fall back to the defaults; a negative MinConfidence
// disables the floor entirely.
type SearchOptions struct {
	K             int
	MinConfidence float64
}

// Search ranks corpus records against the query text using the client
// defaults for k and the confidence floor.
func (c *Client) Search(ctx context.Context, text string) ([]Result, SearchInfo, error) {
	return c.SearchWithOptions(ctx, text, SearchOptions{})
}

// SearchWithOptions ranks corpus records against the query text.
func (c *Client) SearchWithOptions(ctx context.Context, text string, opts SearchOptions) ([]Result, SearchInfo, error) {
	k := opts.K
	if k == 0 {
		k = c.defaultK
	}
	minConfidence := opts.MinConfidence
	switch {
	case minConfidence == 0:
		minConfidence = c.minConfidence
	case minConfidence < 0:
		minConfidence = 0
	}

	q, err := query.New(text, k, minConfidence)
	if err != nil {
		return nil, SearchInfo{}, err
	}

	results, diag, err := c.searchSvc.Search(ctx, q)
	if err != nil {
		return nil, SearchInfo{}, err
	}

	return resultsFromInternal(results), SearchInfo{
		CandidateCount: diag.CandidateCount,
		MatchCount:     diag.MatchCount,
		NoMatches:      diag.NoMatches,
		CacheHit:       diag.CacheHit,
		Truncated:      diag.Truncated,
		Elapsed:        diag.Elapsed,
	}, nil
}

// Upsert inserts or replaces one corpus record and persists it.
func (c *Client) Upsert(rec Record) error {
	internal, err := recordToInternal(rec, c.corpusSvc.Stats().Dimensions)
	if err != nil {
		return err
	}
	return c.corpusSvc.Upsert(internal)
}

// UpsertBatch inserts or replaces records in a single corpus write.
// Validation is all-or-nothing: one invalid record rejects the batch.
func (c *Client) UpsertBatch(recs []Record) error {
	dim := c.corpusSvc.Stats().Dimensions
	internal := make([]domcorpus.Record, 0, len(recs))
	for _, rec := range recs {
		r, err := recordToInternal(rec, dim)
		if err != nil {
			return fmt.Errorf("record %q: %w", rec.ID, err)
		}
		internal = append(internal, r)
	}
	return c.corpusSvc.UpsertBatch(internal)
}

// Record returns a corpus record by ID.
func (c *Client) Record(id string) (Record, error) {
	rec, err := c.corpusSvc.Record(id)
	if err != nil {
		return Record{}, err
	}
	return recordFromInternal(rec), nil
}

// Refresh reloads the corpus from disk and invalidates cached results.
func (c *Client) Refresh() error {
	return c.corpusSvc.Refresh()
}

// Stats reports corpus composition.
func (c *Client) Stats() Stats {
	s := c.corpusSvc.Stats()
	return Stats{
		TotalRecords:   s.TotalRecords,
		ValidRecords:   s.ValidRecords,
		InvalidRecords: s.InvalidRecords,
		Dimensions:     s.Dimensions,
		GeneratedAt:    s.GeneratedAt,
		LoadedAt:       s.LoadedAt,
		Path:           s.Path,
	}
}

// SearchStats returns search counters accumulated since Open.
func (c *Client) SearchStats() SearchStats {
	s := c.searchSvc.Stats()
	return SearchStats{
		Searches:   s.Searches,
		CacheHits:  s.CacheHits,
		NoMatches:  s.NoMatches,
		Failures:   s.Failures,
		AvgLatency: s.AvgLatency,
	}
}

// Health checks the engine components.
func (c *Client) Health(ctx context.Context) HealthReport {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	return HealthReport{Status: string(report.Status), Checks: checks}
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// embeddingChecker probes the embedder when it exposes a health check.
type embeddingChecker struct {
	embedder domain.Embedder
}

func (e embeddingChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := e.embedder.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
