package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	"github.com/atriumhq/atrium/internal/domain/corpus"
	domsearch "github.com/atriumhq/atrium/internal/domain/search"
	"github.com/atriumhq/atrium/internal/domain/search/query"
	"github.com/atriumhq/atrium/internal/domain/search/result"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type mockCache struct {
	entries    map[string][]result.Result
	puts       int
	generation uint64
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]result.Result)}
}

func (m *mockCache) Get(fingerprint string) ([]result.Result, bool) {
	r, ok := m.entries[fingerprint]
	return r, ok
}

func (m *mockCache) Put(fingerprint string, results []result.Result, generation uint64) {
	if generation != m.generation {
		return
	}
	m.puts++
	m.entries[fingerprint] = results
}

func (m *mockCache) Generation() uint64 { return m.generation }

func (m *mockCache) Invalidate() {
	m.entries = make(map[string][]result.Result)
	m.generation++
}

type staticIndex struct{ ix *domsearch.Index }

func (s *staticIndex) Index() *domsearch.Index { return s.ix }

func record(t *testing.T, id string, embedding []float32, description string, tags []string) corpus.Record {
	t.Helper()
	r, err := corpus.New(id, embedding, description, tags, corpus.Attributes{}, 0)
	if err != nil {
		t.Fatalf("New(%s): %v", id, err)
	}
	return r
}

func buildIndex(t *testing.T, dim int, records ...corpus.Record) *domsearch.Index {
	t.Helper()
	c, err := corpus.NewCorpus(records, time.Now())
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	return domsearch.BuildIndex(c, dim)
}

func mustQuery(t *testing.T, text string, k int, minConfidence float64) query.Query {
	t.Helper()
	q, err := query.New(text, k, minConfidence)
	if err != nil {
		t.Fatalf("query.New(%q): %v", text, err)
	}
	return q
}

func newTestService(ix *domsearch.Index, embed *mockEmbedder, cache *mockCache) *Service {
	return New(&staticIndex{ix: ix}, embed, cache, 0, zap.NewNop())
}
