package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
	"github.com/atriumhq/atrium/internal/metrics"
	repocorpus "github.com/atriumhq/atrium/internal/repository/corpus"
	"github.com/atriumhq/atrium/internal/repository/querycache"
	corpusuc "github.com/atriumhq/atrium/internal/usecase/corpus"
	healthuc "github.com/atriumhq/atrium/internal/usecase/health"
	searchuc "github.com/atriumhq/atrium/internal/usecase/search"
)

func TestMain(m *testing.M) {
	metrics.RegisterEngineMetrics()
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: s.vector, TotalTokens: 3}, nil
}

type testHarness struct {
	server   *Server
	embedder *stubEmbedder
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "corpus.json")
	store := repocorpus.NewStore(path)

	a, err := domcorpus.New("images/atrium.jpg", []float32{1, 0}, "glass atrium with skylight",
		[]string{"glass", "light"}, domcorpus.Attributes{Width: 800, Height: 600}, 2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := domcorpus.New("images/cellar.jpg", []float32{-1, 0}, "dark brick cellar", nil, domcorpus.Attributes{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	c, err := domcorpus.NewCorpus([]domcorpus.Record{a, b}, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(c); err != nil {
		t.Fatal(err)
	}

	qc := querycache.New(100, time.Minute, nil)
	corpusSvc := corpusuc.New(store, 2, 0, zap.NewNop(), qc)
	if err := corpusSvc.Load(); err != nil {
		t.Fatal(err)
	}

	embedder := &stubEmbedder{vector: []float32{1, 0}}
	searchSvc := searchuc.New(corpusSvc, embedder, qc, 0, zap.NewNop())
	healthSvc := healthuc.New(corpusSvc, searchSvc, nil, nil)

	server := NewServer(searchSvc, corpusSvc, healthSvc,
		Defaults{K: 5, MaxK: 100, MinConfidence: 0.1, Dimensions: 2}, zap.NewNop())
	return &testHarness{server: server, embedder: embedder}
}

func (h *testHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.server.Routes().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSearchEndpoint(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "POST", "/api/v1/search", searchRequest{Query: "glass atrium"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	resp := decode[searchResponse](t, rr)
	if resp.Count != 1 {
		t.Fatalf("Count = %d, want 1 (cellar is below the confidence floor)", resp.Count)
	}
	if resp.Results[0].ID != "images/atrium.jpg" {
		t.Errorf("top result = %s", resp.Results[0].ID)
	}
	if resp.Results[0].Confidence < 0.99 {
		t.Errorf("Confidence = %f, want ~1.0", resp.Results[0].Confidence)
	}
	if resp.NoMatches {
		t.Error("NoMatches must be false")
	}
}

func TestSearchEndpoint_CacheHitOnRepeat(t *testing.T) {
	h := newTestHarness(t)

	first := decode[searchResponse](t, h.do(t, "POST", "/api/v1/search", searchRequest{Query: "glass atrium"}))
	if first.CacheHit {
		t.Fatal("first search must not be a cache hit")
	}
	second := decode[searchResponse](t, h.do(t, "POST", "/api/v1/search", searchRequest{Query: "glass atrium"}))
	if !second.CacheHit {
		t.Fatal("repeat search must be a cache hit")
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "POST", "/api/v1/search", searchRequest{Query: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != codeEmptyQuery {
		t.Errorf("code = %s, want %s", resp.Code, codeEmptyQuery)
	}
}

func TestSearchEndpoint_InvalidK(t *testing.T) {
	h := newTestHarness(t)

	zero := 0
	rr := h.do(t, "POST", "/api/v1/search", searchRequest{Query: "valid query", K: &zero})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != codeInvalidQuery {
		t.Errorf("code = %s, want %s", resp.Code, codeInvalidQuery)
	}
}

func TestSearchEndpoint_KClampedToConfiguredMax(t *testing.T) {
	h := newTestHarness(t)
	h.server.defaults.MaxK = 1

	k := 10
	noFloor := 0.0
	rr := h.do(t, "POST", "/api/v1/search", searchRequest{Query: "glass atrium", K: &k, MinConfidence: &noFloor})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	resp := decode[searchResponse](t, rr)
	if resp.Count != 1 {
		t.Fatalf("Count = %d, want 1 (k above the configured max must be capped)", resp.Count)
	}
}

func TestSearchEndpoint_ProviderDown(t *testing.T) {
	h := newTestHarness(t)
	h.embedder.err = fmt.Errorf("api down: %w", domain.ErrEmbeddingProvider)

	rr := h.do(t, "POST", "/api/v1/search", searchRequest{Query: "glass atrium"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != codeEmbeddingProvider {
		t.Errorf("code = %s, want %s", resp.Code, codeEmbeddingProvider)
	}
}

func TestGetRecordEndpoint(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "GET", "/api/v1/records/images/atrium.jpg", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[recordResponse](t, rr)
	if resp.ID != "images/atrium.jpg" || resp.Dimensions != 2 {
		t.Errorf("record = %+v", resp)
	}

	rr = h.do(t, "GET", "/api/v1/records/absent.jpg", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestUpsertRecordEndpoint(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "PUT", "/api/v1/records/images/tower.jpg", upsertRecordRequest{
		Embedding:   []float32{0.9, 0.1},
		Description: "brutalist concrete tower",
		Tags:        []string{"concrete"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	// The new record must be searchable immediately (caches invalidated).
	resp := decode[searchResponse](t, h.do(t, "POST", "/api/v1/search", searchRequest{Query: "concrete tower"}))
	found := false
	for _, item := range resp.Results {
		if item.ID == "images/tower.jpg" {
			found = true
		}
	}
	if !found {
		t.Fatalf("upserted record missing from results: %+v", resp.Results)
	}
}

func TestUpsertRecordEndpoint_WrongDimension(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "PUT", "/api/v1/records/images/bad.jpg", upsertRecordRequest{
		Embedding:   []float32{1, 0, 0},
		Description: "three dims against a 2-dim corpus",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != codeInvalidRecord {
		t.Errorf("code = %s, want %s", resp.Code, codeInvalidRecord)
	}
}

func TestBatchUpsertEndpoint(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "POST", "/api/v1/records/batch", batchUpsertRequest{Records: []batchUpsertItem{
		{ID: "images/one.jpg", upsertRecordRequest: upsertRecordRequest{Embedding: []float32{1, 0}}},
		{ID: "images/two.jpg", upsertRecordRequest: upsertRecordRequest{Embedding: []float32{0, 1}}},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[batchUpsertResponse](t, rr)
	if resp.Succeeded != 2 || resp.Failed != 0 {
		t.Fatalf("batch = %+v", resp)
	}
}

func TestBatchUpsertEndpoint_RejectsWholeBatchOnBadItem(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "POST", "/api/v1/records/batch", batchUpsertRequest{Records: []batchUpsertItem{
		{ID: "images/good.jpg", upsertRecordRequest: upsertRecordRequest{Embedding: []float32{1, 0}}},
		{ID: "", upsertRecordRequest: upsertRecordRequest{Embedding: []float32{0, 1}}},
	}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	resp := decode[batchUpsertResponse](t, rr)
	if resp.Failed != 1 || len(resp.Errors) != 1 {
		t.Fatalf("batch = %+v", resp)
	}

	// Nothing was written.
	if rr := h.do(t, "GET", "/api/v1/records/images/good.jpg", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("partial write detected, status = %d", rr.Code)
	}
}

func TestBatchUpsertEndpoint_EmptyBatch(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "POST", "/api/v1/records/batch", batchUpsertRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestRefreshAndStatsEndpoints(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "POST", "/api/v1/corpus/refresh", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rr.Code)
	}
	refresh := decode[refreshResponse](t, rr)
	if refresh.Status != "ok" || refresh.ValidRecords != 2 {
		t.Fatalf("refresh = %+v", refresh)
	}

	rr = h.do(t, "GET", "/api/v1/corpus/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rr.Code)
	}
	stats := decode[statsResponse](t, rr)
	if stats.TotalRecords != 2 || stats.ValidRecords != 2 || stats.Dimensions != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestStatsEndpoint_SearchCounters(t *testing.T) {
	h := newTestHarness(t)

	for i := 0; i < 2; i++ {
		rr := h.do(t, "POST", "/api/v1/search", searchRequest{Query: "glass atrium"})
		if rr.Code != http.StatusOK {
			t.Fatalf("search status = %d", rr.Code)
		}
	}

	rr := h.do(t, "GET", "/api/v1/corpus/stats", nil)
	stats := decode[statsResponse](t, rr)
	if stats.Search.Searches != 2 {
		t.Fatalf("searches = %d, want 2", stats.Search.Searches)
	}
	if stats.Search.CacheHits != 1 {
		t.Fatalf("cache hits = %d, want 1", stats.Search.CacheHits)
	}
	if stats.Search.CacheHitRate != 0.5 {
		t.Fatalf("cache hit rate = %g, want 0.5", stats.Search.CacheHitRate)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHarness(t)

	rr := h.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[healthResponse](t, rr)
	if resp.Status != "ok" {
		t.Fatalf("health = %+v", resp)
	}
	if resp.Checks["corpus"] != "ok" || resp.Checks["dimensions"] != "ok" {
		t.Fatalf("checks = %+v", resp.Checks)
	}
}

func TestSearchEndpoint_MalformedBody(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest("POST", "/api/v1/search", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	h.server.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Code != codeBadRequest {
		t.Errorf("code = %s, want %s", resp.Code, codeBadRequest)
	}
}
