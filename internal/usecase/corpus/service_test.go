package corpus

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
)

type mockStore struct {
	corpus   *domcorpus.Corpus
	loadErr  error
	modTime  time.Time
	modErr   error
	loads    int
	upserted int
}

func (m *mockStore) Load() (*domcorpus.Corpus, error) {
	m.loads++
	return m.corpus, m.loadErr
}

func (m *mockStore) Upsert(records ...domcorpus.Record) (*domcorpus.Corpus, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	for _, r := range records {
		m.corpus.Upsert(r)
		m.upserted++
	}
	return m.corpus, nil
}

func (m *mockStore) ModTime() (time.Time, error) { return m.modTime, m.modErr }

func (m *mockStore) Path() string { return "/data/corpus.json" }

type mockInvalidator struct{ calls int }

func (m *mockInvalidator) Invalidate() { m.calls++ }

func rec(t *testing.T, id string, embedding []float32) domcorpus.Record {
	t.Helper()
	r, err := domcorpus.New(id, embedding, "desc", nil, domcorpus.Attributes{}, 0)
	if err != nil {
		t.Fatalf("New(%s): %v", id, err)
	}
	return r
}

func newTestService(t *testing.T, store *mockStore, invs ...Invalidator) *Service {
	t.Helper()
	return New(store, 2, 0, zap.NewNop(), invs...)
}

func seedCorpus(t *testing.T, records ...domcorpus.Record) *domcorpus.Corpus {
	t.Helper()
	c, err := domcorpus.NewCorpus(records, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	return c
}

func TestLoadBuildsIndex(t *testing.T) {
	store := &mockStore{
		corpus:  seedCorpus(t, rec(t, "a", []float32{1, 0}), rec(t, "b", []float32{0, 1})),
		modTime: time.Now(),
	}
	svc := newTestService(t, store)

	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ix := svc.Index()
	if ix.Len() != 2 || ix.Dim() != 2 {
		t.Fatalf("index Len=%d Dim=%d, want 2/2", ix.Len(), ix.Dim())
	}
}

func TestLoadFailsFast(t *testing.T) {
	store := &mockStore{loadErr: domain.ErrCorpusLoad}
	svc := newTestService(t, store)

	if err := svc.Load(); !errors.Is(err, domain.ErrCorpusLoad) {
		t.Fatalf("Load = %v, want ErrCorpusLoad", err)
	}
}

func TestRefreshInvalidatesCaches(t *testing.T) {
	store := &mockStore{
		corpus:  seedCorpus(t, rec(t, "a", []float32{1, 0})),
		modTime: time.Now(),
	}
	inv := &mockInvalidator{}
	svc := newTestService(t, store, inv)

	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if inv.calls != 0 {
		t.Fatalf("initial load must not invalidate, got %d calls", inv.calls)
	}

	if err := svc.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("Refresh invalidations = %d, want 1", inv.calls)
	}
}

func TestUpsertRebuildsAndInvalidates(t *testing.T) {
	store := &mockStore{
		corpus:  seedCorpus(t, rec(t, "a", []float32{1, 0})),
		modTime: time.Now(),
	}
	inv := &mockInvalidator{}
	svc := newTestService(t, store, inv)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := svc.Upsert(rec(t, "b", []float32{0, 1})); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if store.upserted != 1 {
		t.Fatalf("store upserts = %d, want 1", store.upserted)
	}
	if inv.calls != 1 {
		t.Fatalf("invalidations = %d, want 1", inv.calls)
	}
	if svc.Index().Len() != 2 {
		t.Fatalf("index Len = %d after upsert, want 2", svc.Index().Len())
	}

	got, err := svc.Record("b")
	if err != nil {
		t.Fatalf("Record(b): %v", err)
	}
	if got.ID() != "b" {
		t.Fatalf("Record ID = %s, want b", got.ID())
	}
}

func TestUpsertBatchSingleInvalidation(t *testing.T) {
	store := &mockStore{
		corpus:  seedCorpus(t),
		modTime: time.Now(),
	}
	inv := &mockInvalidator{}
	svc := newTestService(t, store, inv)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	batch := []domcorpus.Record{
		rec(t, "a", []float32{1, 0}),
		rec(t, "b", []float32{0, 1}),
		rec(t, "c", []float32{1, 1}),
	}
	if err := svc.UpsertBatch(batch); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("invalidations = %d, want 1 for the whole batch", inv.calls)
	}
	if svc.Index().Len() != 3 {
		t.Fatalf("index Len = %d, want 3", svc.Index().Len())
	}
}

func TestUpsertBatchEmptyIsNoop(t *testing.T) {
	store := &mockStore{corpus: seedCorpus(t), modTime: time.Now()}
	inv := &mockInvalidator{}
	svc := newTestService(t, store, inv)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := svc.UpsertBatch(nil); err != nil {
		t.Fatalf("UpsertBatch(nil): %v", err)
	}
	if store.upserted != 0 || inv.calls != 0 {
		t.Fatal("empty batch must not touch store or caches")
	}
}

func TestRecordNotFound(t *testing.T) {
	store := &mockStore{corpus: seedCorpus(t), modTime: time.Now()}
	svc := newTestService(t, store)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := svc.Record("absent"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("Record = %v, want ErrRecordNotFound", err)
	}
}

func TestStaleCheckTriggersRefresh(t *testing.T) {
	store := &mockStore{
		corpus:  seedCorpus(t, rec(t, "a", []float32{1, 0})),
		modTime: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	svc := New(store, 2, time.Nanosecond, zap.NewNop())
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	loadsAfterInit := store.loads

	// Unchanged mtime: snapshot is served without a reload.
	svc.Index()
	if store.loads != loadsAfterInit {
		t.Fatalf("loads = %d, want %d (no reload for fresh file)", store.loads, loadsAfterInit)
	}

	// Advance the file mtime past the held one.
	store.modTime = store.modTime.Add(time.Minute)
	time.Sleep(time.Millisecond)
	svc.Index()
	if store.loads != loadsAfterInit+1 {
		t.Fatalf("loads = %d, want %d (stale file must reload)", store.loads, loadsAfterInit+1)
	}
}

func TestStats(t *testing.T) {
	broken := domcorpus.Reconstruct("x", []float32{1, 2, 3}, "", nil, domcorpus.Attributes{})
	store := &mockStore{
		corpus:  seedCorpus(t, rec(t, "a", []float32{1, 0}), broken),
		modTime: time.Now(),
	}
	svc := newTestService(t, store)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := svc.Stats()
	if st.TotalRecords != 2 || st.ValidRecords != 1 || st.InvalidRecords != 1 {
		t.Fatalf("Stats = %+v, want total 2, valid 1, invalid 1", st)
	}
	if st.Dimensions != 2 {
		t.Fatalf("Dimensions = %d, want 2", st.Dimensions)
	}
	if st.Path != "/data/corpus.json" {
		t.Fatalf("Path = %s", st.Path)
	}
}
