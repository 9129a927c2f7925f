// Package http exposes the search engine over a JSON REST API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/domain"
	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
	"github.com/atriumhq/atrium/internal/domain/search/query"
	logpkg "github.com/atriumhq/atrium/internal/logger"
	corpusuc "github.com/atriumhq/atrium/internal/usecase/corpus"
	healthuc "github.com/atriumhq/atrium/internal/usecase/health"
	searchuc "github.com/atriumhq/atrium/internal/usecase/search"
)

const maxBatchSize = 100

// Defaults supply the per-request search parameters when the client omits
// them. MaxK caps the requested result count; 0 leaves only the engine's
// hard ceiling in place.
type Defaults struct {
	K             int
	MaxK          int
	MinConfidence float64
	Dimensions    int
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	search        *searchuc.Service
	corpus        *corpusuc.Service
	health        *healthuc.Service
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	corpus *corpusuc.Service,
	health *healthuc.Service,
	defaults Defaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		corpus:   corpus,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeEmptyQuery),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, codeRecordNotFound),
		sentinelHandler(domain.ErrInvalidRecord, http.StatusBadRequest, codeInvalidRecord),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeRequestTimeout),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, codeDimensionMismatch),
		sentinelHandler(domain.ErrCorpusLoad, http.StatusInternalServerError, codeCorpusLoadFailed),
	}
	return s
}

// Routes registers every endpoint on a fresh router. Middlewares are
// attached by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/records/batch", s.handleBatchUpsert)
		// Record IDs are image paths and contain slashes, hence the wildcard.
		r.Put("/records/*", s.handleUpsertRecord)
		r.Get("/records/*", s.handleGetRecord)
		r.Post("/corpus/refresh", s.handleRefresh)
		r.Get("/corpus/stats", s.handleStats)
	})
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	k := s.defaults.K
	if req.K != nil {
		k = *req.K
	}
	if s.defaults.MaxK > 0 && k > s.defaults.MaxK {
		k = s.defaults.MaxK
	}
	minConfidence := s.defaults.MinConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}

	q, err := query.New(req.Query, k, minConfidence)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results, diag, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:     q.Text(),
		Results:   searchResultsToDTO(results),
		Count:     len(results),
		NoMatches: diag.NoMatches,
		CacheHit:  diag.CacheHit,
		Truncated: diag.Truncated,
		ElapsedMs: float64(diag.Elapsed.Microseconds()) / 1000,
	})
}

// handleUpsertRecord handles PUT /api/v1/records/{id}.
func (s *Server) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")

	var req upsertRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, err := recordFromUpsert(id, req, s.defaults.Dimensions)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := s.corpus.Upsert(rec); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

// handleBatchUpsert handles POST /api/v1/records/batch. Item validation is
// all-or-nothing before any write: a batch with one malformed record writes
// nothing.
func (s *Server) handleBatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req batchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Records) == 0 || len(req.Records) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("records count must be between 1 and %d", maxBatchSize))
		return
	}

	records := make([]domcorpus.Record, 0, len(req.Records))
	var itemErrors []batchItemError
	for _, item := range req.Records {
		rec, err := recordFromUpsert(item.ID, item.upsertRecordRequest, s.defaults.Dimensions)
		if err != nil {
			itemErrors = append(itemErrors, batchItemError{
				ID:      item.ID,
				Code:    codeInvalidRecord,
				Message: safeDomainMessage(err),
			})
			continue
		}
		records = append(records, rec)
	}

	if len(itemErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, batchUpsertResponse{
			Failed: len(itemErrors),
			Errors: itemErrors,
		})
		return
	}

	if err := s.corpus.UpsertBatch(records); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchUpsertResponse{Succeeded: len(records)})
}

// handleGetRecord handles GET /api/v1/records/{id}.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.corpus.Record(chi.URLParam(r, "*"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

// handleRefresh handles POST /api/v1/corpus/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.corpus.Refresh(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Status:       "ok",
		ValidRecords: s.corpus.Stats().ValidRecords,
	})
}

// handleStats handles GET /api/v1/corpus/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsToDTO(s.corpus.Stats(), s.search.Stats()))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthToDTO(report))
}

func recordFromUpsert(id string, req upsertRecordRequest, dim int) (domcorpus.Record, error) {
	rec, err := domcorpus.New(id, req.Embedding, req.Description, req.Tags, domcorpus.Attributes{
		SizeBytes:   req.FileAttributes.SizeBytes,
		Width:       req.FileAttributes.Width,
		Height:      req.FileAttributes.Height,
		ProcessedAt: req.FileAttributes.ProcessedAt,
	}, dim)
	if err != nil {
		return domcorpus.Record{}, fmt.Errorf("build record: %w", err)
	}
	return rec, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidQuery,
		domain.ErrRecordNotFound,
		domain.ErrInvalidRecord,
		domain.ErrCorpusLoad,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingProvider,
		domain.ErrTimeout,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError logs through the request-scoped logger so the entry
// carries the request id set by the middleware.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
