package http

import (
	"time"

	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
	"github.com/atriumhq/atrium/internal/domain/search/result"
	corpusuc "github.com/atriumhq/atrium/internal/usecase/corpus"
	healthuc "github.com/atriumhq/atrium/internal/usecase/health"
	searchuc "github.com/atriumhq/atrium/internal/usecase/search"
)

// Error codes returned in the JSON error envelope.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeEmptyQuery        = "empty_query"
	codeInvalidQuery      = "invalid_query"
	codeRecordNotFound    = "record_not_found"
	codeInvalidRecord     = "invalid_record"
	codeCorpusLoadFailed  = "corpus_load_failed"
	codeDimensionMismatch = "dimension_mismatch"
	codeEmbeddingProvider = "embedding_provider_error"
	codeRequestTimeout    = "request_timeout"
	codeInternalError     = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchRequest struct {
	Query         string   `json:"query"`
	K             *int     `json:"k,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

type searchResultItem struct {
	ID          string   `json:"id"`
	Similarity  float64  `json:"similarity"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type searchResponse struct {
	Query     string             `json:"query"`
	Results   []searchResultItem `json:"results"`
	Count     int                `json:"count"`
	NoMatches bool               `json:"no_matches"`
	CacheHit  bool               `json:"cache_hit"`
	Truncated bool               `json:"truncated,omitempty"`
	ElapsedMs float64            `json:"elapsed_ms"`
}

type fileAttributes struct {
	SizeBytes   int64     `json:"size_bytes"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ProcessedAt time.Time `json:"processed_at"`
}

type upsertRecordRequest struct {
	Embedding      []float32      `json:"embedding"`
	Description    string         `json:"description"`
	Tags           []string       `json:"tags,omitempty"`
	FileAttributes fileAttributes `json:"file_attributes"`
}

type batchUpsertItem struct {
	ID string `json:"id"`
	upsertRecordRequest
}

type batchUpsertRequest struct {
	Records []batchUpsertItem `json:"records"`
}

type batchUpsertResponse struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    []batchItemError `json:"errors,omitempty"`
}

type batchItemError struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type recordResponse struct {
	ID             string         `json:"id"`
	Description    string         `json:"description"`
	Tags           []string       `json:"tags,omitempty"`
	Dimensions     int            `json:"dimensions"`
	FileAttributes fileAttributes `json:"file_attributes"`
}

type statsResponse struct {
	TotalRecords   int                 `json:"total_records"`
	ValidRecords   int                 `json:"valid_records"`
	InvalidRecords int                 `json:"invalid_records"`
	Dimensions     int                 `json:"dimensions"`
	GeneratedAt    time.Time           `json:"generated_at"`
	LoadedAt       time.Time           `json:"loaded_at"`
	Path           string              `json:"path"`
	Search         searchStatsResponse `json:"search"`
}

type searchStatsResponse struct {
	Searches     uint64  `json:"searches"`
	CacheHits    uint64  `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	NoMatches    uint64  `json:"no_matches"`
	Failures     uint64  `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

type refreshResponse struct {
	Status       string `json:"status"`
	ValidRecords int    `json:"valid_records"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func searchResultsToDTO(results []result.Result) []searchResultItem {
	items := make([]searchResultItem, len(results))
	for i := range results {
		r := &results[i]
		items[i] = searchResultItem{
			ID:          r.ID(),
			Similarity:  r.Similarity(),
			Confidence:  r.Confidence(),
			Description: r.Description(),
			Tags:        r.Tags(),
		}
	}
	return items
}

func recordToDTO(r domcorpus.Record) recordResponse {
	attrs := r.Attrs()
	return recordResponse{
		ID:          r.ID(),
		Description: r.Description(),
		Tags:        r.Tags(),
		Dimensions:  len(r.Embedding()),
		FileAttributes: fileAttributes{
			SizeBytes:   attrs.SizeBytes,
			Width:       attrs.Width,
			Height:      attrs.Height,
			ProcessedAt: attrs.ProcessedAt,
		},
	}
}

func statsToDTO(st corpusuc.Stats, ss searchuc.Stats) statsResponse {
	var hitRate float64
	if ss.Searches > 0 {
		hitRate = float64(ss.CacheHits) / float64(ss.Searches)
	}
	return statsResponse{
		TotalRecords:   st.TotalRecords,
		ValidRecords:   st.ValidRecords,
		InvalidRecords: st.InvalidRecords,
		Dimensions:     st.Dimensions,
		GeneratedAt:    st.GeneratedAt,
		LoadedAt:       st.LoadedAt,
		Path:           st.Path,
		Search: searchStatsResponse{
			Searches:     ss.Searches,
			CacheHits:    ss.CacheHits,
			CacheHitRate: hitRate,
			NoMatches:    ss.NoMatches,
			Failures:     ss.Failures,
			AvgLatencyMs: float64(ss.AvgLatency.Microseconds()) / 1000,
		},
	}
}

func healthToDTO(report healthuc.Report) healthResponse {
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return healthResponse{Status: string(report.Status), Checks: checks}
}
