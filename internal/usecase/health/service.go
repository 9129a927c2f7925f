package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure: searches still work, possibly
	// without caching or with stale data.
	Degraded Status = "degraded"
	// Unhealthy indicates the engine cannot answer searches correctly.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	corpus    CorpusStats
	skew      SkewReporter
	embedding EmbeddingChecker
	cache     CachePinger
}

// New creates a Service. embedding and cache can be nil.
func New(corpus CorpusStats, skew SkewReporter, embedding EmbeddingChecker, cache CachePinger) *Service {
	return &Service{corpus: corpus, skew: skew, embedding: embedding, cache: cache}
}

// Check runs health checks against all components. A latched dimension skew
// is fatal: the provider's embedding space no longer matches the corpus, so
// every score would be wrong.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.corpus.Loaded() {
		checks["corpus"] = CheckOK
	} else {
		checks["corpus"] = CheckError
	}

	skewed := s.skew != nil && s.skew.DimensionSkew()
	if skewed {
		checks["dimensions"] = CheckError
	} else {
		checks["dimensions"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if skewed || checks["corpus"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
