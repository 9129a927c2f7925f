package health

import "context"

// CorpusStats reports the active corpus shape.
type CorpusStats interface {
	Loaded() bool
}

// SkewReporter reports a latched embedding dimension mismatch.
type SkewReporter interface {
	DimensionSkew() bool
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks the embedding cache store availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
