package atrium

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	corpusPath string
	dimensions int
	staleCheck time.Duration

	embedder     Embedder
	openAIKey    string
	openAIURL    string
	openAIModel  string
	instruction  string
	embCacheTTL  time.Duration
	disableCache bool

	defaultK      int
	minConfidence float64
	timeout       time.Duration

	resultCacheSize int
	resultCacheTTL  time.Duration

	logger *zap.Logger
}

// WithCorpusPath sets the corpus JSON file location. Required.
func WithCorpusPath(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpusPath = path
	})
}

// WithDimensions sets the expected embedding dimension. Zero infers the
// dimension from the first valid corpus record.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithStaleCheck enables modification-time polling of the corpus file at
// the given interval. Zero disables it (default).
func WithStaleCheck(interval time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.staleCheck = interval
	})
}

// WithEmbedder sets a custom text embedding provider. Required unless
// WithOpenAI is used.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAI configures an OpenAI-compatible embedding provider.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIModel = model
	})
}

// WithBaseURL points the OpenAI provider at a compatible endpoint
// (Azure, vLLM, Ollama).
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIURL = url
	})
}

// WithQueryInstruction prefixes every query with an instruction before
// embedding. Some models rank better with task instructions.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.instruction = instruction
	})
}

// WithoutEmbeddingCache disables the in-process embedding cache.
func WithoutEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.disableCache = true
	})
}

// WithDefaultK sets how many results a Search returns when the caller
// does not say. Default: 5.
func WithDefaultK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultK = k
	})
}

// WithMinConfidence sets the default confidence floor in [0, 1].
// Default: 0.1.
func WithMinConfidence(min float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.minConfidence = min
	})
}

// WithRequestTimeout bounds each search end to end. Zero disables the
// bound (default).
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithResultCache sizes the query result cache. Defaults: 100 entries,
// 5 minute TTL.
func WithResultCache(maxEntries int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.resultCacheSize = maxEntries
		c.resultCacheTTL = ttl
	})
}

// WithLogger enables structured logging for engine operations.
// Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
