package corpus

import (
	"fmt"
	"time"

	"github.com/atriumhq/atrium/internal/domain"
)

// MaxDescriptionSize is the maximum record description size in bytes.
const MaxDescriptionSize = 8192

// Attributes holds file-level metadata for an indexed image.
type Attributes struct {
	SizeBytes   int64
	Width       int
	Height      int
	ProcessedAt time.Time
}

// Record is one indexed image (immutable value object). The id is derived
// from the image path by the offline pipeline and never changes afterwards.
type Record struct {
	id          string
	embedding   []float32
	description string
	tags        []string
	attrs       Attributes
}

// New validates and creates a Record. The embedding must be non-empty, of
// dimension dim (0 skips the check) and contain only finite values.
func New(id string, embedding []float32, description string, tags []string, attrs Attributes, dim int) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: record ID is required", domain.ErrInvalidRecord)
	}
	if len(id) > 512 {
		return Record{}, fmt.Errorf("%w: record ID too long (max 512)", domain.ErrInvalidRecord)
	}
	if len(description) > MaxDescriptionSize {
		return Record{}, fmt.Errorf("%w: description too large (max %d bytes)", domain.ErrInvalidRecord, MaxDescriptionSize)
	}
	if len(embedding) == 0 {
		return Record{}, fmt.Errorf("%w: embedding is required", domain.ErrInvalidRecord)
	}
	if dim > 0 && len(embedding) != dim {
		return Record{}, fmt.Errorf("%w: %w", domain.ErrInvalidRecord, domain.NewDimensionError(dim, len(embedding)))
	}
	if !domain.IsFinite(embedding) {
		return Record{}, fmt.Errorf("%w: embedding contains non-finite values", domain.ErrInvalidRecord)
	}

	return Record{
		id:          id,
		embedding:   cloneVector(embedding),
		description: description,
		tags:        cloneTags(tags),
		attrs:       attrs,
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
// Records loaded from the durable store may carry embeddings that no longer
// validate; they are retained for diagnostics and excluded from ranking.
func Reconstruct(id string, embedding []float32, description string, tags []string, attrs Attributes) Record {
	return Record{id: id, embedding: embedding, description: description, tags: tags, attrs: attrs}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// Embedding returns the image embedding vector.
func (r *Record) Embedding() []float32 { return r.embedding }

// Description returns the generated visual-content summary.
func (r *Record) Description() string { return r.description }

// Tags returns the feature labels.
func (r *Record) Tags() []string { return r.tags }

// Attrs returns the file attributes.
func (r *Record) Attrs() Attributes { return r.attrs }

// Validate checks the embedding against the corpus dimension. It mirrors the
// checks New performs, for records hydrated via Reconstruct.
func (r *Record) Validate(dim int) error {
	if len(r.embedding) == 0 {
		return fmt.Errorf("%w: embedding is empty", domain.ErrInvalidRecord)
	}
	if dim > 0 && len(r.embedding) != dim {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRecord, domain.NewDimensionError(dim, len(r.embedding)))
	}
	if !domain.IsFinite(r.embedding) {
		return fmt.Errorf("%w: embedding contains non-finite values", domain.ErrInvalidRecord)
	}
	if _, ok := domain.Normalize(r.embedding); !ok {
		return fmt.Errorf("%w: embedding has zero norm", domain.ErrInvalidRecord)
	}
	return nil
}

func cloneVector(v []float32) []float32 {
	c := make([]float32, len(v))
	copy(c, v)
	return c
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	c := make([]string, len(tags))
	copy(c, tags)
	return c
}
