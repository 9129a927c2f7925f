// Package search holds the in-memory similarity index built from the corpus.
package search

import (
	"time"

	"github.com/atriumhq/atrium/internal/domain"
	"github.com/atriumhq/atrium/internal/domain/corpus"
)

// Index is an immutable ranking snapshot: every valid record's embedding,
// unit-normalized, packed row-major into one flat slice. Scoring a query is
// a single matrix-vector product. Rebuilds produce a new Index; readers keep
// scoring against the snapshot they hold.
type Index struct {
	dim          int
	ids          []string
	vectors      []float32
	records      []corpus.Record
	invalidCount int
	generatedAt  time.Time
}

// BuildIndex constructs an Index from the corpus. dim fixes the expected
// embedding dimension; dim 0 infers it from the first structurally valid
// record. Records that fail validation (wrong dimension, non-finite values,
// zero norm) are counted and skipped, never dropped from the corpus itself.
func BuildIndex(c *corpus.Corpus, dim int) *Index {
	all := c.All()
	ix := &Index{
		dim:         dim,
		ids:         make([]string, 0, len(all)),
		records:     make([]corpus.Record, 0, len(all)),
		generatedAt: c.GeneratedAt(),
	}

	for _, r := range all {
		if ix.dim == 0 && len(r.Embedding()) > 0 {
			if err := r.Validate(len(r.Embedding())); err == nil {
				ix.dim = len(r.Embedding())
			}
		}
		if err := r.Validate(ix.dim); err != nil {
			ix.invalidCount++
			continue
		}
		unit, ok := domain.Normalize(r.Embedding())
		if !ok {
			ix.invalidCount++
			continue
		}
		ix.ids = append(ix.ids, r.ID())
		ix.records = append(ix.records, r)
		ix.vectors = append(ix.vectors, unit...)
	}
	return ix
}

// Dim returns the embedding dimension the index expects. Zero means the
// index is empty and no dimension could be inferred.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of scoreable records.
func (ix *Index) Len() int { return len(ix.ids) }

// InvalidCount returns the number of records excluded during the build.
func (ix *Index) InvalidCount() int { return ix.invalidCount }

// GeneratedAt returns the corpus generation time this snapshot was built from.
func (ix *Index) GeneratedAt() time.Time { return ix.generatedAt }

// ID returns the record ID for row i.
func (ix *Index) ID(i int) string { return ix.ids[i] }

// Record returns the record for row i.
func (ix *Index) Record(i int) corpus.Record { return ix.records[i] }

// Similarities scores a unit-normalized query against every row. The result
// is the cosine similarity per row, clamped to [-1, 1] against float
// rounding. A query of the wrong dimension returns ErrDimensionMismatch.
func (ix *Index) Similarities(queryUnit []float32) ([]float64, error) {
	if ix.Len() == 0 {
		return nil, nil
	}
	if len(queryUnit) != ix.dim {
		return nil, domain.NewDimensionError(ix.dim, len(queryUnit))
	}

	scores := make([]float64, ix.Len())
	for row := 0; row < ix.Len(); row++ {
		base := row * ix.dim
		var dot float64
		for j, q := range queryUnit {
			dot += float64(ix.vectors[base+j]) * float64(q)
		}
		if dot > 1 {
			dot = 1
		} else if dot < -1 {
			dot = -1
		}
		scores[row] = dot
	}
	return scores, nil
}
