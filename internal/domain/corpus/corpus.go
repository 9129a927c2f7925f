package corpus

import (
	"fmt"
	"sort"
	"time"

	"github.com/atriumhq/atrium/internal/domain"
)

// Corpus is the full indexed collection keyed by record ID. Order is
// irrelevant; iteration helpers return records sorted by ID so that every
// derived structure (durable file, similarity matrix) is reproducible.
type Corpus struct {
	records     map[string]Record
	generatedAt time.Time
}

// NewCorpus builds a Corpus from records. Duplicate IDs are a structural
// error: the durable store must never contain two records for one image.
func NewCorpus(records []Record, generatedAt time.Time) (*Corpus, error) {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		if _, dup := m[r.ID()]; dup {
			return nil, fmt.Errorf("%w: duplicate record id %q", domain.ErrCorpusLoad, r.ID())
		}
		m[r.ID()] = r
	}
	return &Corpus{records: m, generatedAt: generatedAt}, nil
}

// Empty returns a corpus with no records.
func Empty() *Corpus {
	return &Corpus{records: make(map[string]Record)}
}

// Get returns the record for id.
func (c *Corpus) Get(id string) (Record, bool) {
	r, ok := c.records[id]
	return r, ok
}

// Upsert adds or replaces a record and bumps the generation timestamp.
func (c *Corpus) Upsert(r Record) {
	c.records[r.ID()] = r
	c.generatedAt = time.Now().UTC()
}

// Len returns the number of records, valid or not.
func (c *Corpus) Len() int { return len(c.records) }

// GeneratedAt returns the time the corpus content last changed.
func (c *Corpus) GeneratedAt() time.Time { return c.generatedAt }

// All returns every record sorted by ascending ID. Each call yields a fresh
// slice; callers may consume it independently.
func (c *Corpus) All() []Record {
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
