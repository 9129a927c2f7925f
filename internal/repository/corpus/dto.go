package corpus

import (
	"time"

	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
)

// corpusDoc is the durable representation: a single JSON document holding
// every record. Field names are the wire contract with the offline pipeline.
type corpusDoc struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Records     []recordDoc `json:"records"`
}

type recordDoc struct {
	ID             string    `json:"id"`
	Embedding      []float32 `json:"embedding"`
	Description    string    `json:"description"`
	Tags           []string  `json:"tags,omitempty"`
	FileAttributes attrsDoc  `json:"file_attributes"`
}

type attrsDoc struct {
	SizeBytes   int64     `json:"size_bytes"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ProcessedAt time.Time `json:"processed_at"`
}

func toDoc(c *domcorpus.Corpus) corpusDoc {
	records := c.All()
	docs := make([]recordDoc, 0, len(records))
	for _, r := range records {
		attrs := r.Attrs()
		docs = append(docs, recordDoc{
			ID:          r.ID(),
			Embedding:   r.Embedding(),
			Description: r.Description(),
			Tags:        r.Tags(),
			FileAttributes: attrsDoc{
				SizeBytes:   attrs.SizeBytes,
				Width:       attrs.Width,
				Height:      attrs.Height,
				ProcessedAt: attrs.ProcessedAt,
			},
		})
	}
	return corpusDoc{GeneratedAt: c.GeneratedAt(), Records: docs}
}

func fromDoc(doc corpusDoc) (*domcorpus.Corpus, error) {
	records := make([]domcorpus.Record, 0, len(doc.Records))
	for _, rd := range doc.Records {
		// Hydration keeps structurally broken embeddings: they are excluded
		// from ranking later, not dropped from storage.
		records = append(records, domcorpus.Reconstruct(
			rd.ID, rd.Embedding, rd.Description, rd.Tags,
			domcorpus.Attributes{
				SizeBytes:   rd.FileAttributes.SizeBytes,
				Width:       rd.FileAttributes.Width,
				Height:      rd.FileAttributes.Height,
				ProcessedAt: rd.FileAttributes.ProcessedAt,
			},
		))
	}
	return domcorpus.NewCorpus(records, doc.GeneratedAt)
}
