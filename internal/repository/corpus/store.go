// Package corpus persists the image corpus as a single JSON document on
// local disk. Writes go through a temp file plus rename so readers never
// observe a half-written document.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atriumhq/atrium/internal/domain"
	domcorpus "github.com/atriumhq/atrium/internal/domain/corpus"
)

// Store reads and writes the corpus file. All mutations serialize on an
// internal lock; the file itself is the single source of truth.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the corpus file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the configured corpus file location.
func (s *Store) Path() string { return s.path }

// Load reads and decodes the entire corpus document. Any failure to read or
// decode is wrapped in domain.ErrCorpusLoad so callers can fail fast.
func (s *Store) Load() (*domcorpus.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*domcorpus.Corpus, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCorpusLoad, s.path, err)
	}

	var doc corpusDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrCorpusLoad, s.path, err)
	}

	c, err := fromDoc(doc)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes the full corpus document atomically: encode to a temp file in
// the same directory, then rename over the target.
func (s *Store) Save(c *domcorpus.Corpus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(c)
}

func (s *Store) save(c *domcorpus.Corpus) error {
	data, err := json.MarshalIndent(toDoc(c), "", "  ")
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s -> %s: %w", tmpName, s.path, err)
	}
	return nil
}

// Upsert applies the given records on top of the current document and
// persists the result in one atomic write. It returns the updated corpus so
// callers can rebuild in-memory state without a second load.
func (s *Store) Upsert(records ...domcorpus.Record) (*domcorpus.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		c.Upsert(r)
	}
	if err := s.save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ModTime reports the corpus file's last modification time, used to detect
// out-of-band rewrites by the offline pipeline.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", s.path, err)
	}
	return info.ModTime(), nil
}
