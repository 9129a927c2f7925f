// Package query turns untrusted user text into a validated search request.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/atriumhq/atrium/internal/domain"
)

// Search parameter limits.
const (
	// MaxTextLength is the longest query text passed to the embedding
	// provider; longer input is truncated, not rejected.
	MaxTextLength = 200
	// MinTextLength is the shortest meaningful query after normalization.
	MinTextLength = 2
	DefaultK      = 5
	MaxK          = 100
	// DefaultMinConfidence excludes degenerate near-zero matches. The value
	// is a tuned placeholder, not a derived constant; callers can override.
	DefaultMinConfidence = 0.1
)

// Query is a validated, normalized search request. The embedding is attached
// later by the engine; the value object carries only what validation owns.
type Query struct {
	text          string
	k             int
	minConfidence float64
	truncated     bool
}

// New validates and normalizes a search request.
// Control characters are stripped and surrounding whitespace trimmed before
// any length check. Empty input maps to ErrEmptyQuery so the caller can
// answer without spending an embedding call. Text over MaxTextLength is
// deterministically truncated and flagged, never rejected.
func New(text string, k int, minConfidence float64) (Query, error) {
	normalized := strings.TrimSpace(stripControl(text))
	if normalized == "" {
		return Query{}, domain.ErrEmptyQuery
	}
	if len(normalized) < MinTextLength {
		return Query{}, fmt.Errorf("%w: query must be at least %d characters", domain.ErrInvalidQuery, MinTextLength)
	}

	truncated := false
	if len(normalized) > MaxTextLength {
		normalized = truncateUTF8(normalized, MaxTextLength)
		truncated = true
	}

	if k < 1 {
		return Query{}, fmt.Errorf("%w: k must be >= 1, got %d", domain.ErrInvalidQuery, k)
	}
	if k > MaxK {
		k = MaxK
	}
	if minConfidence < 0 || minConfidence > 1 {
		return Query{}, fmt.Errorf("%w: min_confidence must be between 0 and 1", domain.ErrInvalidQuery)
	}

	return Query{
		text:          normalized,
		k:             k,
		minConfidence: minConfidence,
		truncated:     truncated,
	}, nil
}

// Text returns the normalized query text.
func (q *Query) Text() string { return q.text }

// K returns the requested result count.
func (q *Query) K() int { return q.k }

// MinConfidence returns the minimum confidence threshold.
func (q *Query) MinConfidence() float64 { return q.minConfidence }

// Truncated reports whether the input text was cut to MaxTextLength.
// Truncation is silent to the end user but callers log it.
func (q *Query) Truncated() bool { return q.truncated }

// Fingerprint returns the result-cache key: a digest over the case-folded
// text plus the parameters that shape the result list. Two requests with the
// same fingerprint must produce identical ordered results against an
// unchanged corpus.
func (q *Query) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%.3f", strings.ToLower(q.text), q.k, q.minConfidence)
	return hex.EncodeToString(h.Sum(nil))
}

// stripControl removes control characters (including newlines and tabs)
// while keeping all printable unicode.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
