// Package domain defines the core types shared across the paper-guess service.
package domain

import (
	"fmt"
	"time"
)

// PaperKey identifies a paper within the archive's per-year numbering.
// Sequence numbers are 1-indexed and immutable once drawn.
type PaperKey struct {
	Year     int
	Sequence int
}

// CacheKey returns the string form used as the cache map key,
// e.g. "2021_0743".
func (k PaperKey) CacheKey() string {
	return fmt.Sprintf("%d_%04d", k.Year, k.Sequence)
}

// String returns the archive-style identifier, e.g. "2021/0743".
func (k PaperKey) String() string {
	return fmt.Sprintf("%d/%04d", k.Year, k.Sequence)
}

// PaperRecord is a fully processed paper: the cropped title+abstract
// image plus the metadata a round of the game needs.
//
// A record is only ever constructed complete (non-empty title, non-nil
// image). The single permitted in-place mutation is patching
// CitationCount from 0 to a positive value once a lazy lookup succeeds.
type PaperRecord struct {
	Key           PaperKey  `json:"-"`
	Year          int       `json:"year"`
	Sequence      int       `json:"id"`
	Title         string    `json:"title"`
	DOI           string    `json:"doi,omitempty"`
	CitationCount int       `json:"cites"`
	Image         []byte    `json:"image"`
	CreatedAt     time.Time `json:"created_at"`
}

// Complete reports whether the record satisfies the cache invariant:
// records with a missing image or empty title must never be stored.
func (r *PaperRecord) Complete() bool {
	return r != nil && r.Title != "" && len(r.Image) > 0
}

// Clone returns a shallow copy safe to hand to callers while the cached
// original may still receive a citation patch.
func (r *PaperRecord) Clone() *PaperRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
