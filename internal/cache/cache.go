// Package cache provides the bounded, disk-backed store of processed
// paper records.
//
// The cache is a best-effort performance layer, not a source of truth:
// persistence failures are logged and the cache continues in memory, and
// a missing or corrupt cache file on startup simply means starting empty.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/paperguessr/paper-guess-service/internal/domain"
	"github.com/paperguessr/paper-guess-service/internal/observability"
)

// Config holds cache configuration.
type Config struct {
	// Path is the file path for cache persistence.
	Path string

	// MaxSize is the maximum number of records a persistence pass keeps.
	// The in-memory map may briefly exceed it between a Put and the next
	// persistence pass.
	MaxSize int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = ".cache/paper_cache.json"
	}
	if c.MaxSize == 0 {
		c.MaxSize = 2000
	}
}

// PaperCache is a mutex-protected map of cache keys to paper records
// with asynchronous, coalesced JSON persistence. It is safe for
// concurrent use; no lock is ever held across file or network I/O.
type PaperCache struct {
	cfg     Config
	metrics *observability.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	records map[string]*domain.PaperRecord

	// persistMu serializes persistence passes; persistQueued coalesces
	// bursts of Puts into a single follow-up pass.
	persistMu     sync.Mutex
	persistQueued atomic.Bool
}

// New creates an empty cache. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *PaperCache {
	cfg.applyDefaults()
	return &PaperCache{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "cache").Logger(),
		records: make(map[string]*domain.PaperRecord),
	}
}

// Load repopulates the cache from the persistence file. A missing or
// corrupt file is treated as an empty cache and never returns an error
// to the caller; the condition is logged instead.
func (c *PaperCache) Load() {
	data, err := os.ReadFile(c.cfg.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn().Err(err).Str("path", c.cfg.Path).Msg("could not read cache file, starting empty")
		}
		return
	}

	var stored map[string]*domain.PaperRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		c.logger.Warn().Err(err).Str("path", c.cfg.Path).Msg("corrupt cache file, starting empty")
		return
	}

	loaded := make(map[string]*domain.PaperRecord, len(stored))
	for key, rec := range stored {
		rec.Key = domain.PaperKey{Year: rec.Year, Sequence: rec.Sequence}
		if !rec.Complete() {
			continue
		}
		loaded[key] = rec
	}

	c.mu.Lock()
	c.records = loaded
	size := len(c.records)
	c.mu.Unlock()

	c.setSizeMetric(size)
	c.logger.Info().Int("papers", size).Msg("cache loaded from disk")
}

// Get returns a copy of the record for key, or nil if absent.
func (c *PaperCache) Get(key string) *domain.PaperRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[key].Clone()
}

// Has reports whether key is cached.
func (c *PaperCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.records[key]
	return ok
}

// Len returns the current number of cached records.
func (c *PaperCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Put stores a complete record under key, overwriting any previous
// entry, and queues an asynchronous persistence pass. Incomplete records
// are rejected: the cache invariant is that stored records always carry
// a title and an image.
func (c *PaperCache) Put(key string, rec *domain.PaperRecord) error {
	if !rec.Complete() {
		return fmt.Errorf("cache: refusing to store incomplete record for %s", key)
	}

	c.mu.Lock()
	c.records[key] = rec
	size := len(c.records)
	c.mu.Unlock()

	c.setSizeMetric(size)
	c.persistAsync()
	return nil
}

// PatchCitations upgrades a stored record's citation count from 0 to a
// positive value. It never downgrades a non-zero count and is idempotent
// under repeated calls.
func (c *PaperCache) PatchCitations(key string, count int) {
	if count <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	if !ok || rec.CitationCount != 0 {
		return
	}
	rec.CitationCount = count
}

// Sample returns a copy of a uniformly random cached record, or nil if
// the cache is empty.
func (c *PaperCache) Sample() *domain.PaperRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return nil
	}
	n := rand.IntN(len(c.records))
	for _, rec := range c.records {
		if n == 0 {
			return rec.Clone()
		}
		n--
	}
	return nil
}

// Persist synchronously writes the cache to disk, trimmed to the
// MaxSize most-recently-stamped records. Errors are logged and counted
// but never fatal.
func (c *PaperCache) Persist() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	snapshot := c.snapshotTrimmed()

	if err := c.writeFile(snapshot); err != nil {
		c.logger.Warn().Err(err).Str("path", c.cfg.Path).Msg("could not persist cache")
		if c.metrics != nil {
			c.metrics.CachePersistErrors.Inc()
		}
	}
}

// persistAsync queues a persistence pass unless one is already queued.
func (c *PaperCache) persistAsync() {
	if !c.persistQueued.CompareAndSwap(false, true) {
		return
	}
	go func() {
		c.persistQueued.Store(false)
		c.Persist()
	}()
}

// snapshotTrimmed copies the newest MaxSize records under the cache lock.
func (c *PaperCache) snapshotTrimmed() map[string]*domain.PaperRecord {
	c.mu.Lock()
	entries := make([]struct {
		key string
		rec *domain.PaperRecord
	}, 0, len(c.records))
	for key, rec := range c.records {
		entries = append(entries, struct {
			key string
			rec *domain.PaperRecord
		}{key, rec.Clone()})
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rec.CreatedAt.After(entries[j].rec.CreatedAt)
	})
	if len(entries) > c.cfg.MaxSize {
		entries = entries[:c.cfg.MaxSize]
	}

	out := make(map[string]*domain.PaperRecord, len(entries))
	for _, e := range entries {
		out[e.key] = e.rec
	}
	return out
}

// writeFile atomically replaces the cache file with the snapshot.
func (c *PaperCache) writeFile(snapshot map[string]*domain.PaperRecord) error {
	if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp := c.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, c.cfg.Path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (c *PaperCache) setSizeMetric(size int) {
	if c.metrics != nil {
		c.metrics.CacheSize.Set(float64(size))
	}
}
