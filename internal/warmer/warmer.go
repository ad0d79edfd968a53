// Package warmer proactively fills the paper cache toward a target size
// with a bounded pool of pipeline workers.
package warmer

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/paperguessr/paper-guess-service/internal/domain"
	"github.com/paperguessr/paper-guess-service/internal/observability"
)

// Cache is the subset of the paper cache the warmer needs.
type Cache interface {
	Len() int
	Has(key string) bool
	Put(key string, rec *domain.PaperRecord) error
	Persist()
}

// Processor runs the acquisition pipeline for one key.
type Processor interface {
	Process(ctx context.Context, key domain.PaperKey, fetchCitations bool) (*domain.PaperRecord, error)
}

// Selector draws candidate keys, avoiding the exclude set.
type Selector interface {
	Pick(exclude map[string]struct{}) domain.PaperKey
}

// SeenSnapshotter exposes a point-in-time copy of the globally seen keys.
type SeenSnapshotter interface {
	Snapshot() map[string]struct{}
}

// Config holds warmer configuration.
type Config struct {
	// Target is the cache size at which warming stops.
	Target int

	// Workers bounds concurrent pipeline runs.
	Workers int

	// MaxPacing is the upper bound of the random delay between
	// submissions, spreading load on the external services.
	MaxPacing time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Target == 0 {
		c.Target = 1000
	}
	if c.Workers == 0 {
		c.Workers = 5
	}
	if c.MaxPacing == 0 {
		c.MaxPacing = 500 * time.Millisecond
	}
}

// Warmer is a singleton background filler. Only one warming loop runs at
// a time; triggering while one is active is a no-op. Individual pipeline
// failures are logged and dropped, and the loop never propagates a panic
// to its trigger.
type Warmer struct {
	cfg       Config
	cache     Cache
	processor Processor
	selector  Selector
	seen      SeenSnapshotter
	metrics   *observability.Metrics
	logger    zerolog.Logger

	running atomic.Bool
}

// New creates a Warmer. seen and metrics may be nil.
func New(
	cfg Config,
	cache Cache,
	processor Processor,
	selector Selector,
	seen SeenSnapshotter,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Warmer {
	cfg.applyDefaults()
	return &Warmer{
		cfg:       cfg,
		cache:     cache,
		processor: processor,
		selector:  selector,
		seen:      seen,
		metrics:   metrics,
		logger:    logger.With().Str("component", "warmer").Logger(),
	}
}

// IsWarming reports whether a warming loop is currently active.
func (w *Warmer) IsWarming() bool {
	return w.running.Load()
}

// Trigger starts a detached warming loop unless one is already running
// or the cache already meets the target. It returns immediately; the
// return value reports whether a new loop was started.
func (w *Warmer) Trigger(ctx context.Context) bool {
	if w.cache.Len() >= w.cfg.Target {
		return false
	}
	if !w.running.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer w.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error().Interface("panic", r).Msg("warming loop panicked")
			}
		}()
		w.run(ctx)
	}()
	return true
}

// run fills the cache until the target is reached or ctx is done.
func (w *Warmer) run(ctx context.Context) {
	if w.metrics != nil {
		w.metrics.WarmerRuns.Inc()
	}
	w.logger.Info().Int("target", w.cfg.Target).Int("cached", w.cache.Len()).Msg("cache warming started")

	var exclude map[string]struct{}
	if w.seen != nil {
		exclude = w.seen.Snapshot()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.cfg.Workers)

	var cached atomic.Int64
	for w.cache.Len() < w.cfg.Target && ctx.Err() == nil {
		key := w.selector.Pick(exclude)
		cacheKey := key.CacheKey()
		if w.cache.Has(cacheKey) {
			continue
		}

		group.Go(func() error {
			rec, err := w.processor.Process(groupCtx, key, true)
			if err != nil {
				// Best effort: a failed paper is simply skipped.
				return nil
			}
			if err := w.cache.Put(cacheKey, rec); err != nil {
				return nil
			}
			cached.Add(1)
			if w.metrics != nil {
				w.metrics.WarmerPapersCached.Inc()
			}
			return nil
		})

		w.pace(ctx)
	}

	_ = group.Wait()
	w.cache.Persist()

	w.logger.Info().
		Int64("papers_cached", cached.Load()).
		Int("cache_size", w.cache.Len()).
		Msg("cache warming finished")
}

// pace sleeps a random interval up to MaxPacing, or until ctx is done.
func (w *Warmer) pace(ctx context.Context) {
	delay := time.Duration(rand.Int64N(int64(w.cfg.MaxPacing)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
