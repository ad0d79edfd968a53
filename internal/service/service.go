// Package service exposes the game-facing operations: serving a random
// paper, scoring a guess, and reporting cache statistics.
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/paperguessr/paper-guess-service/internal/domain"
	"github.com/paperguessr/paper-guess-service/internal/observability"
)

// maxSampleRetries bounds the re-samples used to dodge an excluded key
// when serving straight from the cache. A repeat is served on
// exhaustion rather than falling through to the pipeline.
const maxSampleRetries = 5

// Cache is the subset of the paper cache the service needs.
type Cache interface {
	Len() int
	Get(key string) *domain.PaperRecord
	Put(key string, rec *domain.PaperRecord) error
	Sample() *domain.PaperRecord
}

// Processor runs the acquisition pipeline for one key.
type Processor interface {
	Process(ctx context.Context, key domain.PaperKey, fetchCitations bool) (*domain.PaperRecord, error)
}

// Selector draws candidate keys, avoiding the exclude set.
type Selector interface {
	Pick(exclude map[string]struct{}) domain.PaperKey
}

// Warmer triggers detached background cache filling.
type Warmer interface {
	Trigger(ctx context.Context) bool
	IsWarming() bool
}

// Config holds service configuration.
type Config struct {
	// MinServeSize is the cache size below which sampling is skipped
	// and papers are processed on demand.
	MinServeSize int

	// MaxAttempts bounds the select-then-process loop per request.
	MaxAttempts int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MinServeSize == 0 {
		c.MinServeSize = 3
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 15
	}
}

// Game coordinates cache, selector, processor and warmer to run rounds
// of the guessing game.
type Game struct {
	cfg       Config
	cache     Cache
	processor Processor
	selector  Selector
	warmer    Warmer
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// New creates a Game. metrics may be nil.
func New(
	cfg Config,
	cache Cache,
	processor Processor,
	selector Selector,
	warmer Warmer,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Game {
	cfg.applyDefaults()
	return &Game{
		cfg:       cfg,
		cache:     cache,
		processor: processor,
		selector:  selector,
		warmer:    warmer,
		metrics:   metrics,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// GetOrServeRandomPaper returns a paper not in exclude when possible.
// A warm cache is sampled directly; otherwise up to MaxAttempts fresh
// keys are drawn and processed on demand. Every path triggers the
// background warmer. Returns domain.ErrUnavailable when all attempts
// fail.
//
// The warmer is triggered on a context detached from the request so
// warming outlives the response.
func (g *Game) GetOrServeRandomPaper(ctx context.Context, exclude map[string]struct{}) (*domain.PaperRecord, error) {
	defer g.warmer.Trigger(context.WithoutCancel(ctx))

	if g.cache.Len() >= g.cfg.MinServeSize {
		if rec := g.sampleAvoiding(exclude); rec != nil {
			g.countHit()
			return rec, nil
		}
	}

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := g.selector.Pick(exclude)
		cacheKey := key.CacheKey()

		// Another caller or the warmer may have finished this key while
		// we were drawing; re-checking avoids a redundant pipeline run.
		if rec := g.cache.Get(cacheKey); rec != nil {
			g.countHit()
			g.observeAttempts(attempt)
			return rec, nil
		}

		rec, err := g.processor.Process(ctx, key, true)
		if err != nil {
			var stageErr *domain.StageError
			if errors.As(err, &stageErr) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}

		if err := g.cache.Put(cacheKey, rec); err != nil {
			g.logger.Warn().Err(err).Str("paper", cacheKey).Msg("could not cache served paper")
		}
		g.countMiss()
		g.observeAttempts(attempt)
		return rec, nil
	}

	g.logger.Warn().Int("attempts", g.cfg.MaxAttempts).Msg("could not serve a paper")
	return nil, domain.ErrUnavailable
}

// sampleAvoiding samples the cache, retrying a few times to dodge
// excluded keys. On exhaustion the last sample is returned anyway.
func (g *Game) sampleAvoiding(exclude map[string]struct{}) *domain.PaperRecord {
	var rec *domain.PaperRecord
	for i := 0; i < maxSampleRetries; i++ {
		rec = g.cache.Sample()
		if rec == nil {
			return nil
		}
		if _, seen := exclude[rec.Key.CacheKey()]; !seen {
			return rec
		}
	}
	return rec
}

// ScoreGuess scores a guess against a paper and counts the submission.
func (g *Game) ScoreGuess(yearGuess, citeGuess, actualYear, actualCites int) (yearScore, citeScore int) {
	if g.metrics != nil {
		g.metrics.GuessesScored.Inc()
	}
	return ScorePaperGuess(yearGuess, citeGuess, actualYear, actualCites)
}

// CacheStats reports the cached paper count and whether warming is active.
func (g *Game) CacheStats() (count int, isWarming bool) {
	return g.cache.Len(), g.warmer.IsWarming()
}

func (g *Game) countHit() {
	if g.metrics != nil {
		g.metrics.CacheHits.Inc()
	}
}

func (g *Game) countMiss() {
	if g.metrics != nil {
		g.metrics.CacheMisses.Inc()
	}
}

func (g *Game) observeAttempts(attempts int) {
	if g.metrics != nil {
		g.metrics.ServeAttempts.Observe(float64(attempts))
	}
}
