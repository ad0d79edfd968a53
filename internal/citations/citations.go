// Package citations resolves citation counts for papers.
//
// Providers implement a common interface and are tried in a fixed order;
// the first non-degraded success wins. Citation counts are best-effort
// enrichment: any total failure degrades to a count of 0 and is never
// surfaced as an error to the pipeline.
package citations

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/paperguessr/paper-guess-service/internal/observability"
)

// Provider resolves a citation count from one external source.
type Provider interface {
	// Count resolves the citation count for a paper, preferring the DOI
	// when present and falling back to a title search. A count of 0
	// with a nil error is a legitimate result (uncited paper).
	Count(ctx context.Context, doi, title string) (int, error)

	// Name returns a human-readable provider name for logging and metrics.
	Name() string

	// IsEnabled returns whether this provider participates in lookups.
	IsEnabled() bool
}

// Chain tries providers in order until one returns a usable count.
// It is safe for concurrent use; the shared pacing gate serializes the
// minimum inter-call spacing across all callers.
type Chain struct {
	providers []Provider
	gate      *PacingGate
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewChain creates a lookup chain over the given providers. The order of
// the slice is the fallback order. metrics may be nil.
func NewChain(providers []Provider, gate *PacingGate, metrics *observability.Metrics, logger zerolog.Logger) *Chain {
	return &Chain{
		providers: providers,
		gate:      gate,
		metrics:   metrics,
		logger:    logger.With().Str("component", "citations").Logger(),
	}
}

// LookupCitationCount resolves a citation count, falling back across
// providers. It never returns an error: total failure yields 0.
func (c *Chain) LookupCitationCount(ctx context.Context, doi, title string) int {
	if title == "" && doi == "" {
		return 0
	}

	for _, p := range c.providers {
		if !p.IsEnabled() {
			continue
		}

		if err := c.gate.Wait(ctx); err != nil {
			return 0
		}

		count, err := p.Count(ctx, doi, title)
		if err != nil {
			c.gate.RecordFailure()
			c.countLookup(p.Name(), "degraded")
			c.logger.Warn().Err(err).Str("provider", p.Name()).Str("title", title).
				Msg("citation lookup failed, trying next provider")
			continue
		}

		c.gate.RecordSuccess()
		c.countLookup(p.Name(), "success")
		if count > 0 {
			c.logger.Debug().Str("provider", p.Name()).Int("count", count).
				Str("title", title).Msg("citation count resolved")
		}
		return count
	}

	return 0
}

func (c *Chain) countLookup(provider, outcome string) {
	if c.metrics != nil {
		c.metrics.CitationLookups.WithLabelValues(provider, outcome).Inc()
	}
}
