// Package pipeline turns a paper key into a complete, cacheable paper
// record: fetch the PDF, rasterize page one, crop the title and
// abstract, scrape the title and DOI, and optionally resolve a citation
// count.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperguessr/paper-guess-service/internal/domain"
	"github.com/paperguessr/paper-guess-service/internal/observability"
	"github.com/paperguessr/paper-guess-service/internal/render"
)

// Stage labels used in failure metrics and stage errors.
const (
	StageFetch   = "fetch"
	StageRender  = "render"
	StageSegment = "segment"
	StageTitle   = "title"
	StageEncode  = "encode"
)

// DocumentSource fetches archive documents and their landing-page
// metadata.
type DocumentSource interface {
	FetchPDF(ctx context.Context, key domain.PaperKey) ([]byte, error)
	FetchTitleAndDOI(ctx context.Context, key domain.PaperKey) (title, doi string, err error)
}

// Segmenter crops the title and abstract region out of a page bitmap.
type Segmenter interface {
	Segment(page image.Image) (image.Image, error)
}

// CitationLookup resolves a best-effort citation count. It never fails;
// total lookup failure degrades to 0.
type CitationLookup interface {
	LookupCitationCount(ctx context.Context, doi, title string) int
}

// Config holds pipeline configuration.
type Config struct {
	// Zoom is the render resolution multiplier, shared with the
	// segmenter so band geometry matches the rasterized page.
	Zoom float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Zoom == 0 {
		c.Zoom = 2.0
	}
}

// Processor runs the acquisition pipeline. Each stage short-circuits on
// its own failure mode; a failure aborts only the one paper being
// processed and is reported as a StageError so callers can draw another
// candidate.
type Processor struct {
	cfg        Config
	source     DocumentSource
	rasterizer render.Rasterizer
	segmenter  Segmenter
	citations  CitationLookup
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// New creates a Processor. citations and metrics may be nil; a nil
// citations lookup leaves every record's count at 0.
func New(
	cfg Config,
	source DocumentSource,
	rasterizer render.Rasterizer,
	segmenter Segmenter,
	citations CitationLookup,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Processor {
	cfg.applyDefaults()
	return &Processor{
		cfg:        cfg,
		source:     source,
		rasterizer: rasterizer,
		segmenter:  segmenter,
		citations:  citations,
		metrics:    metrics,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Process builds the complete record for key. When fetchCitations is
// false the citation lookup is skipped and the count stays 0 until a
// later patch.
func (p *Processor) Process(ctx context.Context, key domain.PaperKey, fetchCitations bool) (*domain.PaperRecord, error) {
	start := time.Now()
	logger := observability.WithPaperContext(p.logger, key)

	pdf, err := p.source.FetchPDF(ctx, key)
	if err != nil {
		return nil, p.fail(logger, StageFetch, key, err)
	}

	page, err := p.rasterizer.RasterizeFirstPage(pdf, p.cfg.Zoom)
	if err != nil {
		return nil, p.fail(logger, StageRender, key, err)
	}

	cropped, err := p.segmenter.Segment(page)
	if err != nil {
		return nil, p.fail(logger, StageSegment, key, err)
	}

	title, doi, err := p.source.FetchTitleAndDOI(ctx, key)
	if err != nil {
		return nil, p.fail(logger, StageTitle, key, err)
	}

	var citationCount int
	if fetchCitations && p.citations != nil {
		citationCount = p.citations.LookupCitationCount(ctx, doi, title)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, p.fail(logger, StageEncode, key, err)
	}

	record := &domain.PaperRecord{
		Key:           key,
		Year:          key.Year,
		Sequence:      key.Sequence,
		Title:         title,
		DOI:           doi,
		CitationCount: citationCount,
		Image:         buf.Bytes(),
		CreatedAt:     time.Now().UTC(),
	}

	if p.metrics != nil {
		p.metrics.PapersProcessed.Inc()
		p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}
	logger.Info().
		Str("title", title).
		Int("citations", citationCount).
		Dur("elapsed", time.Since(start)).
		Msg("paper processed")

	return record, nil
}

// fail records a stage failure and wraps it for the caller.
func (p *Processor) fail(logger zerolog.Logger, stage string, key domain.PaperKey, err error) error {
	if p.metrics != nil {
		p.metrics.PipelineFailures.WithLabelValues(stage).Inc()
	}
	logger.Debug().Err(err).Str("stage", stage).Msg("pipeline stage failed")
	return domain.NewStageError(stage, key, err)
}
