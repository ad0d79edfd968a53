// Package main provides the entry point for the paper-guess service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperguessr/paper-guess-service/internal/cache"
	"github.com/paperguessr/paper-guess-service/internal/citations"
	"github.com/paperguessr/paper-guess-service/internal/citations/openalex"
	"github.com/paperguessr/paper-guess-service/internal/citations/semanticscholar"
	"github.com/paperguessr/paper-guess-service/internal/config"
	"github.com/paperguessr/paper-guess-service/internal/dedup"
	"github.com/paperguessr/paper-guess-service/internal/eprint"
	"github.com/paperguessr/paper-guess-service/internal/observability"
	"github.com/paperguessr/paper-guess-service/internal/pipeline"
	"github.com/paperguessr/paper-guess-service/internal/render"
	"github.com/paperguessr/paper-guess-service/internal/segment"
	"github.com/paperguessr/paper-guess-service/internal/selector"
	httpserver "github.com/paperguessr/paper-guess-service/internal/server/http"
	"github.com/paperguessr/paper-guess-service/internal/service"
	"github.com/paperguessr/paper-guess-service/internal/warmer"
)

// metricsNamespace prefixes every Prometheus metric name.
const metricsNamespace = "paperguess"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-guess-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(metricsNamespace)
	}

	// Load the paper cache from disk.
	paperCache := cache.New(cache.Config{
		Path:    cfg.Cache.Path,
		MaxSize: cfg.Cache.MaxSize,
	}, metrics, logger)
	paperCache.Load()

	// Archive and rendering collaborators.
	archive := eprint.New(eprint.Config{
		BaseURL:    cfg.Archive.BaseURL,
		Timeout:    cfg.Archive.Timeout,
		MaxRetries: cfg.Archive.MaxRetries,
		RetryDelay: cfg.Archive.RetryDelay,
		MaxPDFSize: cfg.Archive.MaxPDFSize,
		RateLimit:  cfg.Archive.RateLimit,
	})
	rasterizer := render.NewMuPDF()
	segmenter := segment.New(segment.Config{
		Zoom:              cfg.Segmenter.Zoom,
		TopFraction:       cfg.Segmenter.TopFraction,
		MinAbstractLength: cfg.Segmenter.MinAbstractLength,
		MaxAbstractLength: cfg.Segmenter.MaxAbstractLength,
		MinAbstractGray:   cfg.Segmenter.MinAbstractGray,
		PadSides:          cfg.Segmenter.PadSides,
		PadTop:            cfg.Segmenter.PadTop,
		PadBottom:         cfg.Segmenter.PadBottom,
	})

	// Citation lookup chain, DOI-capable providers first.
	providers := []citations.Provider{
		openalex.New(openalex.Config{
			Enabled:   cfg.Citations.OpenAlex.Enabled,
			BaseURL:   cfg.Citations.OpenAlex.BaseURL,
			Email:     cfg.Citations.OpenAlex.Email,
			Timeout:   cfg.Citations.OpenAlex.Timeout,
			RateLimit: cfg.Citations.OpenAlex.RateLimit,
		}),
		semanticscholar.New(semanticscholar.Config{
			Enabled:   cfg.Citations.SemanticScholar.Enabled,
			BaseURL:   cfg.Citations.SemanticScholar.BaseURL,
			APIKey:    cfg.Citations.SemanticScholar.APIKey,
			Timeout:   cfg.Citations.SemanticScholar.Timeout,
			RateLimit: cfg.Citations.SemanticScholar.RateLimit,
		}),
	}
	gate := citations.NewPacingGate(citations.GateConfig{
		MinInterval:      cfg.Citations.MinInterval,
		FailureCooldown:  cfg.Citations.FailureCooldown,
		FailureThreshold: cfg.Citations.FailureThreshold,
	})
	citationChain := citations.NewChain(providers, gate, metrics, logger)

	processor := pipeline.New(
		pipeline.Config{Zoom: cfg.Segmenter.Zoom},
		archive,
		rasterizer,
		segmenter,
		citationChain,
		metrics,
		logger,
	)

	// Selection and dedup state, constructed once and shared.
	papers := selector.New(nil)
	globalSeen := dedup.NewSeenSet(dedup.DefaultCapacity)
	sessions := dedup.NewSessionRegistry(dedup.DefaultSessionCapacity, dedup.DefaultMaxSessions)

	cacheWarmer := warmer.New(warmer.Config{
		Target:    cfg.Warmer.Target,
		Workers:   cfg.Warmer.Workers,
		MaxPacing: cfg.Warmer.MaxPacing,
	}, paperCache, processor, papers, globalSeen, metrics, logger)

	game := service.New(service.Config{
		MinServeSize: cfg.Cache.MinServeSize,
		MaxAttempts:  15,
	}, paperCache, processor, papers, cacheWarmer, metrics, logger)

	// Start filling the cache right away if it came up short.
	cacheWarmer.Trigger(ctx)

	httpCfg := httpserver.Config{
		Address:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, game, sessions, globalSeen, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Int("cached_papers", paperCache.Len()).
		Msg("paper-guess-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-guess-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// One final persistence pass so warm papers survive the restart.
	paperCache.Persist()

	logger.Info().Msg("paper-guess-service shutdown complete")
	return nil
}
