// Package httpserver provides the HTTP API for the paper guessing game.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/paperguessr/paper-guess-service/internal/dedup"
	"github.com/paperguessr/paper-guess-service/internal/domain"
)

// GameService is the game-facing surface the HTTP layer depends on.
type GameService interface {
	GetOrServeRandomPaper(ctx context.Context, exclude map[string]struct{}) (*domain.PaperRecord, error)
	ScoreGuess(yearGuess, citeGuess, actualYear, actualCites int) (yearScore, citeScore int)
	CacheStats() (count int, isWarming bool)
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	game       GameService
	sessions   *dedup.SessionRegistry
	globalSeen *dedup.SeenSet
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewServer creates the HTTP server with all dependencies.
func NewServer(
	cfg Config,
	game GameService,
	sessions *dedup.SessionRegistry,
	globalSeen *dedup.SeenSet,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		game:       game,
		sessions:   sessions,
		globalSeen: globalSeen,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Operational endpoints (no session handling)
	r.Get("/healthz", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/random-paper", s.randomPaper)
		r.Post("/submit-guess", s.submitGuess)
		r.Get("/cache-stats", s.cacheStats)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	count, _ := s.game.CacheStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"cached_papers": count,
	})
}
