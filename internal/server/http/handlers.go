package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/paperguessr/paper-guess-service/internal/domain"
)

// maxRequestBodySize limits guess submissions to 64 KB.
const maxRequestBodySize = 64 << 10

// imageDataURLPrefix prefixes the base64 PNG in paper responses.
const imageDataURLPrefix = "data:image/png;base64,"

// randomPaper handles GET /api/random-paper. The per-session seen set
// steers selection away from papers this player already saw; every
// served paper is recorded in both the session and global sets.
func (s *Server) randomPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var exclude map[string]struct{}
	sessionID := sessionIDFromContext(ctx)
	if sessionID != "" && s.sessions != nil {
		exclude = s.sessions.Session(sessionID).Snapshot()
	}

	rec, err := s.game.GetOrServeRandomPaper(ctx, exclude)
	if err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "could not find a valid paper, try again")
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.logger.Error().Err(err).Msg("serving random paper failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	cacheKey := rec.Key.CacheKey()
	if sessionID != "" && s.sessions != nil {
		s.sessions.Session(sessionID).Add(cacheKey)
	}
	if s.globalSeen != nil {
		s.globalSeen.Add(cacheKey)
	}

	writeJSON(w, http.StatusOK, paperResponse{
		Success: true,
		Year:    rec.Year,
		ID:      rec.Sequence,
		Title:   rec.Title,
		Cites:   rec.CitationCount,
		Image:   imageDataURLPrefix + base64.StdEncoding.EncodeToString(rec.Image),
	})
}

// submitGuess handles POST /api/submit-guess.
func (s *Server) submitGuess(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req submitGuessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid guess: "+err.Error())
		return
	}

	yearScore, citeScore := s.game.ScoreGuess(req.YearGuess, *req.CiteGuess, req.ActualYear, *req.ActualCites)

	writeJSON(w, http.StatusOK, scoreResponse{
		YearScore:  yearScore,
		CiteScore:  citeScore,
		TotalScore: yearScore + citeScore,
	})
}

// cacheStats handles GET /api/cache-stats.
func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	count, isWarming := s.game.CacheStats()
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		CachedPapers: count,
		IsWarming:    isWarming,
	})
}
