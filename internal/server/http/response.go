package httpserver

import (
	"encoding/json"
	"net/http"
)

// paperResponse is the JSON body served for a round's paper. The image
// is a data URL so the frontend can drop it straight into an img tag.
type paperResponse struct {
	Success bool   `json:"success"`
	Year    int    `json:"year"`
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Cites   int    `json:"cites"`
	Image   string `json:"image"`
}

// submitGuessRequest is the JSON request body for scoring a guess.
// Citation fields are pointers so an explicit 0 passes the required
// check.
type submitGuessRequest struct {
	YearGuess   int  `json:"year_guess" validate:"gte=1900,lte=2100"`
	CiteGuess   *int `json:"cite_guess" validate:"required"`
	ActualYear  int  `json:"actual_year" validate:"gte=1900,lte=2100"`
	ActualCites *int `json:"actual_cites" validate:"required,gte=0"`
}

// scoreResponse is the JSON body for a scored guess.
type scoreResponse struct {
	YearScore  int `json:"year_score"`
	CiteScore  int `json:"cite_score"`
	TotalScore int `json:"total_score"`
}

// cacheStatsResponse is the JSON body for cache statistics.
type cacheStatsResponse struct {
	CachedPapers int  `json:"cached_papers"`
	IsWarming    bool `json:"is_warming"`
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Success: false, Error: message})
}
