package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/races"
	"github.com/mcdev12/typerace/internal/stats"
	"github.com/mcdev12/typerace/internal/texts"
)

// Handlers exposes the non-real-time endpoints: the solo results path,
// race history, the text corpus, and user stats.
type Handlers struct {
	races *races.App
	texts *texts.App
	stats *stats.App
}

// NewHandlers creates the REST handler set.
func NewHandlers(racesApp *races.App, textsApp *texts.App, statsApp *stats.App) *Handlers {
	return &Handlers{
		races: racesApp,
		texts: textsApp,
		stats: statsApp,
	}
}

// RegisterRoutes registers the REST routes with an HTTP mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/races", h.handleSoloResult)
	mux.HandleFunc("GET /api/races/history", h.handleRaceHistory)
	mux.HandleFunc("GET /api/texts/random", h.handleRandomText)
	mux.HandleFunc("GET /api/texts", h.handleListTexts)
	mux.HandleFunc("GET /api/stats/me", h.handleMyStats)
}

// userID extracts the caller's identity. Identity management is outside
// this service; upstream middleware is expected to set the header.
func userID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing X-User-ID header")
	}
	return uuid.Parse(raw)
}

// handleSoloResult accepts a completed solo race and applies the stats
// update; validation failures are rejected before any state mutation.
func (h *Handlers) handleSoloResult(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req races.SoloResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.races.SubmitSoloResult(r.Context(), uid, req)
	if err != nil {
		if errors.Is(err, races.ErrInvalidResult) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("user_id", uid.String()).Msg("failed to submit solo result")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRaceHistory returns the caller's ten most recent races.
func (h *Handlers) handleRaceHistory(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	history, err := h.races.RaceHistory(r.Context(), uid)
	if err != nil {
		log.Error().Err(err).Str("user_id", uid.String()).Msg("failed to load race history")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"races": history})
}

// handleRandomText returns one random passage, defaulting to medium
// difficulty.
func (h *Handlers) handleRandomText(w http.ResponseWriter, r *http.Request) {
	difficulty := models.TextDifficulty(r.URL.Query().Get("difficulty"))
	if difficulty == "" {
		difficulty = models.TextDifficultyMedium
	}
	category := r.URL.Query().Get("category")

	text, err := h.texts.RandomText(r.Context(), difficulty, category)
	if err != nil {
		if errors.Is(err, texts.ErrNoTexts) {
			writeError(w, http.StatusNotFound, "no texts available")
			return
		}
		log.Error().Err(err).Msg("failed to get random text")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"text": text})
}

// handleListTexts returns the whole corpus.
func (h *Handlers) handleListTexts(w http.ResponseWriter, r *http.Request) {
	list, err := h.texts.ListTexts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list texts")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"texts": list})
}

// handleMyStats returns the caller's cumulative profile.
func (h *Handlers) handleMyStats(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	s, err := h.stats.GetUserStats(r.Context(), uid)
	if err != nil {
		log.Error().Err(err).Str("user_id", uid.String()).Msg("failed to load user stats")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
