// internal/metrics/leaderboard.go
package metrics

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/httpx"
	"quiz-practice/internal/models"
	"quiz-practice/pkg/logger"
)

const maxLeaderboard = 100

type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type LeaderboardHandler struct {
	reader LeaderboardReader
	log    *logger.Logger
}

func NewLeaderboardHandler(reader LeaderboardReader, log *logger.Logger) *LeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LeaderboardHandler{reader: reader, log: log.With("handler", "leaderboard")}
}

func (h *LeaderboardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/leaderboard", h.Get).Methods("GET")
}

func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit")
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}
	entries, err := h.reader.GetLeaderboard(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Upstream("leaderboard unavailable", err))
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}
