package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"quiz-practice/internal/models"
)

type stubBoard struct {
	limit   int
	entries []models.LeaderboardEntry
	err     error
}

func (s *stubBoard) GetLeaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	s.limit = limit
	return s.entries, s.err
}

func TestLeaderboardHandler(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		board     *stubBoard
		status    int
		wantLimit int
		contains  string
	}{
		{"top entries", "?limit=2", &stubBoard{entries: []models.LeaderboardEntry{{UserID: 3, TotalScore: 420}, {UserID: 1, TotalScore: 90}}}, http.StatusOK, 2, `"score":420`},
		{"limit is capped", "?limit=5000", &stubBoard{}, http.StatusOK, maxLeaderboard, `"leaderboard":[]`},
		{"redis down", "", &stubBoard{err: errors.New("dial tcp: connection refused")}, http.StatusBadGateway, 0, "could not complete operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.NewRouter()
			NewLeaderboardHandler(tt.board, nil).RegisterRoutes(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
			if tt.board.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", tt.board.limit, tt.wantLimit)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.contains)
			}
		})
	}
}
