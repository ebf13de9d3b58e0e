// internal/observability/listener.go
package observability

import (
	"context"

	"quiz-practice/internal/models"
)

// SessionListener records committed sessions in the prometheus collectors.
type SessionListener struct{}

func (SessionListener) SessionCompleted(_ context.Context, res models.SessionResult) error {
	SessionsCompleted.WithLabelValues(res.Outcome.GameMode).Inc()
	PointsAwarded.Add(float64(res.Points))
	for _, a := range res.Achievements {
		AchievementsAwarded.WithLabelValues(a.AchievementID).Inc()
	}
	return nil
}
