// internal/metrics/aggregator.go
package metrics

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quiz-practice/internal/models"
)

// Next folds one session into a metrics snapshot. The running average is
// weighted by the session count before this session.
func Next(before models.UserMetrics, o models.SessionOutcome, points int) models.UserMetrics {
	after := before
	after.TotalPoints += points
	after.TotalCorrectAnswers += o.CorrectAnswers
	after.TotalTimeSpent += o.TimeUsed
	after.TotalSessions = before.TotalSessions + 1
	after.AverageAccuracy = (before.AverageAccuracy*float64(before.TotalSessions) + o.Accuracy) / float64(after.TotalSessions)
	return after
}

type Aggregator struct {
	repo *Repository
}

func NewAggregator(repo *Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Apply adds the session to the user's metrics row inside tx and returns the
// row as it was before. The row is created on first use and then locked, so
// concurrent sessions of one user update it one after another.
func (a *Aggregator) Apply(ctx context.Context, tx *gorm.DB, userID uint, o models.SessionOutcome, points int) (models.UserMetrics, error) {
	t := a.repo.conn(ctx, tx)

	seed := models.UserMetrics{UserID: userID}
	if err := t.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return models.UserMetrics{}, fmt.Errorf("ensure metrics row: %w", err)
	}

	var before models.UserMetrics
	if err := t.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&before).Error; err != nil {
		return models.UserMetrics{}, fmt.Errorf("lock metrics row: %w", err)
	}

	after := Next(before, o, points)
	err := t.Model(&models.UserMetrics{}).
		Where("id = ?", before.ID).
		Updates(map[string]interface{}{
			"total_points":          after.TotalPoints,
			"total_sessions":        after.TotalSessions,
			"total_correct_answers": after.TotalCorrectAnswers,
			"total_time_spent":      after.TotalTimeSpent,
			"average_accuracy":      after.AverageAccuracy,
		}).Error
	if err != nil {
		return models.UserMetrics{}, fmt.Errorf("update metrics row: %w", err)
	}
	return before, nil
}
