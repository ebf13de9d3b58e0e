// internal/metrics/repository.go
package metrics

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"quiz-practice/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// Get returns the user's metrics, or a zero row for users without sessions.
func (r *Repository) Get(ctx context.Context, tx *gorm.DB, userID uint) (models.UserMetrics, error) {
	var m models.UserMetrics
	err := r.conn(ctx, tx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserMetrics{UserID: userID}, nil
	}
	return m, err
}

func (r *Repository) RecentScores(ctx context.Context, tx *gorm.DB, userID uint, limit int) ([]models.SessionScore, error) {
	var scores []models.SessionScore
	err := r.conn(ctx, tx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&scores).Error
	return scores, err
}

type TopicProgress struct {
	Topic           string  `json:"topic"`
	Sessions        int     `json:"sessions"`
	AverageAccuracy float64 `json:"average_accuracy"`
	TotalPoints     int     `json:"total_points"`
}

// TopicProgress aggregates session scores per topic, weakest first.
func (r *Repository) TopicProgress(ctx context.Context, tx *gorm.DB, userID uint) ([]TopicProgress, error) {
	var rows []TopicProgress
	err := r.conn(ctx, tx).
		Model(&models.SessionScore{}).
		Select("topic, COUNT(*) AS sessions, AVG(accuracy) AS average_accuracy, SUM(points_earned) AS total_points").
		Where("user_id = ? AND topic <> ''", userID).
		Group("topic").
		Order("average_accuracy ASC").
		Scan(&rows).Error
	return rows, err
}

type GameModeStats struct {
	GameMode        string  `json:"game_mode"`
	Sessions        int     `json:"sessions"`
	AverageAccuracy float64 `json:"average_accuracy"`
	AveragePoints   float64 `json:"average_points"`
	TotalTime       int     `json:"total_time"`
}

func (r *Repository) GameModeStats(ctx context.Context, tx *gorm.DB, userID uint) ([]GameModeStats, error) {
	var rows []GameModeStats
	err := r.conn(ctx, tx).
		Model(&models.SessionScore{}).
		Select("game_mode, COUNT(*) AS sessions, AVG(accuracy) AS average_accuracy, AVG(points_earned) AS average_points, SUM(time_spent) AS total_time").
		Where("user_id = ?", userID).
		Group("game_mode").
		Order("game_mode").
		Scan(&rows).Error
	return rows, err
}

// ScoresSince returns the user's scores created at or after since, oldest first.
func (r *Repository) ScoresSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) ([]models.SessionScore, error) {
	var scores []models.SessionScore
	err := r.conn(ctx, tx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Find(&scores).Error
	return scores, err
}

type ModeTopicStats struct {
	Topic           string  `json:"topic"`
	GameMode        string  `json:"game_mode"`
	Sessions        int     `json:"sessions"`
	AverageAccuracy float64 `json:"average_accuracy"`
	AverageTime     float64 `json:"average_time"`
}

// ModeStatsSince groups the user's scores since the given time by topic and
// game mode, weakest first.
func (r *Repository) ModeStatsSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) ([]ModeTopicStats, error) {
	var rows []ModeTopicStats
	err := r.conn(ctx, tx).
		Model(&models.SessionScore{}).
		Select("topic, game_mode, COUNT(*) AS sessions, AVG(accuracy) AS average_accuracy, AVG(time_spent) AS average_time").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("topic, game_mode").
		Order("average_accuracy ASC").
		Order("topic").
		Scan(&rows).Error
	return rows, err
}
