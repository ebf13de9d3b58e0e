// internal/tutor/repository.go
package tutor

import (
	"context"
	"time"

	"gorm.io/gorm"
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

type TopicAnswers struct {
	Topic   string
	Answers int
	Correct int
	AvgTime float64
}

// AnswersByTopic counts the user's answers to delivered items since the
// given time, per item topic.
func (r *Repository) AnswersByTopic(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) ([]TopicAnswers, error) {
	var rows []TopicAnswers
	err := r.conn(ctx, tx).
		Table("item_responses AS r").
		Select("i.topic AS topic, COUNT(*) AS answers, SUM(CASE WHEN r.correct THEN 1 ELSE 0 END) AS correct, AVG(r.response_time) AS avg_time").
		Joins("JOIN items AS i ON i.id = r.item_id").
		Where("r.user_id = ? AND r.created_at >= ?", userID, since).
		Group("i.topic").
		Order("i.topic").
		Scan(&rows).Error
	return rows, err
}
