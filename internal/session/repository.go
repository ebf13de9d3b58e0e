// internal/session/repository.go
package session

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

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

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, s *models.Session) error {
	return r.conn(ctx, tx).Create(s).Error
}

func (r *Repository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	if err := r.conn(ctx, tx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockByID reads the session row FOR UPDATE so finalization runs once.
func (r *Repository) LockByID(ctx context.Context, tx *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	err := r.conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Complete(ctx context.Context, tx *gorm.DB, id string, o models.SessionOutcome, at time.Time) error {
	return r.conn(ctx, tx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"correct_answers": o.CorrectAnswers,
			"total_questions": o.TotalQuestions,
			"time_used":       o.TimeUsed,
			"completed_at":    at,
		}).Error
}

func (r *Repository) AddOutcomes(ctx context.Context, tx *gorm.DB, sessionID string, correct, incorrect []uint) error {
	rows := make([]models.SessionItemOutcome, 0, len(correct)+len(incorrect))
	for _, id := range correct {
		rows = append(rows, models.SessionItemOutcome{SessionID: sessionID, ItemID: id, Correct: true})
	}
	for _, id := range incorrect {
		rows = append(rows, models.SessionItemOutcome{SessionID: sessionID, ItemID: id, Correct: false})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.conn(ctx, tx).CreateInBatches(rows, 100).Error
}

func (r *Repository) AddScore(ctx context.Context, tx *gorm.DB, score *models.SessionScore) error {
	return r.conn(ctx, tx).Create(score).Error
}
