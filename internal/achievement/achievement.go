// internal/achievement/achievement.go
package achievement

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/metrics"
	"quiz-practice/internal/models"
)

const (
	FirstSession     = "first_session"
	PerfectAccuracy  = "perfect_accuracy"
	SurvivalMaster   = "survival_master"
	DedicatedLearner = "dedicated_learner"
	PointMaster      = "point_master"
)

type Badge struct {
	ID          string
	Name        string
	Description string
	Points      int
}

var catalog = map[string]Badge{
	FirstSession:     {FirstSession, "First Steps", "Completed your first practice session", 50},
	PerfectAccuracy:  {PerfectAccuracy, "Perfect!", "Reached 100% accuracy in a session of at least 5 questions", 100},
	SurvivalMaster:   {SurvivalMaster, "Survival Master", "Answered every question of a survival run of at least 3 questions", 200},
	DedicatedLearner: {DedicatedLearner, "Dedicated Learner", "Completed 5 practice sessions", 150},
	PointMaster:      {PointMaster, "Point Master", "Reached 100 total points", 50},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Badge, bool) {
	b, ok := catalog[id]
	return b, ok
}

// Evaluate returns the badges whose threshold this session crosses, given the
// user's metrics before the session.
func Evaluate(before models.UserMetrics, o models.SessionOutcome, points int) []Badge {
	var out []Badge
	afterSessions := before.TotalSessions + 1
	afterPoints := before.TotalPoints + points

	if before.TotalSessions == 0 {
		out = append(out, catalog[FirstSession])
	}
	if o.GameMode != models.GameModeSurvival && o.Accuracy == 100 && o.TotalQuestions >= 5 {
		out = append(out, catalog[PerfectAccuracy])
	}
	if o.GameMode == models.GameModeSurvival && o.CorrectAnswers == o.TotalQuestions && o.TotalQuestions >= 3 {
		out = append(out, catalog[SurvivalMaster])
	}
	if before.TotalSessions < 5 && afterSessions >= 5 {
		out = append(out, catalog[DedicatedLearner])
	}
	if before.TotalPoints < 100 && afterPoints >= 100 {
		out = append(out, catalog[PointMaster])
	}
	return out
}

type Engine struct {
	db      *gorm.DB
	metrics *metrics.Repository
	now     func() time.Time
}

func NewEngine(db *gorm.DB, metricsRepo *metrics.Repository) *Engine {
	return &Engine{db: db, metrics: metricsRepo, now: time.Now}
}

func (e *Engine) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return e.db.WithContext(ctx)
}

// Award inserts every badge the session earns and returns the ones that were
// new. before is the metrics snapshot taken ahead of this session's update;
// when nil it is read from tx and a missing row counts as zero. A badge that
// already exists for the user is skipped by the unique index, not by a prior
// lookup, so concurrent awards cannot duplicate it.
func (e *Engine) Award(ctx context.Context, tx *gorm.DB, userID uint, before *models.UserMetrics, o models.SessionOutcome, points int) ([]models.Achievement, error) {
	t := e.conn(ctx, tx)

	var baseline models.UserMetrics
	if before != nil {
		baseline = *before
	} else {
		m, err := e.metrics.Get(ctx, tx, userID)
		if err != nil {
			return nil, fmt.Errorf("read metrics baseline: %w", err)
		}
		baseline = m
	}

	awarded := []models.Achievement{}
	for _, b := range Evaluate(baseline, o, points) {
		row := models.Achievement{
			UserID:        userID,
			AchievementID: b.ID,
			Name:          b.Name,
			Description:   b.Description,
			PointsEarned:  b.Points,
			AchievedAt:    e.now(),
		}
		res := t.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return nil, fmt.Errorf("insert achievement %s: %w", b.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			awarded = append(awarded, row)
		}
	}
	return awarded, nil
}

// List returns the user's badges in award order.
func (e *Engine) List(ctx context.Context, userID uint) ([]models.Achievement, error) {
	var rows []models.Achievement
	err := e.conn(ctx, nil).
		Where("user_id = ?", userID).
		Order("achieved_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Persistence("load achievements", err)
	}
	return rows, nil
}
