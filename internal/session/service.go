// internal/session/service.go
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/content"
	"quiz-practice/internal/models"
	"quiz-practice/internal/observability"
	"quiz-practice/internal/scoring"
	"quiz-practice/pkg/logger"
)

const listenerTimeout = 5 * time.Second

// Supplier hands out items for a session.
type Supplier interface {
	EnsureSupply(ctx context.Context, userID uint, topic string, limit int) ([]models.Item, error)
	Continuation(ctx context.Context, userID uint, topic string, used []uint) ([]models.Item, error)
}

// MetricsApplier folds a session into the user's metrics and returns the
// snapshot from before.
type MetricsApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, userID uint, o models.SessionOutcome, points int) (models.UserMetrics, error)
}

type Awarder interface {
	Award(ctx context.Context, tx *gorm.DB, userID uint, before *models.UserMetrics, o models.SessionOutcome, points int) ([]models.Achievement, error)
}

// Listener is told about a session after its transaction committed.
type Listener interface {
	SessionCompleted(ctx context.Context, res models.SessionResult) error
}

type Service struct {
	db        *gorm.DB
	repo      *Repository
	supplier  Supplier
	metrics   MetricsApplier
	awarder   Awarder
	listeners []Listener
	log       *logger.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, repo *Repository, supplier Supplier, metrics MetricsApplier, awarder Awarder, log *logger.Logger, listeners ...Listener) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		db:        db,
		repo:      repo,
		supplier:  supplier,
		metrics:   metrics,
		awarder:   awarder,
		listeners: listeners,
		log:       log.With("service", "session"),
		now:       time.Now,
	}
}

type StartResult struct {
	SessionID string           `json:"session_id"`
	GameMode  string           `json:"game_mode"`
	Items     []models.ItemDTO `json:"items"`
}

// Start backfills the user's supply for the topic and opens a session over it.
func (s *Service) Start(ctx context.Context, userID uint, topic, gameMode string) (*StartResult, error) {
	items, err := s.supplier.EnsureSupply(ctx, userID, topic, content.ChallengeLimit(gameMode))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("no items for this topic")
	}

	dtos, err := models.ItemsToDTO(items, true)
	if err != nil {
		return nil, apperr.Persistence("decode items", err)
	}

	sess := &models.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Topic:          topic,
		GameMode:       gameMode,
		TotalQuestions: len(items),
	}
	if err := s.repo.Create(ctx, nil, sess); err != nil {
		return nil, apperr.Persistence("create session", err)
	}

	observability.SessionsStarted.WithLabelValues(gameMode).Inc()
	s.log.Info("session started", "session_id", sess.ID, "user_id", userID, "topic", topic, "game_mode", gameMode, "items", len(items))
	return &StartResult{SessionID: sess.ID, GameMode: gameMode, Items: dtos}, nil
}

// ContinueSurvival returns more unused items for a running session.
func (s *Service) ContinueSurvival(ctx context.Context, sessionID string, userID uint, topic string, used []uint) ([]models.ItemDTO, error) {
	sess, err := s.repo.GetByID(ctx, nil, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && sess.UserID != userID) {
		return nil, apperr.NotFound("session not found")
	}
	if err != nil {
		return nil, apperr.Persistence("load session", err)
	}
	if topic == "" {
		topic = sess.Topic
	}

	items, err := s.supplier.Continuation(ctx, userID, topic, used)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("no more items for this topic")
	}
	dtos, err := models.ItemsToDTO(items, true)
	if err != nil {
		return nil, apperr.Persistence("decode items", err)
	}
	return dtos, nil
}

type SaveRequest struct {
	SessionID        string
	UserID           uint
	CorrectItemIDs   []uint
	IncorrectItemIDs []uint
	GameMode         string
	TimeUsed         int
	Topic            string
}

type SaveResult struct {
	Points       int                  `json:"points"`
	Accuracy     float64              `json:"accuracy"`
	Achievements []models.Achievement `json:"achievements"`
}

// SaveResults finalizes a session in one transaction: session row, per-item
// outcomes, score, metrics and achievements commit or roll back together.
// Listeners only hear about committed results.
func (s *Service) SaveResults(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	var (
		result  SaveResult
		outcome models.SessionOutcome
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.repo.LockByID(ctx, tx, req.SessionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("session not found")
		}
		if err != nil {
			return apperr.Persistence("load session", err)
		}
		if sess.UserID != req.UserID {
			return apperr.NotFound("session not found")
		}
		if sess.CompletedAt != nil {
			return apperr.Validation("session already completed")
		}

		total := len(req.CorrectItemIDs) + len(req.IncorrectItemIDs)
		outcome = models.SessionOutcome{
			CorrectAnswers: len(req.CorrectItemIDs),
			TotalQuestions: total,
			Accuracy:       scoring.Accuracy(len(req.CorrectItemIDs), total),
			TimeUsed:       req.TimeUsed,
			GameMode:       firstNonEmpty(req.GameMode, sess.GameMode),
			Topic:          firstNonEmpty(req.Topic, sess.Topic),
		}
		points := scoring.Points(outcome)

		if err := s.repo.Complete(ctx, tx, sess.ID, outcome, s.now()); err != nil {
			return apperr.Persistence("complete session", err)
		}
		if err := s.repo.AddOutcomes(ctx, tx, sess.ID, req.CorrectItemIDs, req.IncorrectItemIDs); err != nil {
			return apperr.Persistence("save item outcomes", err)
		}
		if err := s.repo.AddScore(ctx, tx, &models.SessionScore{
			UserID:       sess.UserID,
			SessionID:    sess.ID,
			PointsEarned: points,
			Accuracy:     outcome.Accuracy,
			TimeSpent:    outcome.TimeUsed,
			GameMode:     outcome.GameMode,
			Topic:        outcome.Topic,
		}); err != nil {
			return apperr.Persistence("save session score", err)
		}

		before, err := s.metrics.Apply(ctx, tx, sess.UserID, outcome, points)
		if err != nil {
			return apperr.Persistence("update metrics", err)
		}
		awarded, err := s.awarder.Award(ctx, tx, sess.UserID, &before, outcome, points)
		if err != nil {
			return apperr.Persistence("award achievements", err)
		}

		result = SaveResult{Points: points, Accuracy: outcome.Accuracy, Achievements: awarded}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Persistence("commit session results", err)
		}
		if apperr.KindOf(err) == apperr.KindPersistence {
			s.log.Error("session finalization rolled back", "session_id", req.SessionID, "error", err)
		}
		return nil, err
	}
	if result.Achievements == nil {
		result.Achievements = []models.Achievement{}
	}

	s.log.Info("session completed", "session_id", req.SessionID, "user_id", req.UserID, "points", result.Points, "achievements", len(result.Achievements))
	s.notify(ctx, models.SessionResult{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		Outcome:      outcome,
		Points:       result.Points,
		Achievements: result.Achievements,
	})
	return &result, nil
}

func (s *Service) notify(ctx context.Context, res models.SessionResult) {
	if len(s.listeners) == 0 {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listenerTimeout)
	defer cancel()
	for _, l := range s.listeners {
		if err := l.SessionCompleted(nctx, res); err != nil {
			s.log.Warn("session listener failed", "session_id", res.SessionID, "error", err)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
