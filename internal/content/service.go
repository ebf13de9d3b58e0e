// internal/content/service.go
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/models"
	"quiz-practice/internal/observability"
	"quiz-practice/internal/oracle"
	"quiz-practice/internal/question"
	"quiz-practice/pkg/logger"
)

const (
	TimedLimit       = 10
	SurvivalLimit    = 15
	ContinuationSize = 5

	recentContextSize = 20
	maxDedupContext   = 25
	backfillLevel     = "advanced"
)

// ChallengeLimit is how many items a session of the given mode needs.
func ChallengeLimit(gameMode string) int {
	if gameMode == models.GameModeSurvival {
		return SurvivalLimit
	}
	return TimedLimit
}

type Options struct {
	// GateOnValidation refuses to persist generated items the validator rejects.
	GateOnValidation bool
	// MaxAttempts is how often one backfill slot is regenerated after a rejection.
	MaxAttempts int
}

type Service struct {
	repo      *Repository
	oracle    oracle.Completer
	validator *question.Validator
	opts      Options
	log       *logger.Logger
}

func NewService(repo *Repository, completer oracle.Completer, validator *question.Validator, opts Options, log *logger.Logger) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if validator == nil {
		validator = question.NewValidator()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		oracle:    completer,
		validator: validator,
		opts:      opts,
		log:       log.With("service", "content"),
	}
}

// EnsureSupply returns at least limit items for (userID, topic) when the
// generator cooperates. Existing items come first; the gap is generated one
// item at a time. Per-item failures shorten the supply instead of failing.
func (s *Service) EnsureSupply(ctx context.Context, userID uint, topic string, limit int) ([]models.Item, error) {
	existing, err := s.repo.FindByTopicAndUser(ctx, nil, userID, topic, limit)
	if err != nil {
		return nil, apperr.Persistence("load items", err)
	}
	if len(existing) >= limit {
		return existing, nil
	}

	needed := limit - len(existing)
	s.log.Info("backfilling items", "user_id", userID, "topic", topic, "existing", len(existing), "needed", needed)
	generated := s.backfill(ctx, userID, topic, needed)
	if len(generated) < needed {
		s.log.Warn("backfill came up short", "user_id", userID, "topic", topic, "needed", needed, "generated", len(generated))
	}
	return append(existing, generated...), nil
}

// Continuation fetches more items for a running survival session.
func (s *Service) Continuation(ctx context.Context, userID uint, topic string, used []uint) ([]models.Item, error) {
	items, err := s.repo.FindExcluding(ctx, nil, userID, topic, used, ContinuationSize)
	if err != nil {
		return nil, apperr.Persistence("load items", err)
	}
	return items, nil
}

func (s *Service) backfill(ctx context.Context, userID uint, topic string, needed int) []models.Item {
	dedup := s.dedupContext(ctx, topic)

	out := make([]models.Item, 0, needed)
	for slot := 1; slot <= needed; slot++ {
		if ctx.Err() != nil {
			s.log.Warn("backfill interrupted", "slot", slot, "error", ctx.Err())
			break
		}
		item, err := s.generateSlot(ctx, userID, topic, dedup)
		if err != nil {
			observability.ItemsGenerated.WithLabelValues("failed").Inc()
			s.log.Warn("backfill slot failed", "slot", slot, "topic", topic, "error", err)
			continue
		}
		observability.ItemsGenerated.WithLabelValues("persisted").Inc()
		out = append(out, *item)
		dedup = appendBounded(dedup, item.QuestionText, maxDedupContext)
	}
	return out
}

// dedupContext returns recent question texts oldest first.
func (s *Service) dedupContext(ctx context.Context, topic string) []string {
	recent, err := s.repo.RecentQuestionTexts(ctx, nil, topic, recentContextSize)
	if err != nil {
		s.log.Warn("could not load dedup context", "topic", topic, "error", err)
		return nil
	}
	return lo.Reverse(recent)
}

func (s *Service) generateSlot(ctx context.Context, userID uint, topic string, dedup []string) (*models.Item, error) {
	attempts := 1
	if s.opts.GateOnValidation {
		attempts = s.opts.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := s.oracle.Complete(ctx, question.BuildPrompt(topic, backfillLevel, dedup))
		if err != nil {
			return nil, err
		}
		q := question.Parse(topic, backfillLevel, raw)

		if s.opts.GateOnValidation {
			if res := s.validator.Validate(q, topic); !res.IsValid {
				observability.ItemsGenerated.WithLabelValues("rejected").Inc()
				s.log.Debug("generated item rejected", "attempt", attempt, "errors", res.Errors)
				lastErr = apperr.Validation("generated question failed quality checks")
				continue
			}
		}

		item, err := newItem(q, raw, userID, schedule{
			deliveryTime:  models.DefaultDeliveryTime,
			frequency:     models.FrequencyDaily,
			isActive:      false,
			displayStatus: models.DisplayStatusActive,
		})
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, nil, item); err != nil {
			return nil, apperr.Persistence("save generated item", err)
		}
		return item, nil
	}
	return nil, lastErr
}

type schedule struct {
	deliveryTime  string
	frequency     string
	isActive      bool
	displayStatus string
}

func newItem(q question.StructuredQuestion, raw string, ownerID uint, sch schedule) (*models.Item, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return &models.Item{
		Topic:         q.Topic,
		Level:         q.Level,
		QuestionText:  q.QuestionText,
		Options:       datatypes.JSON(opts),
		CorrectAnswer: q.CorrectAnswer,
		RawText:       raw,
		OwnerUserID:   ownerID,
		DisplayStatus: sch.displayStatus,
		IsActive:      sch.isActive,
		DeliveryTime:  sch.deliveryTime,
		Frequency:     sch.frequency,
	}, nil
}

func appendBounded(list []string, v string, max int) []string {
	list = append(list, v)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

type GenerateRequest struct {
	UserID            uint
	Topic             string
	Level             string
	PreviousQuestions []string
	DeliveryTime      string
	Frequency         string
}

type GenerateResult struct {
	Item       models.ItemDTO            `json:"item"`
	Validation question.ValidationResult `json:"validation"`
	Saved      bool                      `json:"saved"`
}

// GenerateOne produces a single validated item and stores it as an active
// scheduled item.
func (s *Service) GenerateOne(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	raw, err := s.oracle.Complete(ctx, question.BuildPrompt(req.Topic, req.Level, req.PreviousQuestions))
	if err != nil {
		return nil, err
	}
	return s.validateAndStore(ctx, req.UserID, req.Topic, req.Level, raw, true, schedule{
		deliveryTime:  orDefault(req.DeliveryTime, models.DefaultDeliveryTime),
		frequency:     orDefault(req.Frequency, models.FrequencyDaily),
		isActive:      true,
		displayStatus: models.DisplayStatusPending,
	})
}

type NotesRequest struct {
	UserID       uint
	Notes        string
	Topic        string
	Level        string
	Schedule     bool
	DeliveryTime string
	Frequency    string
}

// GenerateFromNotes asks for one question grounded only in the user's notes.
// The item is stored only when the caller wants it scheduled.
func (s *Service) GenerateFromNotes(ctx context.Context, req NotesRequest) (*GenerateResult, error) {
	raw, err := s.oracle.Complete(ctx, question.BuildNotesPrompt(req.Notes, req.Topic, req.Level))
	if err != nil {
		return nil, err
	}
	return s.validateAndStore(ctx, req.UserID, req.Topic, req.Level, raw, req.Schedule, schedule{
		deliveryTime:  orDefault(req.DeliveryTime, models.DefaultDeliveryTime),
		frequency:     orDefault(req.Frequency, models.FrequencyDaily),
		isActive:      true,
		displayStatus: models.DisplayStatusPending,
	})
}

func (s *Service) validateAndStore(ctx context.Context, userID uint, topic, level, raw string, persist bool, sch schedule) (*GenerateResult, error) {
	q := question.Parse(topic, level, raw)
	res := s.validator.Validate(q, topic)
	if !res.IsValid {
		observability.ItemsGenerated.WithLabelValues("rejected").Inc()
		s.log.Warn("generated item rejected", "topic", topic, "errors", res.Errors, "score", res.Score)
		return &GenerateResult{Validation: res}, apperr.Validation("generated question failed quality checks")
	}

	item, err := newItem(q, raw, userID, sch)
	if err != nil {
		return nil, err
	}
	if persist {
		if err := s.repo.Create(ctx, nil, item); err != nil {
			return nil, apperr.Persistence("save generated item", err)
		}
		observability.ItemsGenerated.WithLabelValues("persisted").Inc()
	}

	dto, err := item.ToDTO(true)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{Item: dto, Validation: res, Saved: persist}, nil
}

func (s *Service) Topics(ctx context.Context, userID uint) ([]string, error) {
	topics, err := s.repo.DistinctTopics(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Persistence("load topics", err)
	}
	return topics, nil
}

func (s *Service) Pending(ctx context.Context, userID uint) ([]models.ItemDTO, error) {
	items, err := s.repo.FindPending(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Persistence("load pending items", err)
	}
	return models.ItemsToDTO(items, false)
}

func (s *Service) MarkDisplayed(ctx context.Context, userID, itemID uint) error {
	ok, err := s.repo.MarkDisplayed(ctx, nil, userID, itemID)
	if err != nil {
		return apperr.Persistence("update item", err)
	}
	if !ok {
		return apperr.NotFound("item not found")
	}
	return nil
}

type AnswerRequest struct {
	UserID         uint
	ItemID         uint
	SelectedAnswer string
	ResponseTime   int
}

type AnswerResult struct {
	ResponseID    uint   `json:"response_id"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
}

// Answer grades the user's choice against the stored answer and records it.
// Items the user does not own are reported as missing.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	letter := strings.ToUpper(strings.TrimSpace(req.SelectedAnswer))
	if !lo.Contains(question.Letters, letter) {
		return nil, apperr.Validation("selected_answer must be one of A, B, C, D")
	}
	if req.ResponseTime < 0 {
		return nil, apperr.Validation("response_time must not be negative")
	}

	item, err := s.repo.GetOwned(ctx, nil, req.UserID, req.ItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("item not found")
	}
	if err != nil {
		return nil, apperr.Persistence("load item", err)
	}

	resp := &models.ItemResponse{
		UserID:         req.UserID,
		ItemID:         item.ID,
		SelectedAnswer: letter,
		Correct:        letter == item.CorrectAnswer,
		ResponseTime:   req.ResponseTime,
	}
	if err := s.repo.CreateResponse(ctx, nil, resp); err != nil {
		return nil, apperr.Persistence("save response", err)
	}
	return &AnswerResult{ResponseID: resp.ID, Correct: resp.Correct, CorrectAnswer: item.CorrectAnswer}, nil
}

// DueScheduled returns active scheduled items whose delivery is due at now:
// the delivery time of day has passed and the item is at least one period old.
func (s *Service) DueScheduled(ctx context.Context, now time.Time) ([]models.Item, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	candidates, err := s.repo.ActiveScheduled(ctx, nil, startOfDay)
	if err != nil {
		return nil, apperr.Persistence("load scheduled items", err)
	}

	due := make([]models.Item, 0, len(candidates))
	for _, it := range candidates {
		if isDue(it, now, startOfDay) {
			due = append(due, it)
		}
	}
	return due, nil
}

func isDue(it models.Item, now, startOfDay time.Time) bool {
	at, err := time.ParseInLocation("15:04:05", orDefault(it.DeliveryTime, models.DefaultDeliveryTime), now.Location())
	if err != nil {
		return false
	}
	deliverAt := startOfDay.Add(time.Duration(at.Hour())*time.Hour +
		time.Duration(at.Minute())*time.Minute +
		time.Duration(at.Second())*time.Second)
	if now.Before(deliverAt) {
		return false
	}

	switch it.Frequency {
	case models.FrequencyWeekly:
		return !it.CreatedAt.After(startOfDay.AddDate(0, 0, -7))
	default:
		return it.CreatedAt.Before(startOfDay)
	}
}

// Redeliver generates the next item of a schedule and retires the old one.
// The old item stays active when generation fails so the next tick retries.
func (s *Service) Redeliver(ctx context.Context, old models.Item) (*GenerateResult, error) {
	previous, err := s.repo.RecentQuestionTexts(ctx, nil, old.Topic, question.MaxPromptHistory)
	if err != nil {
		s.log.Warn("could not load previous questions", "topic", old.Topic, "error", err)
	}
	res, err := s.GenerateOne(ctx, GenerateRequest{
		UserID:            old.OwnerUserID,
		Topic:             old.Topic,
		Level:             old.Level,
		PreviousQuestions: lo.Reverse(previous),
		DeliveryTime:      old.DeliveryTime,
		Frequency:         old.Frequency,
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.Deactivate(ctx, nil, old.ID)
	if err != nil {
		return res, apperr.Persistence("deactivate delivered item", err)
	}
	if !ok {
		s.log.Warn("item was already deactivated", "item_id", old.ID)
	}
	return res, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
