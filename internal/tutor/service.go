// internal/tutor/service.go
package tutor

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/metrics"
	"quiz-practice/internal/observability"
	"quiz-practice/internal/oracle"
	"quiz-practice/internal/question"
	"quiz-practice/pkg/logger"
)

const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"

	minWeakAttempts = 3
	maxWeakTopics   = 5
	recentSessions  = 5

	defaultAnalysis      = "No analysis available."
	defaultEncouragement = "Every step brings you closer to your goal!"
)

type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type Advice struct {
	Analysis        string           `json:"analysis"`
	Strengths       []string         `json:"strengths"`
	Weaknesses      []string         `json:"weaknesses"`
	Recommendations []Recommendation `json:"recommendations"`
	WeeklyGoals     []string         `json:"weekly_goals"`
	Encouragement   string           `json:"encouragement"`
}

// FallbackAdvice is served when the model gives nothing usable.
func FallbackAdvice() Advice {
	return Advice{
		Analysis:   "We are still analysing your progress. Keep completing challenges to get personalised recommendations.",
		Strengths:  []string{"Commitment to learning"},
		Weaknesses: []string{"More answers are needed to find areas to improve"},
		Recommendations: []Recommendation{{
			Type:        "practice_strategy",
			Title:       "Complete more challenges",
			Description: "Answer at least 5 challenges this week to get a more precise analysis",
			Priority:    "medium",
		}},
		WeeklyGoals:   []string{"Complete 5 challenges on different topics"},
		Encouragement: "Every challenge brings you closer to your goals!",
	}
}

type Service struct {
	repo    *Repository
	metrics *metrics.Repository
	oracle  oracle.Completer
	log     *logger.Logger
	now     func() time.Time
}

func NewService(repo *Repository, metricsRepo *metrics.Repository, completer oracle.Completer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		metrics: metricsRepo,
		oracle:  completer,
		log:     log.With("service", "tutor"),
		now:     time.Now,
	}
}

func (s *Service) since(timeRange string) (time.Time, error) {
	now := s.now()
	switch timeRange {
	case RangeDay:
		return now.AddDate(0, 0, -1), nil
	case RangeWeek:
		return now.AddDate(0, 0, -7), nil
	case RangeMonth:
		return now.AddDate(0, -1, 0), nil
	}
	return time.Time{}, apperr.Validation("time_range must be day, week or month")
}

// Stats gathers what the tutor sees: answers to delivered items and practice
// sessions inside the range, weak topics over all answers, and the latest
// sessions.
func (s *Service) Stats(ctx context.Context, userID uint, timeRange string) (question.TutorStats, error) {
	stats := question.TutorStats{TimeRange: timeRange}
	since, err := s.since(timeRange)
	if err != nil {
		return stats, err
	}

	inRange, err := s.repo.AnswersByTopic(ctx, nil, userID, since)
	if err != nil {
		return stats, apperr.Persistence("load answers", err)
	}
	correct := 0
	for _, a := range inRange {
		stats.Answered += a.Answers
		correct += a.Correct
	}
	if stats.Answered > 0 {
		stats.OverallAccuracy = float64(correct) / float64(stats.Answered) * 100
	}

	allTime, err := s.repo.AnswersByTopic(ctx, nil, userID, time.Time{})
	if err != nil {
		return stats, apperr.Persistence("load answers", err)
	}
	stats.WeakTopics = weakTopics(allTime)

	modes, err := s.metrics.ModeStatsSince(ctx, nil, userID, since)
	if err != nil {
		return stats, apperr.Persistence("load session stats", err)
	}
	stats.Modes = lo.Map(modes, func(m metrics.ModeTopicStats, _ int) question.ModeStat {
		return question.ModeStat{
			Topic:       m.Topic,
			GameMode:    m.GameMode,
			Sessions:    m.Sessions,
			Accuracy:    m.AverageAccuracy,
			AverageTime: m.AverageTime,
		}
	})

	scores, err := s.metrics.RecentScores(ctx, nil, userID, recentSessions)
	if err != nil {
		return stats, apperr.Persistence("load recent sessions", err)
	}
	for _, sc := range scores {
		stats.RecentSessions = append(stats.RecentSessions, question.SessionStat{
			Topic:    sc.Topic,
			GameMode: sc.GameMode,
			Accuracy: sc.Accuracy,
			TimeUsed: sc.TimeSpent,
		})
	}
	return stats, nil
}

// weakTopics keeps topics with enough attempts, lowest accuracy first.
func weakTopics(rows []TopicAnswers) []question.TopicStat {
	out := lo.FilterMap(rows, func(a TopicAnswers, _ int) (question.TopicStat, bool) {
		if a.Answers < minWeakAttempts {
			return question.TopicStat{}, false
		}
		return question.TopicStat{
			Topic:    a.Topic,
			Attempts: a.Answers,
			Accuracy: float64(a.Correct) / float64(a.Answers) * 100,
		}, true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Accuracy < out[j].Accuracy })
	if len(out) > maxWeakTopics {
		out = out[:maxWeakTopics]
	}
	return out
}

// Advice asks the model for study advice on the user's recent activity.
// Model failures and unreadable replies yield FallbackAdvice; only invalid
// input and storage errors are returned.
func (s *Service) Advice(ctx context.Context, userID uint, timeRange string) (Advice, error) {
	if timeRange == "" {
		timeRange = RangeWeek
	}
	stats, err := s.Stats(ctx, userID, timeRange)
	if err != nil {
		return Advice{}, err
	}

	raw, err := s.oracle.Complete(ctx, question.BuildTutorPrompt(stats))
	if err != nil {
		observability.TutorAdvice.WithLabelValues("fallback").Inc()
		s.log.Warn("tutor completion failed", "user_id", userID, "error", err)
		return FallbackAdvice(), nil
	}
	advice, ok := parseAdvice(raw)
	if !ok {
		observability.TutorAdvice.WithLabelValues("fallback").Inc()
		s.log.Warn("tutor reply is not valid advice", "user_id", userID)
		return FallbackAdvice(), nil
	}
	observability.TutorAdvice.WithLabelValues("parsed").Inc()
	return advice, nil
}

// parseAdvice reads a JSON object, optionally wrapped in a markdown code
// fence. Missing fields get defaults.
func parseAdvice(raw string) (Advice, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return Advice{}, false
	}
	var a Advice
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return Advice{}, false
	}
	if strings.TrimSpace(a.Analysis) == "" {
		a.Analysis = defaultAnalysis
	}
	if strings.TrimSpace(a.Encouragement) == "" {
		a.Encouragement = defaultEncouragement
	}
	if a.Strengths == nil {
		a.Strengths = []string{}
	}
	if a.Weaknesses == nil {
		a.Weaknesses = []string{}
	}
	if a.Recommendations == nil {
		a.Recommendations = []Recommendation{}
	}
	if a.WeeklyGoals == nil {
		a.WeeklyGoals = []string{}
	}
	return a, true
}
