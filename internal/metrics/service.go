// internal/metrics/service.go
package metrics

import (
	"context"
	"time"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/models"
)

const (
	DefaultRecentScores = 20
	DefaultTimelineDays = 30
	maxTimelineDays     = 365
)

// AchievementLister reads a user's earned badges.
type AchievementLister interface {
	List(ctx context.Context, userID uint) ([]models.Achievement, error)
}

type Service struct {
	repo         *Repository
	achievements AchievementLister
	now          func() time.Time
}

func NewService(repo *Repository, achievements AchievementLister) *Service {
	return &Service{repo: repo, achievements: achievements, now: time.Now}
}

type Overview struct {
	Metrics      models.UserMetrics    `json:"metrics"`
	Achievements []models.Achievement  `json:"achievements"`
	RecentScores []models.SessionScore `json:"recent_sessions"`
}

func (s *Service) Overview(ctx context.Context, userID uint, recent int) (*Overview, error) {
	if recent <= 0 {
		recent = DefaultRecentScores
	}
	m, err := s.repo.Get(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Persistence("load metrics", err)
	}
	scores, err := s.repo.RecentScores(ctx, nil, userID, recent)
	if err != nil {
		return nil, apperr.Persistence("load session scores", err)
	}
	badges, err := s.achievements.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if scores == nil {
		scores = []models.SessionScore{}
	}
	if badges == nil {
		badges = []models.Achievement{}
	}
	return &Overview{Metrics: m, Achievements: badges, RecentScores: scores}, nil
}

func (s *Service) Topics(ctx context.Context, userID uint) ([]TopicProgress, error) {
	rows, err := s.repo.TopicProgress(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Persistence("load topic progress", err)
	}
	return rows, nil
}

func (s *Service) GameModes(ctx context.Context, userID uint) ([]GameModeStats, error) {
	rows, err := s.repo.GameModeStats(ctx, nil, userID)
	if err != nil {
		return nil, apperr.Persistence("load game mode stats", err)
	}
	return rows, nil
}

type TimelineDay struct {
	Date          string  `json:"date"`
	Sessions      int     `json:"sessions"`
	DailyAccuracy float64 `json:"daily_accuracy"`
	DailyPoints   int     `json:"daily_points"`
}

// Timeline buckets the last days of sessions by calendar day, oldest first.
// Days without sessions are omitted.
func (s *Service) Timeline(ctx context.Context, userID uint, days int) ([]TimelineDay, error) {
	if days <= 0 {
		days = DefaultTimelineDays
	}
	if days > maxTimelineDays {
		days = maxTimelineDays
	}
	now := s.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))

	scores, err := s.repo.ScoresSince(ctx, nil, userID, since)
	if err != nil {
		return nil, apperr.Persistence("load timeline", err)
	}

	out := []TimelineDay{}
	var accSum float64
	for _, sc := range scores {
		date := sc.CreatedAt.In(now.Location()).Format("2006-01-02")
		if len(out) == 0 || out[len(out)-1].Date != date {
			if len(out) > 0 {
				out[len(out)-1].DailyAccuracy = accSum / float64(out[len(out)-1].Sessions)
			}
			out = append(out, TimelineDay{Date: date})
			accSum = 0
		}
		day := &out[len(out)-1]
		day.Sessions++
		day.DailyPoints += sc.PointsEarned
		accSum += sc.Accuracy
	}
	if len(out) > 0 {
		out[len(out)-1].DailyAccuracy = accSum / float64(out[len(out)-1].Sessions)
	}
	return out, nil
}
