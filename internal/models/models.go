// internal/models/models.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	GameModeTimed    = "timed"
	GameModeSurvival = "survival"
	GameModeNormal   = "normal"

	DisplayStatusPending = "pending"
	DisplayStatusActive  = "active"

	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"

	DefaultDeliveryTime = "09:00:00"
)

// Item is one persisted multiple-choice question owned by a user.
type Item struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Topic         string         `json:"topic" gorm:"not null;index"`
	Level         string         `json:"level"`
	QuestionText  string         `json:"question" gorm:"not null"`
	Options       datatypes.JSON `json:"options" gorm:"not null"` // [{letter,text}]
	CorrectAnswer string         `json:"correct_answer"`
	RawText       string         `json:"raw_response" gorm:"type:text"`
	OwnerUserID   uint           `json:"user_id" gorm:"not null;index"`
	DisplayStatus string         `json:"display_status" gorm:"default:pending"`
	IsActive      bool           `json:"is_active"`
	DeliveryTime  string         `json:"delivery_time"`
	Frequency     string         `json:"frequency"`
}

// ItemResponse is one answer a user gave to a delivered item.
type ItemResponse struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
	UserID         uint      `json:"user_id" gorm:"not null;index"`
	ItemID         uint      `json:"item_id" gorm:"not null;index"`
	SelectedAnswer string    `json:"selected_answer" gorm:"size:1;not null"`
	Correct        bool      `json:"correct"`
	ResponseTime   int       `json:"response_time"` // seconds
}

type Session struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt      time.Time  `json:"created_at"`
	UserID         uint       `json:"user_id" gorm:"not null;index"`
	Topic          string     `json:"topic"`
	GameMode       string     `json:"game_mode" gorm:"not null"`
	TotalQuestions int        `json:"total_questions"`
	CorrectAnswers int        `json:"correct_answers"`
	TimeUsed       int        `json:"time_used"`
	CompletedAt    *time.Time `json:"completed_at"`
}

func (Session) TableName() string {
	return "practice_sessions"
}

type SessionItemOutcome struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `json:"session_id" gorm:"size:36;not null;index"`
	ItemID    uint      `json:"item_id" gorm:"not null"`
	Correct   bool      `json:"correct"`
}

type SessionScore struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	SessionID    string    `json:"session_id" gorm:"size:36;not null;uniqueIndex"`
	PointsEarned int       `json:"points_earned"`
	Accuracy     float64   `json:"accuracy"`
	TimeSpent    int       `json:"time_spent"`
	GameMode     string    `json:"game_mode"`
	Topic        string    `json:"topic"`
}

type UserMetrics struct {
	ID                  uint      `json:"-" gorm:"primaryKey"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	UserID              uint      `json:"user_id" gorm:"not null;uniqueIndex"`
	TotalPoints         int       `json:"total_points"`
	TotalSessions       int       `json:"total_sessions"`
	TotalCorrectAnswers int       `json:"total_correct_answers"`
	TotalTimeSpent      int       `json:"total_time_spent"`
	AverageAccuracy     float64   `json:"average_accuracy"`
}

// Achievement rows are append-only; (user_id, achievement_id) is unique.
type Achievement struct {
	ID            uint      `json:"-" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_user_achievement"`
	AchievementID string    `json:"achievement_id" gorm:"size:64;not null;uniqueIndex:idx_user_achievement"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PointsEarned  int       `json:"points_earned"`
	AchievedAt    time.Time `json:"achieved_at"`
}

// SessionOutcome summarises one finalized session for scoring, metrics and badges.
type SessionOutcome struct {
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	Accuracy       float64 `json:"accuracy"`
	TimeUsed       int     `json:"time_used"`
	GameMode       string  `json:"game_mode"`
	Topic          string  `json:"topic"`
}

// SessionResult is what a committed finalization reports to its listeners.
type SessionResult struct {
	SessionID    string         `json:"session_id"`
	UserID       uint           `json:"user_id"`
	Outcome      SessionOutcome `json:"outcome"`
	Points       int            `json:"points"`
	Achievements []Achievement  `json:"achievements"`
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&Item{},
		&ItemResponse{},
		&Session{},
		&SessionItemOutcome{},
		&SessionScore{},
		&UserMetrics{},
		&Achievement{},
	}
}
