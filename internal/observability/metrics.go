// internal/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_oracle_calls_total",
		Help: "Completion calls to the question generator by result.",
	}, []string{"result"})

	OracleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quiz_oracle_call_seconds",
		Help:    "Wall time of a completion including retries.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})

	ItemsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_items_generated_total",
		Help: "Generated items by outcome (persisted, rejected, failed).",
	}, []string{"outcome"})

	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_sessions_started_total",
		Help: "Practice sessions started by game mode.",
	}, []string{"game_mode"})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_sessions_completed_total",
		Help: "Practice sessions finalized by game mode.",
	}, []string{"game_mode"})

	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_points_awarded_total",
		Help: "Points earned across all finalized sessions.",
	})

	AchievementsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_achievements_awarded_total",
		Help: "Badges awarded by achievement id.",
	}, []string{"achievement"})

	TutorAdvice = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_tutor_advice_total",
		Help: "Tutor advice replies by result (parsed, fallback).",
	}, []string{"result"})

	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_scheduler_runs_total",
		Help: "Delivery ticks by result (ran, skipped, failed).",
	}, []string{"result"})
)
