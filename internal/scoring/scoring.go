// internal/scoring/scoring.go
package scoring

import "quiz-practice/internal/models"

const (
	pointsPerCorrect  = 10
	accuracyThreshold = 80
	accuracyBonus     = 50
	timeBonusCeiling  = 100
)

// Accuracy returns the percentage of correct answers, 0 when nothing was answered.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Points scores a finalized session. Timed sessions earn one bonus point per
// second left under the ceiling.
func Points(o models.SessionOutcome) int {
	points := o.CorrectAnswers * pointsPerCorrect
	if o.Accuracy >= accuracyThreshold {
		points += accuracyBonus
	}
	if o.GameMode == models.GameModeTimed {
		if bonus := timeBonusCeiling - o.TimeUsed; bonus > 0 {
			points += bonus
		}
	}
	return points
}
