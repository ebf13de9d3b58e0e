package question

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minQuestionLength = 10
	errorPenalty      = 25
	warningPenalty    = 10
)

var (
	yearToken     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	properNameRun = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s+(?:(?:de|del|la|las|los|of|the)\s+)*\p{Lu}\p{Ll}+)+`)
	quotedTitle   = regexp.MustCompile(`"([^"]{15,})"`)
	longNumber    = regexp.MustCompile(`\b\d{4,}\b`)
	longWord      = regexp.MustCompile(`\b[a-z]{15,}\b`)

	technicalTopics = []string{
		"linux", "programming", "programación", "science", "ciencia",
		"mathematics", "matemáticas", "computer science", "informática",
	}
)

type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Score    int      `json:"score"`
}

type BatchReport struct {
	Total    int                `json:"total"`
	Valid    int                `json:"valid"`
	Invalid  int                `json:"invalid"`
	AvgScore float64            `json:"avg_score"`
	Results  []ValidationResult `json:"results"`
}

type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorAt pins the clock used by the future-year check.
func NewValidatorAt(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate runs every structural and heuristic check independently. Structural
// problems are errors and make the question invalid; heuristics only warn.
func (v *Validator) Validate(q StructuredQuestion, topic string) ValidationResult {
	errs := v.structuralErrors(q)
	warnings := v.hallucinationWarnings(q, topic)
	return ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
		Score:    qualityScore(q, errs, warnings),
	}
}

// ValidateBatch is the offline audit variant. With an empty topic every
// question is checked against its own Topic.
func (v *Validator) ValidateBatch(questions []StructuredQuestion, topic string) BatchReport {
	report := BatchReport{Total: len(questions), Results: make([]ValidationResult, 0, len(questions))}
	sum := 0
	for _, q := range questions {
		t := topic
		if t == "" {
			t = q.Topic
		}
		res := v.Validate(q, t)
		report.Results = append(report.Results, res)
		if res.IsValid {
			report.Valid++
		} else {
			report.Invalid++
		}
		sum += res.Score
	}
	if report.Total > 0 {
		report.AvgScore = float64(sum) / float64(report.Total)
	}
	return report
}

func (v *Validator) structuralErrors(q StructuredQuestion) []string {
	errs := []string{}
	if utf8.RuneCountInString(strings.TrimSpace(q.QuestionText)) < minQuestionLength {
		errs = append(errs, "question text is too short or empty")
	}
	if len(q.Options) != len(Letters) {
		errs = append(errs, fmt.Sprintf("expected %d options, got %d", len(Letters), len(q.Options)))
	}
	if q.CorrectAnswer == "" {
		errs = append(errs, "no correct answer specified")
	} else if !q.HasOption(q.CorrectAnswer) {
		errs = append(errs, fmt.Sprintf("correct answer %q is not among the options", q.CorrectAnswer))
	}

	texts := make(map[string]bool, len(q.Options))
	letters := make(map[string]bool, len(q.Options))
	dupText, dupLetter := false, false
	for _, opt := range q.Options {
		key := strings.ToLower(strings.TrimSpace(opt.Text))
		if texts[key] {
			dupText = true
		}
		texts[key] = true
		if letters[opt.Letter] {
			dupLetter = true
		}
		letters[opt.Letter] = true
	}
	if dupText {
		errs = append(errs, "duplicate options")
	}
	if dupLetter {
		errs = append(errs, "duplicate option letters")
	}
	return errs
}

func (v *Validator) hallucinationWarnings(q StructuredQuestion, topic string) []string {
	warnings := []string{}
	full := q.QuestionText + " " + strings.Join(q.OptionTexts(), " ")

	currentYear := v.now().Year()
	for _, m := range yearToken.FindAllString(full, -1) {
		if y, err := strconv.Atoi(m); err == nil && y > currentYear {
			warnings = append(warnings, "contains future dates (possible hallucination)")
			break
		}
	}

	for _, m := range properNameRun.FindAllString(full, -1) {
		if utf8.RuneCountInString(m) > 30 {
			warnings = append(warnings, "very specific or complex names (verify authenticity)")
			break
		}
	}

	if len(quotedTitle.FindAllString(full, -1)) > 2 {
		warnings = append(warnings, "several quoted titles (verify they exist)")
	}

	for _, m := range longNumber.FindAllString(full, -1) {
		if len(m) > 6 {
			warnings = append(warnings, "very specific numbers (verify precision)")
			break
		}
	}

	if isTechnicalTopic(topic) && longWord.MatchString(full) {
		warnings = append(warnings, "contains very long technical words (verify they exist)")
	}
	return warnings
}

func isTechnicalTopic(topic string) bool {
	t := strings.ToLower(topic)
	for _, tech := range technicalTopics {
		if strings.Contains(t, tech) {
			return true
		}
	}
	return false
}

func qualityScore(q StructuredQuestion, errs, warnings []string) int {
	score := 100 - len(errs)*errorPenalty - len(warnings)*warningPenalty
	if utf8.RuneCountInString(q.QuestionText) > 20 {
		score += 5
	}
	longOptions := true
	for _, opt := range q.Options {
		if utf8.RuneCountInString(opt.Text) <= 5 {
			longOptions = false
			break
		}
	}
	if longOptions {
		score += 5
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
