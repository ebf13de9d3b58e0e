package question

import (
	"regexp"
	"strings"
)

const noResponseText = "no response received from the generator"

var (
	// Tried in order; the first match wins.
	answerRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Respuesta correcta:\s*([ABCD])\b`),
		regexp.MustCompile(`(?i)Correcta:\s*([ABCD])\b`),
		regexp.MustCompile(`(?i)La respuesta correcta es\s*([ABCD])\b`),
	}

	blankLine     = regexp.MustCompile(`\n\s*\n`)
	questionLabel = regexp.MustCompile(`(?i)^(pregunta|question):\s*`)
	optionLine    = regexp.MustCompile(`(?im)^([ABCD])[).]\s*(.+)$`)
	optionPrefix  = regexp.MustCompile(`(?i)^[ABCD][).]\s*`)
)

// Parse extracts a question from an oracle reply that loosely follows the
// "Pregunta / A) .. D) / Respuesta correcta" template. It never fails: input it
// cannot make sense of comes back with missing parts for the validator to reject.
func Parse(topic, level, raw string) StructuredQuestion {
	q := StructuredQuestion{Topic: topic, Level: level, RawText: raw}
	if strings.TrimSpace(raw) == "" {
		q.QuestionText = noResponseText
		q.Options = []Option{}
		return q
	}

	body := normalize(raw)
	body, q.CorrectAnswer = extractAnswer(body)

	questionPart, optionsPart := splitBody(body)
	q.QuestionText = strings.TrimSpace(questionLabel.ReplaceAllString(questionPart, ""))
	q.Options = extractOptions(optionsPart)
	if len(q.Options) == 0 {
		q.Options = positionalOptions(optionsPart)
	}
	if len(q.Options) == 0 {
		q.Options = positionalOptions(body)
	}
	return q
}

func normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "*", "")
	return strings.TrimSpace(s)
}

// extractAnswer returns the body with the answer clause removed, and the letter.
func extractAnswer(body string) (string, string) {
	for _, rule := range answerRules {
		m := rule.FindStringSubmatchIndex(body)
		if m == nil {
			continue
		}
		letter := strings.ToUpper(body[m[2]:m[3]])
		end := strings.IndexByte(body[m[1]:], '\n')
		if end < 0 {
			end = len(body)
		} else {
			end += m[1]
		}
		return strings.TrimSpace(body[:m[0]] + body[end:]), letter
	}
	return body, ""
}

// splitBody separates the question segment from the options segment at the first
// blank line. Without a blank line, lines after the first one are the options.
func splitBody(body string) (string, string) {
	parts := blankLine.Split(body, -1)
	questionPart := parts[0]
	optionsPart := strings.Join(parts[1:], "\n")
	if strings.TrimSpace(optionsPart) == "" {
		if idx := strings.IndexByte(questionPart, '\n'); idx >= 0 {
			optionsPart = questionPart[idx+1:]
			questionPart = questionPart[:idx]
		}
	}
	return questionPart, optionsPart
}

func extractOptions(text string) []Option {
	options := []Option{}
	for _, m := range optionLine.FindAllStringSubmatch(text, -1) {
		if len(options) == len(Letters) {
			break
		}
		options = append(options, Option{
			Letter: strings.ToUpper(m[1]),
			Text:   strings.TrimSpace(m[2]),
		})
	}
	return options
}

func positionalOptions(text string) []Option {
	options := []Option{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(options) == len(Letters) {
			break
		}
		options = append(options, Option{
			Letter: Letters[len(options)],
			Text:   strings.TrimSpace(optionPrefix.ReplaceAllString(line, "")),
		})
	}
	return options
}
