// Package question turns free-text oracle replies into structured multiple-choice
// questions and decides whether they are good enough to keep.
package question

// Letters is the ordered set of option letters a question must use.
var Letters = []string{"A", "B", "C", "D"}

type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type StructuredQuestion struct {
	Topic         string   `json:"topic"`
	Level         string   `json:"level"`
	QuestionText  string   `json:"question"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	RawText       string   `json:"raw_text"`
}

// HasOption reports whether one of the options carries the given letter.
func (q StructuredQuestion) HasOption(letter string) bool {
	for _, opt := range q.Options {
		if opt.Letter == letter {
			return true
		}
	}
	return false
}

// OptionTexts returns the option texts in their stored order.
func (q StructuredQuestion) OptionTexts() []string {
	texts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		texts[i] = opt.Text
	}
	return texts
}
