package question

import (
	"fmt"
	"strings"
)

// MaxPromptHistory bounds how many previous questions are quoted back to the
// generator as things not to repeat.
const MaxPromptHistory = 15

const answerTemplate = `Pregunta: [your question]

A) [option A]
B) [option B]
C) [option C]
D) [option D]

Respuesta correcta: [letter]`

// BuildPrompt returns the instruction for one multiple-choice question on topic
// at level, listing the most recent previous questions as a do-not-repeat block.
func BuildPrompt(topic, level string, previous []string) string {
	var b strings.Builder
	b.WriteString("You are a rigorous professional examiner. Generate exactly ONE multiple-choice question with 4 options (A-D) and exactly 1 correct answer.\n\n")
	b.WriteString("Never invent titles, names or dates. Use only facts you are completely sure about.\n\n")
	fmt.Fprintf(&b, "TOPIC: %s\nLEVEL: %s\n", topic, level)

	if recent := lastN(previous, MaxPromptHistory); len(recent) > 0 {
		b.WriteString("\nRECENT QUESTIONS TO AVOID (do not repeat or paraphrase them):\n")
		for i, q := range recent {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}

	b.WriteString("\nMANDATORY FORMAT (copy this structure, keep the labels exactly as written):\n\n")
	b.WriteString(answerTemplate)
	b.WriteString(`

RULES:
1. Never omit options A-D.
2. Always include "Respuesta correcta:".
3. Exactly 4 options.
4. No explanations.
5. Keep the format line by line.
6. Generate ONE question only.

ACCURACY:
- Ask about fundamental, verifiable knowledge of the topic.
- Only mention the most famous, well documented works, people or events.
- If you have the slightest doubt about a detail, ask about the general concept instead.
- Vary the aspect and difficulty with respect to the questions listed above.`)
	return b.String()
}

// BuildNotesPrompt asks for one question that tests comprehension of facts
// present in the user's notes and nothing else.
func BuildNotesPrompt(notes, topic, level string) string {
	var b strings.Builder
	b.WriteString("You are an expert in educational assessment. Analyse the notes below and generate ONE multiple-choice question that tests understanding of a key concept in them.\n\n")
	fmt.Fprintf(&b, "TOPIC: %s\nLEVEL: %s\n\n", topic, level)
	fmt.Fprintf(&b, "USER NOTES:\n\"\"\"\n%s\n\"\"\"\n\n", strings.TrimSpace(notes))
	b.WriteString("MANDATORY FORMAT (copy this structure, keep the labels exactly as written):\n\n")
	b.WriteString(answerTemplate)
	b.WriteString(`

RULES:
1. ONE question only.
2. Never omit options A-D and always include "Respuesta correcta:".
3. Wrong options must be plausible but clearly incorrect.
4. No explanations or analysis.
5. Use ONLY information present in the notes. Do not bring in outside facts.`)
	return b.String()
}

func lastN(items []string, n int) []string {
	out := make([]string, 0, n)
	start := 0
	if len(items) > n {
		start = len(items) - n
	}
	for _, s := range items[start:] {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TutorStats is the learner summary a tutor prompt is built from.
type TutorStats struct {
	TimeRange       string
	Answered        int
	OverallAccuracy float64
	WeakTopics      []TopicStat
	Modes           []ModeStat
	RecentSessions  []SessionStat
}

type TopicStat struct {
	Topic    string
	Attempts int
	Accuracy float64
}

type ModeStat struct {
	Topic       string
	GameMode    string
	Sessions    int
	Accuracy    float64
	AverageTime float64
}

type SessionStat struct {
	Topic    string
	GameMode string
	Accuracy float64
	TimeUsed int
}

const tutorReplyTemplate = `{
  "analysis": "overall analysis combining scheduled questions and practice sessions",
  "strengths": ["strength 1", "strength 2"],
  "weaknesses": ["weakness 1", "weakness 2"],
  "recommendations": [
    {
      "type": "theme_review|study_technique|practice_strategy|game_mode_suggestion",
      "title": "recommendation title",
      "description": "detailed description",
      "priority": "high|medium|low"
    }
  ],
  "weekly_goals": ["goal 1", "goal 2"],
  "encouragement": "personal motivating message"
}`

// BuildTutorPrompt asks for study advice as a JSON object. Sections without
// data are left out.
func BuildTutorPrompt(s TutorStats) string {
	var b strings.Builder
	b.WriteString("You are an intelligent study tutor. Analyse the learner's metrics below and give personalised recommendations.\n\n")
	fmt.Fprintf(&b, "PERIOD: last %s\n\n", s.TimeRange)

	b.WriteString("SCHEDULED QUESTIONS:\n")
	fmt.Fprintf(&b, "- Overall accuracy: %.1f%%\n", s.OverallAccuracy)
	fmt.Fprintf(&b, "- Questions answered: %d\n", s.Answered)
	b.WriteString("- Hardest topics: ")
	if len(s.WeakTopics) == 0 {
		b.WriteString("not enough data\n")
	} else {
		weak := make([]string, len(s.WeakTopics))
		for i, t := range s.WeakTopics {
			weak[i] = fmt.Sprintf("%s (%.1f%% correct)", t.Topic, t.Accuracy)
		}
		b.WriteString(strings.Join(weak, ", ") + "\n")
	}

	if len(s.Modes) > 0 {
		b.WriteString("\nPRACTICE SESSIONS:\n")
		for _, m := range s.Modes {
			avg := "n/a"
			if m.AverageTime > 0 {
				avg = fmt.Sprintf("%.1fs", m.AverageTime)
			}
			fmt.Fprintf(&b, "- %s (%s): %d sessions, %.1f%% accuracy, average time %s\n",
				m.Topic, m.GameMode, m.Sessions, m.Accuracy, avg)
		}
	}

	if len(s.RecentSessions) > 0 {
		b.WriteString("\nRECENT SESSIONS:\n")
		for _, r := range s.RecentSessions {
			used := "untimed"
			if r.TimeUsed > 0 {
				used = fmt.Sprintf("%ds", r.TimeUsed)
			}
			fmt.Fprintf(&b, "- %s (%s): %.1f%% accuracy, %s\n", r.Topic, r.GameMode, r.Accuracy, used)
		}
	}

	b.WriteString("\nReply with a single JSON object in this format and nothing else:\n")
	b.WriteString(tutorReplyTemplate)
	b.WriteString("\n\nBe specific, constructive and motivating. Compare practice modes where it helps.")
	return b.String()
}
