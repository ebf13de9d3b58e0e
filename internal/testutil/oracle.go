// internal/testutil/oracle.go
package testutil

import (
	"context"
	"fmt"
	"sync"
)

// FakeOracle answers prompts from a reply function and records every prompt.
type FakeOracle struct {
	mu      sync.Mutex
	prompts []string
	Reply   func(call int, prompt string) (string, error)
}

func (f *FakeOracle) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts)
	f.mu.Unlock()
	if f.Reply == nil {
		return ValidReply(call), nil
	}
	return f.Reply(call, prompt)
}

func (f *FakeOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *FakeOracle) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// ValidReply renders a well-formed reply whose question text is unique per n.
func ValidReply(n int) string {
	return fmt.Sprintf(`Pregunta: Which statement about sample number %d is correct?

A) first choice %d
B) second choice %d
C) third choice %d
D) fourth choice %d

Respuesta correcta: B`, n, n, n, n, n)
}

// QuestionText is the text Parse extracts from ValidReply(n).
func QuestionText(n int) string {
	return fmt.Sprintf("Which statement about sample number %d is correct?", n)
}

// InvalidReply parses into a question with only two options.
const InvalidReply = `Pregunta: Which one is wrong here?

A) yes
B) no

Respuesta correcta: C`
