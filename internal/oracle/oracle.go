// internal/oracle/oracle.go
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/observability"
	"quiz-practice/pkg/logger"
)

// Completer turns a prompt into raw generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts uint
	Temperature float64
	MaxTokens   int
}

// Client talks to an OpenAI-compatible chat endpoint (Groq by default).
type Client struct {
	model       llms.Model
	maxAttempts uint
	temperature float64
	maxTokens   int
	initialWait time.Duration
	log         *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle: api key is required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return NewWithModel(llm, cfg, log), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, cfg Config, log *logger.Logger) *Client {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		model:       model,
		maxAttempts: cfg.MaxAttempts,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		initialWait: 500 * time.Millisecond,
		log:         log.With("service", "oracle"),
	}
}

// Complete sends the prompt, retrying with exponential backoff. Once the
// attempt budget is spent the error is reported as Upstream.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
			llms.WithTemperature(c.temperature),
			llms.WithMaxTokens(c.maxTokens),
		)
		if err != nil {
			c.log.Warn("completion attempt failed", "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			c.log.Warn("completion attempt returned empty text", "attempt", attempt)
			return "", errors.New("empty completion")
		}
		return out, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialWait

	start := time.Now()
	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.maxAttempts),
	)
	observability.OracleLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.OracleCalls.WithLabelValues("error").Inc()
		return "", apperr.Upstream("question generator unavailable", err)
	}
	observability.OracleCalls.WithLabelValues("ok").Inc()
	return out, nil
}
