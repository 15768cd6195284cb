package agent

import (
	"context"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryConfig configures backoff for transient model failures.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns defaults tuned for hosted LLM APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// generateWithRetry calls the model with rate limiting on every attempt and
// exponential backoff between retryable failures.
func (g *Generator) generateWithRetry(ctx context.Context, messages []*ai.Message, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := g.retry.InitialInterval

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := g.model.Generate(ctx, messages, opts...)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryableError(err) {
			return nil, err
		}

		g.logger.Warn("model call failed, retrying",
			"attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > g.retry.MaxInterval {
			delay = g.retry.MaxInterval
		}
	}
	return nil, lastErr
}

// retryableError reports whether the failure is worth another attempt:
// rate limits, transient server errors, and flaky connections.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "quota exceeded", "429",
		"500", "502", "503", "504", "unavailable",
		"connection reset", "timeout", "temporary",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
