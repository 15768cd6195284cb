// Package agent orchestrates answer generation: it drives the model through
// a bounded number of tool-calling rounds, executes the requested searches,
// and collects the sources the answer was grounded on.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
	"github.com/studyowl/studyowl/internal/tools"
)

// DefaultMaxToolRounds bounds how many times the model may call tools for
// one question. Two rounds lets it refine a failed search once; after that
// it must answer with what it has.
const DefaultMaxToolRounds = 2

// Response is one answered question.
type Response struct {
	Answer  string
	Sources []course.Source
}

// ModelClient abstracts one model call so the tool loop can be tested with
// scripted responses. The transcript is passed explicitly; opts carry the
// system instruction and tool configuration.
type ModelClient interface {
	Generate(ctx context.Context, messages []*ai.Message, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// ToolRunner executes one tool request by name.
type ToolRunner interface {
	Run(ctx context.Context, req *ai.ToolRequest) (any, error)
}

// Config holds Generator dependencies.
type Config struct {
	Model    ModelClient
	Runner   ToolRunner
	ToolRefs []ai.ToolRef // tools offered to the model, already registered
	Logger   log.Logger

	// MaxToolRounds overrides DefaultMaxToolRounds when positive.
	MaxToolRounds int

	// RateLimiter throttles model calls; nil means a default of
	// 10 requests/sec with a burst of 20.
	RateLimiter *rate.Limiter

	// Retry overrides the default backoff policy for transient model
	// failures.
	Retry RetryConfig
}

func (c Config) validate() error {
	if c.Model == nil {
		return fmt.Errorf("Config.Model is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("Config.Runner is required")
	}
	return nil
}

// Generator answers questions with model-driven retrieval. Safe for
// concurrent use.
type Generator struct {
	model     ModelClient
	runner    ToolRunner
	toolRefs  []ai.ToolRef
	maxRounds int
	limiter   *rate.Limiter
	retry     RetryConfig
	logger    log.Logger
}

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 20)
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Generator{
		model:     cfg.Model,
		runner:    cfg.Runner,
		toolRefs:  cfg.ToolRefs,
		maxRounds: maxRounds,
		limiter:   limiter,
		retry:     retry,
		logger:    logger,
	}, nil
}

// Answer generates a response to the question, using history as prior
// conversation context. Tool calls made along the way contribute to
// Response.Sources in first-seen order.
func (g *Generator) Answer(ctx context.Context, question string, history []*ai.Message) (*Response, error) {
	recorder := tools.NewRecorder()
	ctx = tools.ContextWithRecorder(ctx, recorder)

	messages := make([]*ai.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ai.NewUserMessage(
		ai.NewTextPart("Answer this question about course materials: "+question)))

	for round := 0; ; round++ {
		// On the final round tools are withheld so the model must
		// produce an answer instead of another request.
		toolsAllowed := round < g.maxRounds && len(g.toolRefs) > 0

		opts := []ai.GenerateOption{ai.WithSystem(systemPrompt)}
		if toolsAllowed {
			opts = append(opts,
				ai.WithTools(g.toolRefs...),
				ai.WithReturnToolRequests(true))
		}

		resp, err := g.generateWithRetry(ctx, messages, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}

		requests := resp.ToolRequests()
		if !toolsAllowed || len(requests) == 0 {
			answer := strings.TrimSpace(resp.Text())
			if answer == "" {
				g.logger.Warn("model returned an empty response", "rounds", round)
				answer = fallbackAnswer
			}
			return &Response{Answer: answer, Sources: recorder.Sources()}, nil
		}

		g.logger.Debug("executing tool requests", "round", round, "count", len(requests))

		parts := make([]*ai.Part, 0, len(requests))
		for _, req := range requests {
			output, err := g.runner.Run(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// Report the failure back to the model so it can
				// recover or answer without the tool.
				g.logger.Warn("tool call failed", "tool", req.Name, "error", err)
				output = map[string]any{"status": "error", "message": err.Error()}
			}
			parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: output,
			}))
		}

		messages = append(withoutSystem(resp.History()), ai.NewMessage(ai.RoleTool, nil, parts...))
	}
}

// withoutSystem drops system-role messages from a transcript. Generate
// prepends the WithSystem text to the request messages, so reusing
// History() verbatim would stack one more system instruction per round.
func withoutSystem(messages []*ai.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == ai.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
