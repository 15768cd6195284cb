package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
	"github.com/studyowl/studyowl/internal/tools"
)

// scriptedModel returns canned responses in order; the last one repeats.
// Each call records the transcript it received and, like the real Generate,
// prepends a system message to the request history it hands back.
type scriptedModel struct {
	responses []*ai.ModelResponse
	errs      []error
	calls     int
	sent      [][]*ai.Message
}

func (m *scriptedModel) Generate(_ context.Context, messages []*ai.Message, _ ...ai.GenerateOption) (*ai.ModelResponse, error) {
	m.sent = append(m.sent, append([]*ai.Message(nil), messages...))
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	resp := m.responses[i]
	resp.Request = &ai.ModelRequest{Messages: append(
		[]*ai.Message{ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart("instructions"))},
		messages...)}
	return resp, nil
}

// recordingRunner captures tool requests and reports a source through the
// query recorder, the way the real search tool does.
type recordingRunner struct {
	requests []*ai.ToolRequest
	output   any
	err      error
	source   *course.Source
}

func (r *recordingRunner) Run(ctx context.Context, req *ai.ToolRequest) (any, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	if r.source != nil {
		if rec := tools.RecorderFromContext(ctx); rec != nil {
			key := course.SourceKey{CourseTitle: r.source.Label, ChunkIndex: len(r.requests)}
			rec.Record(key, *r.source)
		}
	}
	return r.output, nil
}

func textResponse(text string) *ai.ModelResponse {
	return &ai.ModelResponse{
		Request: &ai.ModelRequest{},
		Message: ai.NewModelMessage(ai.NewTextPart(text)),
	}
}

func toolResponse(toolName string) *ai.ModelResponse {
	return &ai.ModelResponse{
		Request: &ai.ModelRequest{},
		Message: ai.NewMessage(ai.RoleModel, nil,
			ai.NewToolRequestPart(&ai.ToolRequest{
				Name:  toolName,
				Input: map[string]any{"query": "something"},
			})),
	}
}

// toolRef satisfies ai.ToolRef by name alone, enough for a model fake that
// never resolves tools.
type toolRef string

func (r toolRef) Name() string { return string(r) }

func newGenerator(t *testing.T, model ModelClient, runner ToolRunner, maxRounds int) *Generator {
	t.Helper()
	g, err := New(Config{
		Model:         model,
		Runner:        runner,
		ToolRefs:      []ai.ToolRef{toolRef("search_course_content")},
		MaxToolRounds: maxRounds,
		Logger:        log.NewNop(),
		Retry:         RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func TestAnswer_DirectWithoutTools(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{textResponse("Go is a language.")}}
	runner := &recordingRunner{}
	g := newGenerator(t, model, runner, 2)

	resp, err := g.Answer(context.Background(), "What is Go?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Answer != "Go is a language." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("expected no sources, got %+v", resp.Sources)
	}
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1", model.calls)
	}
	if len(runner.requests) != 0 {
		t.Error("no tool should run for a direct answer")
	}
}

func TestAnswer_OneToolRoundCollectsSources(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{
		toolResponse("search_course_content"),
		textResponse("Lesson 1 covers goroutines."),
	}}
	runner := &recordingRunner{
		output: map[string]any{"status": "success"},
		source: &course.Source{Label: "Go - Lesson 1", URL: "https://example.com/l1"},
	}
	g := newGenerator(t, model, runner, 2)

	resp, err := g.Answer(context.Background(), "What does lesson 1 cover?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Answer != "Lesson 1 covers goroutines." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(runner.requests) != 1 || runner.requests[0].Name != "search_course_content" {
		t.Errorf("tool requests = %+v", runner.requests)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].URL != "https://example.com/l1" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if model.calls != 2 {
		t.Errorf("model calls = %d, want 2", model.calls)
	}
}

func TestAnswer_ToolLoopAlwaysTerminates(t *testing.T) {
	// The model insists on calling tools forever; the round cap must force
	// a final answer.
	model := &scriptedModel{responses: []*ai.ModelResponse{toolResponse("search_course_content")}}
	runner := &recordingRunner{output: map[string]any{"status": "success"}}
	g := newGenerator(t, model, runner, 2)

	resp, err := g.Answer(context.Background(), "loop forever", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(runner.requests) != 2 {
		t.Errorf("tool rounds = %d, want 2", len(runner.requests))
	}
	// Two tool rounds plus the forced final call.
	if model.calls != 3 {
		t.Errorf("model calls = %d, want 3", model.calls)
	}
	if resp.Answer != fallbackAnswer {
		t.Errorf("Answer = %q, want fallback", resp.Answer)
	}
}

func TestAnswer_TranscriptCarriesNoSystemMessages(t *testing.T) {
	// The system instruction travels as a per-call option. If the loop fed
	// the model's request history back verbatim, every round would stack
	// one more system message into the transcript.
	model := &scriptedModel{responses: []*ai.ModelResponse{toolResponse("search_course_content")}}
	runner := &recordingRunner{output: map[string]any{"status": "success"}}
	g := newGenerator(t, model, runner, 2)

	if _, err := g.Answer(context.Background(), "loop", nil); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(model.sent) != 3 {
		t.Fatalf("model calls = %d, want 3", len(model.sent))
	}
	for i, msgs := range model.sent {
		for _, msg := range msgs {
			if msg.Role == ai.RoleSystem {
				t.Errorf("call %d: transcript contains a system message", i)
			}
		}
	}
	// Each tool round adds exactly the model turn and the tool result.
	if want := len(model.sent[0]) + 2; len(model.sent[1]) != want {
		t.Errorf("second call transcript = %d messages, want %d", len(model.sent[1]), want)
	}
	if want := len(model.sent[1]) + 2; len(model.sent[2]) != want {
		t.Errorf("final call transcript = %d messages, want %d", len(model.sent[2]), want)
	}
}

func TestAnswer_ToolFailureIsReportedNotFatal(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{
		toolResponse("search_course_content"),
		textResponse("I could not search, but here is what I know."),
	}}
	runner := &recordingRunner{err: errors.New("index offline")}
	g := newGenerator(t, model, runner, 2)

	resp, err := g.Answer(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v, tool failures must not abort the query", err)
	}
	if resp.Answer == "" || resp.Answer == fallbackAnswer {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if model.calls != 2 {
		t.Errorf("model calls = %d, want 2", model.calls)
	}
}

func TestAnswer_GenerationFailureWrapsSentinel(t *testing.T) {
	model := &scriptedModel{
		responses: []*ai.ModelResponse{textResponse("unused")},
		errs:      []error{errors.New("invalid api key"), errors.New("invalid api key"), errors.New("invalid api key")},
	}
	g := newGenerator(t, model, &recordingRunner{}, 2)

	_, err := g.Answer(context.Background(), "anything", nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	// Non-retryable failure: exactly one attempt.
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1", model.calls)
	}
}

func TestAnswer_RetriesTransientFailures(t *testing.T) {
	model := &scriptedModel{
		responses: []*ai.ModelResponse{textResponse("ok"), textResponse("ok"), textResponse("ok")},
		errs:      []error{errors.New("429 rate limit"), errors.New("503 unavailable"), nil},
	}
	g := newGenerator(t, model, &recordingRunner{}, 2)

	resp, err := g.Answer(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Answer != "ok" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if model.calls != 3 {
		t.Errorf("model calls = %d, want 3", model.calls)
	}
}

func TestAnswer_EmptyResponseFallsBack(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{textResponse("   ")}}
	g := newGenerator(t, model, &recordingRunner{}, 2)

	resp, err := g.Answer(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Answer != fallbackAnswer {
		t.Errorf("Answer = %q, want fallback", resp.Answer)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("429 Too Many Requests"), true},
		{errors.New("quota exceeded for model"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid api key"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := retryableError(tt.err); got != tt.want {
			t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
