package tools

import (
	"context"
	"sync"

	"github.com/studyowl/studyowl/internal/course"
)

// Recorder collects the sources a query's tool calls touched, deduplicated
// by chunk. The agent attaches a fresh Recorder per query and reads it back
// after generation to cite what the answer was grounded on.
type Recorder struct {
	mu      sync.Mutex
	seen    map[course.SourceKey]bool
	sources []course.Source
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{seen: make(map[course.SourceKey]bool)}
}

// Record adds a source unless the same chunk was already recorded.
func (r *Recorder) Record(key course.SourceKey, src course.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.sources = append(r.sources, src)
}

// Sources returns the recorded sources in first-seen order.
func (r *Recorder) Sources() []course.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]course.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// recorderKey is an unexported context key for zero-allocation type safety.
type recorderKey struct{}

// ContextWithRecorder attaches a recorder to the context. The agent injects
// it before generation; tool handlers read it back to report their hits.
func ContextWithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFromContext retrieves the recorder, or nil when the call is not
// part of a tracked query.
func RecorderFromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}
