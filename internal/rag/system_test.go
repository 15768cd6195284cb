package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/studyowl/studyowl/internal/agent"
	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
)

type fakeProcessor struct {
	courses []course.Course
	chunks  []course.Chunk
	err     error
	folder  string
}

func (f *fakeProcessor) ProcessFolder(folder string) ([]course.Course, []course.Chunk, error) {
	f.folder = folder
	return f.courses, f.chunks, f.err
}

type fakeIndex struct {
	existing     map[string]bool
	addedCourses []course.Course
	addedChunks  []course.Chunk
	cleared      bool
	catalog      []course.Course
	err          error
}

func (f *fakeIndex) AddCourse(_ context.Context, c course.Course) error {
	f.addedCourses = append(f.addedCourses, c)
	return f.err
}

func (f *fakeIndex) AddChunks(_ context.Context, chunks []course.Chunk) error {
	f.addedChunks = append(f.addedChunks, chunks...)
	return f.err
}

func (f *fakeIndex) Clear(_ context.Context) error {
	f.cleared = true
	f.existing = nil
	return nil
}

func (f *fakeIndex) HasCourse(_ context.Context, title string) (bool, error) {
	return f.existing[title], nil
}

func (f *fakeIndex) GetAllCoursesMetadata(_ context.Context) ([]course.Course, error) {
	return f.catalog, f.err
}


type fakeSessions struct {
	nextID    string
	created   int
	histories map[string][]*ai.Message
	appended  map[string][]string
	clearedID string
}

func newFakeSessions(nextID string) *fakeSessions {
	return &fakeSessions{
		nextID:    nextID,
		histories: make(map[string][]*ai.Message),
		appended:  make(map[string][]string),
	}
}

func (f *fakeSessions) Create() string {
	f.created++
	return f.nextID
}

func (f *fakeSessions) Messages(id string) []*ai.Message { return f.histories[id] }

func (f *fakeSessions) AddExchange(id, userInput, assistantResponse string) {
	f.appended[id] = append(f.appended[id], userInput, assistantResponse)
}

func (f *fakeSessions) Clear(id string) { f.clearedID = id }

type fakeAnswerer struct {
	resp       *agent.Response
	err        error
	gotHistory []*ai.Message
	gotQ       string
}

func (f *fakeAnswerer) Answer(_ context.Context, q string, history []*ai.Message) (*agent.Response, error) {
	f.gotQ = q
	f.gotHistory = history
	return f.resp, f.err
}

func newSystem(t *testing.T, p Processor, idx Index, sess Sessions, a Answerer) *System {
	t.Helper()
	s, err := New(Config{Processor: p, Index: idx, Sessions: sess, Answerer: a, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestQuery_CreatesSessionWhenMissing(t *testing.T) {
	sess := newFakeSessions("session-1")
	ans := &fakeAnswerer{resp: &agent.Response{Answer: "hello"}}
	s := newSystem(t, &fakeProcessor{}, &fakeIndex{}, sess, ans)

	got, err := s.Query(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.SessionID != "session-1" {
		t.Errorf("SessionID = %q", got.SessionID)
	}
	if sess.created != 1 {
		t.Errorf("sessions created = %d, want 1", sess.created)
	}
	if got.Text != "hello" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestQuery_ReusesSessionAndPassesHistory(t *testing.T) {
	sess := newFakeSessions("unused")
	history := []*ai.Message{ai.NewUserMessage(ai.NewTextPart("earlier"))}
	sess.histories["existing"] = history

	ans := &fakeAnswerer{resp: &agent.Response{Answer: "answer"}}
	s := newSystem(t, &fakeProcessor{}, &fakeIndex{}, sess, ans)

	got, err := s.Query(context.Background(), "follow-up", "existing")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.SessionID != "existing" {
		t.Errorf("SessionID = %q", got.SessionID)
	}
	if sess.created != 0 {
		t.Error("must not create a session when one is supplied")
	}
	if len(ans.gotHistory) != 1 {
		t.Errorf("history passed to answerer = %d messages, want 1", len(ans.gotHistory))
	}
	if ans.gotQ != "follow-up" {
		t.Errorf("question = %q", ans.gotQ)
	}
}

func TestQuery_RecordsExchangeAndSources(t *testing.T) {
	sess := newFakeSessions("s1")
	ans := &fakeAnswerer{resp: &agent.Response{
		Answer:  "goroutines are cheap",
		Sources: []course.Source{{Label: "Go - Lesson 1", URL: "https://example.com/l1"}},
	}}
	s := newSystem(t, &fakeProcessor{}, &fakeIndex{}, sess, ans)

	got, err := s.Query(context.Background(), "what are goroutines?", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got.Sources) != 1 || got.Sources[0].Label != "Go - Lesson 1" {
		t.Errorf("Sources = %+v", got.Sources)
	}
	turns := sess.appended["s1"]
	if len(turns) != 2 || turns[0] != "what are goroutines?" || turns[1] != "goroutines are cheap" {
		t.Errorf("recorded exchange = %v", turns)
	}
}

func TestQuery_AnswererFailureLeavesHistoryUntouched(t *testing.T) {
	sess := newFakeSessions("s1")
	ans := &fakeAnswerer{err: errors.New("model down")}
	s := newSystem(t, &fakeProcessor{}, &fakeIndex{}, sess, ans)

	if _, err := s.Query(context.Background(), "q", "s1"); err == nil {
		t.Fatal("expected error")
	}
	if len(sess.appended["s1"]) != 0 {
		t.Error("failed queries must not be recorded in history")
	}
}

func TestIngest_SkipsExistingCoursesAndTheirChunks(t *testing.T) {
	proc := &fakeProcessor{
		courses: []course.Course{{Title: "Old"}, {Title: "New"}},
		chunks: []course.Chunk{
			{CourseTitle: "Old", Index: 0},
			{CourseTitle: "New", Index: 0},
			{CourseTitle: "New", Index: 1},
		},
	}
	idx := &fakeIndex{existing: map[string]bool{"Old": true}}
	s := newSystem(t, proc, idx, newFakeSessions("x"), &fakeAnswerer{})

	stats, err := s.Ingest(context.Background(), "/docs", false)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if stats.Courses != 1 || stats.Chunks != 2 {
		t.Errorf("stats = %+v, want 1 course and 2 chunks", stats)
	}
	if len(idx.addedCourses) != 1 || idx.addedCourses[0].Title != "New" {
		t.Errorf("added courses = %+v", idx.addedCourses)
	}
	for _, ch := range idx.addedChunks {
		if ch.CourseTitle == "Old" {
			t.Error("chunks of skipped courses must not be re-indexed")
		}
	}
	if idx.cleared {
		t.Error("Clear must not run without clearExisting")
	}
}

func TestIngest_ClearExistingRebuildsEverything(t *testing.T) {
	proc := &fakeProcessor{
		courses: []course.Course{{Title: "Old"}},
		chunks:  []course.Chunk{{CourseTitle: "Old", Index: 0}},
	}
	idx := &fakeIndex{existing: map[string]bool{"Old": true}}
	s := newSystem(t, proc, idx, newFakeSessions("x"), &fakeAnswerer{})

	stats, err := s.Ingest(context.Background(), "/docs", true)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !idx.cleared {
		t.Error("expected index to be cleared")
	}
	if stats.Courses != 1 || stats.Chunks != 1 {
		t.Errorf("stats = %+v, want full re-index", stats)
	}
}

func TestIngest_ProcessorFailure(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("no such folder")}
	s := newSystem(t, proc, &fakeIndex{}, newFakeSessions("x"), &fakeAnswerer{})

	if _, err := s.Ingest(context.Background(), "/nope", false); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetAnalytics(t *testing.T) {
	idx := &fakeIndex{catalog: []course.Course{
		{Title: "A", Instructor: "Ann", Lessons: []course.Lesson{{Number: 1}}},
		{Title: "B", Instructor: "Ann", Lessons: []course.Lesson{{Number: 1}, {Number: 2}}},
	}}
	s := newSystem(t, &fakeProcessor{}, idx, newFakeSessions("x"), &fakeAnswerer{})

	a, err := s.GetAnalytics(context.Background())
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}
	if a.TotalCourses != 2 {
		t.Errorf("TotalCourses = %d", a.TotalCourses)
	}
	if a.TotalLessons != 3 {
		t.Errorf("TotalLessons = %d, want 3", a.TotalLessons)
	}
	if len(a.CourseTitles) != 2 || a.CourseTitles[0] != "A" {
		t.Errorf("CourseTitles = %v", a.CourseTitles)
	}
	if len(a.Instructors) != 1 || a.Instructors[0] != "Ann" {
		t.Errorf("Instructors = %v", a.Instructors)
	}
}

func TestClearSession(t *testing.T) {
	sess := newFakeSessions("x")
	s := newSystem(t, &fakeProcessor{}, &fakeIndex{}, sess, &fakeAnswerer{})

	s.ClearSession("abc")
	if sess.clearedID != "abc" {
		t.Errorf("cleared id = %q", sess.clearedID)
	}
}
