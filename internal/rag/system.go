// Package rag wires transcript processing, the semantic index, session
// memory, and answer generation into one system the API and CLI call into.
package rag

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/studyowl/studyowl/internal/agent"
	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
)

// Processor turns a folder of transcripts into courses and chunks.
type Processor interface {
	ProcessFolder(folder string) ([]course.Course, []course.Chunk, error)
}

// Index is the slice of the semantic store the system depends on.
type Index interface {
	AddCourse(ctx context.Context, c course.Course) error
	AddChunks(ctx context.Context, chunks []course.Chunk) error
	Clear(ctx context.Context) error
	HasCourse(ctx context.Context, title string) (bool, error)
	GetAllCoursesMetadata(ctx context.Context) ([]course.Course, error)
}

// Sessions is the conversation memory the system reads and appends to.
type Sessions interface {
	Create() string
	Messages(id string) []*ai.Message
	AddExchange(id, userInput, assistantResponse string)
	Clear(id string)
}

// Answerer generates one answer given a question and prior history.
type Answerer interface {
	Answer(ctx context.Context, question string, history []*ai.Message) (*agent.Response, error)
}

// Answer is one answered query.
type Answer struct {
	Text      string
	Sources   []course.Source
	SessionID string
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Courses int
	Chunks  int
}

// Analytics is the aggregate view of the indexed corpus.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	TotalLessons int      `json:"total_lessons"`
	CourseTitles []string `json:"course_titles"`
	Instructors  []string `json:"instructors"`
}

// Config holds System dependencies.
type Config struct {
	Processor Processor
	Index     Index
	Sessions  Sessions
	Answerer  Answerer
	Logger    log.Logger
}

func (c Config) validate() error {
	if c.Processor == nil {
		return fmt.Errorf("Config.Processor is required")
	}
	if c.Index == nil {
		return fmt.Errorf("Config.Index is required")
	}
	if c.Sessions == nil {
		return fmt.Errorf("Config.Sessions is required")
	}
	if c.Answerer == nil {
		return fmt.Errorf("Config.Answerer is required")
	}
	return nil
}

// System is the retrieval-augmented answering system.
type System struct {
	processor Processor
	index     Index
	sessions  Sessions
	answerer  Answerer
	logger    log.Logger
}

// New creates a System.
func New(cfg Config) (*System, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &System{
		processor: cfg.Processor,
		index:     cfg.Index,
		sessions:  cfg.Sessions,
		answerer:  cfg.Answerer,
		logger:    logger,
	}, nil
}

// Query answers a question within a session. An empty sessionID starts a
// new session; the id in use is always echoed back so the client can
// continue the conversation.
func (s *System) Query(ctx context.Context, question, sessionID string) (*Answer, error) {
	if sessionID == "" {
		sessionID = s.sessions.Create()
	}

	resp, err := s.answerer.Answer(ctx, question, s.sessions.Messages(sessionID))
	if err != nil {
		return nil, err
	}

	s.sessions.AddExchange(sessionID, question, resp.Answer)

	return &Answer{
		Text:      resp.Answer,
		Sources:   resp.Sources,
		SessionID: sessionID,
	}, nil
}

// NewSession starts a fresh session and returns its id.
func (s *System) NewSession() string {
	return s.sessions.Create()
}

// ClearSession empties a session's history while keeping the id valid.
func (s *System) ClearSession(id string) {
	s.sessions.Clear(id)
}

// Ingest processes every transcript in folder and indexes the results.
// Courses already in the index are skipped, so re-running ingestion is
// cheap; clearExisting forces a full rebuild instead.
func (s *System) Ingest(ctx context.Context, folder string, clearExisting bool) (IngestStats, error) {
	if clearExisting {
		s.logger.Info("clearing existing index before ingest")
		if err := s.index.Clear(ctx); err != nil {
			return IngestStats{}, fmt.Errorf("clearing index: %w", err)
		}
	}

	courses, chunks, err := s.processor.ProcessFolder(folder)
	if err != nil {
		return IngestStats{}, err
	}

	skipped := make(map[string]bool)
	var stats IngestStats
	for _, c := range courses {
		exists, err := s.index.HasCourse(ctx, c.Title)
		if err != nil {
			return stats, fmt.Errorf("checking course %q: %w", c.Title, err)
		}
		if exists {
			s.logger.Debug("course already indexed, skipping", "course", c.Title)
			skipped[c.Title] = true
			continue
		}
		if err := s.index.AddCourse(ctx, c); err != nil {
			return stats, fmt.Errorf("indexing course %q: %w", c.Title, err)
		}
		stats.Courses++
	}

	var newChunks []course.Chunk
	for _, ch := range chunks {
		if !skipped[ch.CourseTitle] {
			newChunks = append(newChunks, ch)
		}
	}
	if err := s.index.AddChunks(ctx, newChunks); err != nil {
		return stats, fmt.Errorf("indexing chunks: %w", err)
	}
	stats.Chunks = len(newChunks)

	s.logger.Info("ingestion complete",
		"folder", folder, "courses", stats.Courses, "chunks", stats.Chunks, "skipped", len(skipped))
	return stats, nil
}

// GetAnalytics reports how much material is indexed.
func (s *System) GetAnalytics(ctx context.Context) (Analytics, error) {
	courses, err := s.index.GetAllCoursesMetadata(ctx)
	if err != nil {
		return Analytics{}, err
	}

	a := Analytics{
		TotalCourses: len(courses),
		CourseTitles: make([]string, 0, len(courses)),
		Instructors:  []string{},
	}
	seen := make(map[string]bool)
	for _, c := range courses {
		a.CourseTitles = append(a.CourseTitles, c.Title)
		a.TotalLessons += len(c.Lessons)
		if c.Instructor != "" && !seen[c.Instructor] {
			seen[c.Instructor] = true
			a.Instructors = append(a.Instructors, c.Instructor)
		}
	}
	return a, nil
}

// Courses returns full catalog metadata, ordered by title.
func (s *System) Courses(ctx context.Context) ([]course.Course, error) {
	return s.index.GetAllCoursesMetadata(ctx)
}
