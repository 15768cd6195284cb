// Package index implements the dual-collection semantic store backing
// course search: a catalog collection holding one entry per course (for
// fuzzy name resolution and link lookup) and a content collection holding
// one entry per chunk (for passage retrieval). Both collections share one
// pgvector table shape of (id, content, embedding, metadata).
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/firebase/genkit/go/ai"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
)

// Table names, matching db/migrations.
const (
	CatalogTable = "course_catalog"
	ContentTable = "course_content"
)

// DefaultSearchLimit is the number of chunks returned by Search when the
// caller does not specify a limit.
const DefaultSearchLimit = 5

// Result is one retrieved chunk with its cosine distance from the query
// (smaller means more similar). The chunk carries enough metadata to build
// a citation without a second lookup.
type Result struct {
	Chunk    course.Chunk
	Distance float64
}

// SearchOption configures Search via functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	courseTitle  string
	lessonNumber *int
	limit        int
}

// WithCourse restricts results to chunks of the exactly-titled course.
// Use ResolveCourseName first to turn a fuzzy name into an exact title.
func WithCourse(title string) SearchOption {
	return func(c *searchConfig) { c.courseTitle = title }
}

// WithLesson restricts results to chunks of the given lesson number.
func WithLesson(n int) SearchOption {
	return func(c *searchConfig) { c.lessonNumber = &n }
}

// WithLimit caps the number of results (default DefaultSearchLimit).
func WithLimit(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.limit = k
		}
	}
}

// Store is the semantic index over course material. It is safe for
// concurrent use: reads may run alongside ingestion upserts.
type Store struct {
	catalog *collection
	content *collection
	logger  log.Logger
}

// New creates a Store on top of a pgx connection pool and an embedder.
// The pool must have pgvector types registered (see app.Setup).
func New(db querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		catalog: &collection{table: CatalogTable, db: db, embedder: embedder},
		content: &collection{table: ContentTable, db: db, embedder: embedder},
		logger:  logger,
	}
}

// AddCourse upserts a course into the catalog, keyed by title. The catalog
// embedding covers title and instructor so fuzzy names resolve on either.
func (s *Store) AddCourse(ctx context.Context, c course.Course) error {
	meta, err := courseMetadata(c)
	if err != nil {
		return err
	}

	embedText := c.Title
	if c.Instructor != "" {
		embedText = c.Title + " by " + c.Instructor
	}

	err = s.catalog.upsert(ctx,
		[]entry{{id: c.Title, content: c.Title, metadata: meta}},
		[]string{embedText})
	if err != nil {
		return err
	}

	s.logger.Debug("catalog upsert", "course", c.Title, "lessons", len(c.Lessons))
	return nil
}

// AddChunks upserts content chunks, keyed by (course_title, chunk_index).
// Embeddings are computed in one batch per call.
func (s *Store) AddChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	entries := make([]entry, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		meta := map[string]any{
			"course_title": ch.CourseTitle,
			"lesson_title": ch.LessonTitle,
			"chunk_index":  ch.Index,
		}
		if ch.LessonNumber != nil {
			meta["lesson_number"] = *ch.LessonNumber
		}
		entries[i] = entry{id: ch.ID(), content: ch.Content, metadata: meta}
		texts[i] = ch.Content
	}

	if err := s.content.upsert(ctx, entries, texts); err != nil {
		return err
	}

	s.logger.Debug("content upsert", "chunks", len(chunks))
	return nil
}

// Clear wipes both collections. Used when re-ingestion requests a full
// rebuild.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.content.clear(ctx); err != nil {
		return err
	}
	return s.catalog.clear(ctx)
}

// ResolveCourseName resolves a fuzzy course name to the exact catalog title
// via nearest-neighbor lookup. Best-effort by design: there is no
// similarity threshold, so a non-empty catalog always resolves to its
// closest title, however distant. Returns "" when the catalog is empty.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	hits, err := s.catalog.query(ctx, name, nil, 1)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	return hits[0].id, nil
}

// Search embeds the query and returns up to the configured limit of content
// chunks ordered by ascending distance. An empty slice is a valid result.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := searchConfig{limit: DefaultSearchLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	filter := map[string]any{}
	if cfg.courseTitle != "" {
		filter["course_title"] = cfg.courseTitle
	}
	if cfg.lessonNumber != nil {
		filter["lesson_number"] = *cfg.lessonNumber
	}

	hits, err := s.content.query(ctx, query, filter, cfg.limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{Chunk: chunkFromEntry(h.entry), Distance: h.distance})
	}
	return results, nil
}

// GetCourseLink returns the course link for an exact title, or "" when the
// course is unknown or has no link.
func (s *Store) GetCourseLink(ctx context.Context, title string) (string, error) {
	c, ok, err := s.getCourse(ctx, title)
	if err != nil || !ok {
		return "", err
	}
	return c.Link, nil
}

// GetLessonLink returns the lesson link for an exact title and lesson
// number, or "" when unknown.
func (s *Store) GetLessonLink(ctx context.Context, title string, lessonNumber int) (string, error) {
	c, ok, err := s.getCourse(ctx, title)
	if err != nil || !ok {
		return "", err
	}
	for _, l := range c.Lessons {
		if l.Number == lessonNumber {
			return l.Link, nil
		}
	}
	return "", nil
}

// HasCourse reports whether a course with the exact title is indexed.
func (s *Store) HasCourse(ctx context.Context, title string) (bool, error) {
	_, ok, err := s.catalog.get(ctx, title)
	return ok, err
}

// GetAllCoursesMetadata dumps the full catalog, ordered by title. Used by
// analytics and the visualization endpoint.
func (s *Store) GetAllCoursesMetadata(ctx context.Context) ([]course.Course, error) {
	entries, err := s.catalog.all(ctx)
	if err != nil {
		return nil, err
	}

	courses := make([]course.Course, 0, len(entries))
	for _, e := range entries {
		c, err := courseFromMetadata(e.metadata)
		if err != nil {
			s.logger.Warn("skipping catalog entry with bad metadata", "id", e.id, "error", err)
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })
	return courses, nil
}

// CourseCount returns the number of cataloged courses.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	return s.catalog.count(ctx)
}

// ChunkCount returns the number of indexed content chunks.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	return s.content.count(ctx)
}

func (s *Store) getCourse(ctx context.Context, title string) (course.Course, bool, error) {
	e, ok, err := s.catalog.get(ctx, title)
	if err != nil || !ok {
		return course.Course{}, ok, err
	}
	c, err := courseFromMetadata(e.metadata)
	if err != nil {
		return course.Course{}, false, err
	}
	return c, true, nil
}

// courseMetadata serializes a course into the generic metadata map stored
// in the catalog collection.
func courseMetadata(c course.Course) (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling course %q: %w", c.Title, err)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling course %q: %w", c.Title, err)
	}
	return meta, nil
}

func courseFromMetadata(meta map[string]any) (course.Course, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return course.Course{}, fmt.Errorf("marshaling catalog metadata: %w", err)
	}
	var c course.Course
	if err := json.Unmarshal(raw, &c); err != nil {
		return course.Course{}, fmt.Errorf("unmarshaling catalog metadata: %w", err)
	}
	if c.Title == "" {
		return course.Course{}, fmt.Errorf("catalog metadata has no title")
	}
	return c, nil
}

// chunkFromEntry rebuilds a course.Chunk from a content-collection row.
func chunkFromEntry(e entry) course.Chunk {
	ch := course.Chunk{Content: e.content}
	if v, ok := e.metadata["course_title"].(string); ok {
		ch.CourseTitle = v
	}
	if v, ok := e.metadata["lesson_title"].(string); ok {
		ch.LessonTitle = v
	}
	if v, ok := e.metadata["chunk_index"].(float64); ok {
		ch.Index = int(v)
	}
	if v, ok := e.metadata["lesson_number"].(float64); ok {
		n := int(v)
		ch.LessonNumber = &n
	}
	return ch
}
