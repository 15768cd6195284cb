// Package course defines the domain model shared across ingestion, indexing,
// and retrieval: courses, their lessons, the chunks stored as retrieval
// units, and the citation sources attached to answers.
package course

import "fmt"

// Course is the metadata extracted from one transcript document.
// The title is the unique key across the whole index; re-ingesting a
// document with the same title replaces the prior course.
type Course struct {
	Title      string   `json:"title"`
	Instructor string   `json:"instructor,omitempty"`
	Link       string   `json:"course_link,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is one numbered lesson within a course. Lesson numbers are unique
// per course and ordering by number is significant for display.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Chunk is a bounded span of lesson text, the unit stored and retrieved by
// the index. LessonNumber is nil for course-level chunks. Index is assigned
// monotonically per course across all lessons, starting at zero, and forms
// part of the storage key together with CourseTitle.
type Chunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	LessonTitle  string `json:"lesson_title,omitempty"`
	Index        int    `json:"chunk_index"`
}

// ID returns the chunk's storage identifier, stable across re-ingestion.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s::%d", c.CourseTitle, c.Index)
}

// Source is a citation record attached to an answer, traceable to a chunk
// actually retrieved while answering. URL is empty when neither the lesson
// nor the course carries a link.
type Source struct {
	Label string `json:"text"`
	URL   string `json:"url,omitempty"`
}

// SourceKey identifies a retrieved chunk for deduplication of sources.
type SourceKey struct {
	CourseTitle  string
	LessonNumber int // -1 for course-level chunks
	ChunkIndex   int
}

// Key returns the deduplication key for a retrieved chunk.
func (c Chunk) Key() SourceKey {
	n := -1
	if c.LessonNumber != nil {
		n = *c.LessonNumber
	}
	return SourceKey{CourseTitle: c.CourseTitle, LessonNumber: n, ChunkIndex: c.Index}
}
