// Package transcript turns raw course transcript documents into Course and
// Lesson metadata plus overlapping, sentence-bounded content chunks ready
// for indexing.
//
// Document grammar (header lines, then repeated lesson blocks):
//
//	Course Title: Building Towards Computer Use
//	Course Link: https://example.com/course
//	Course Instructor: Colt Steele
//
//	Lesson 0: Introduction
//	Lesson Link: https://example.com/lesson0
//	<lesson body text...>
//
//	Lesson 1: ...
//
// "Instructor:" is accepted as a synonym for "Course Instructor:". A missing
// title header is a ParseError; everything else degrades with warnings.
package transcript

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
)

// Chunking defaults, matching the sizes the course documents were tuned for.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// supportedExtensions are the transcript file types read by ProcessFolder.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

var lessonHeaderPattern = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Config holds chunking parameters for a Processor.
type Config struct {
	ChunkSize    int // target chunk size in characters (default 800)
	ChunkOverlap int // characters shared between consecutive chunks (default 100)
}

// Processor parses transcript documents and produces content chunks.
type Processor struct {
	chunkSize int
	overlap   int
	logger    log.Logger
}

// NewProcessor creates a Processor. Zero config values fall back to the
// package defaults; an overlap >= chunk size is clamped to keep windows
// advancing.
func NewProcessor(cfg Config, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.NewNop()
	}

	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	return &Processor{chunkSize: size, overlap: overlap, logger: logger}
}

// ProcessFolder parses every supported document in dir. Unreadable or
// unparsable documents are skipped with a warning; the error return is
// reserved for the folder itself being unreadable.
func (p *Processor) ProcessFolder(dir string) ([]course.Course, []course.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading course folder %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var courses []course.Course
	var chunks []course.Chunk
	for _, name := range names {
		path := filepath.Join(dir, name)
		c, cs, err := p.ProcessFile(path)
		if err != nil {
			p.logger.Warn("skipping transcript", "path", path, "error", err)
			continue
		}
		courses = append(courses, c)
		chunks = append(chunks, cs...)
	}

	return courses, chunks, nil
}

// ProcessFile parses a single transcript document into its course metadata
// and content chunks.
func (p *Processor) ProcessFile(path string) (course.Course, []course.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return course.Course{}, nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return course.Course{}, nil, fmt.Errorf("reading transcript: %w", err)
	}

	return p.parse(path, lines)
}

// lessonBlock is a parsed lesson header plus its body text.
type lessonBlock struct {
	lesson course.Lesson
	body   string
}

func (p *Processor) parse(path string, lines []string) (course.Course, []course.Chunk, error) {
	c, rest := parseHeader(lines)
	if c.Title == "" {
		return course.Course{}, nil, &ParseError{Path: path, Reason: "no course title header"}
	}

	blocks := p.parseLessons(path, rest)

	var chunks []course.Chunk
	nextIndex := 0
	if len(blocks) == 0 {
		// No recognizable lessons: chunk the remaining text at course level
		// so the document is still searchable.
		body := strings.TrimSpace(strings.Join(rest, "\n"))
		chunks = p.appendChunks(chunks, c.Title, nil, "", body, &nextIndex)
	}

	for _, b := range blocks {
		lesson := b.lesson
		c.Lessons = append(c.Lessons, lesson)
		n := lesson.Number
		chunks = p.appendChunks(chunks, c.Title, &n, lesson.Title, b.body, &nextIndex)
	}

	p.logger.Debug("parsed transcript",
		"path", path,
		"course", c.Title,
		"lessons", len(c.Lessons),
		"chunks", len(chunks))

	return c, chunks, nil
}

// parseHeader consumes the leading header lines and returns the course
// metadata plus the unconsumed remainder (starting at the first lesson
// header or body line).
func parseHeader(lines []string) (course.Course, []string) {
	var c course.Course
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "Course Title:"):
			c.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
			continue
		case strings.HasPrefix(line, "Course Link:"):
			c.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
			continue
		case strings.HasPrefix(line, "Course Instructor:"):
			c.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
			continue
		case strings.HasPrefix(line, "Instructor:"):
			c.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Instructor:"))
			continue
		}
		break
	}
	return c, lines[i:]
}

// parseLessons splits the document body into lesson blocks. A lesson header
// with an empty body is malformed and skipped with a warning.
func (p *Processor) parseLessons(path string, lines []string) []lessonBlock {
	var blocks []lessonBlock
	var current *lessonBlock
	var body []string
	seen := map[int]bool{}

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text == "" {
			p.logger.Warn("skipping lesson with empty body",
				"path", path, "lesson", current.lesson.Number)
		} else if seen[current.lesson.Number] {
			p.logger.Warn("skipping duplicate lesson number",
				"path", path, "lesson", current.lesson.Number)
		} else {
			current.body = text
			seen[current.lesson.Number] = true
			blocks = append(blocks, *current)
		}
		current = nil
		body = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if m := lessonHeaderPattern.FindStringSubmatch(line); m != nil {
			flush()
			num, err := strconv.Atoi(m[1])
			if err != nil {
				p.logger.Warn("skipping malformed lesson header", "path", path, "line", line)
				continue
			}
			current = &lessonBlock{lesson: course.Lesson{Number: num, Title: strings.TrimSpace(m[2])}}
			continue
		}
		if current != nil && strings.HasPrefix(line, "Lesson Link:") && len(body) == 0 {
			current.lesson.Link = strings.TrimSpace(strings.TrimPrefix(line, "Lesson Link:"))
			continue
		}
		if current != nil {
			body = append(body, raw)
		}
	}
	flush()

	return blocks
}

// appendChunks chunks body text and appends the resulting course chunks,
// advancing the per-course chunk index.
func (p *Processor) appendChunks(chunks []course.Chunk, title string, lessonNumber *int, lessonTitle, body string, nextIndex *int) []course.Chunk {
	for _, text := range chunkText(body, p.chunkSize, p.overlap) {
		chunks = append(chunks, course.Chunk{
			Content:      contextualize(title, lessonNumber, text),
			CourseTitle:  title,
			LessonNumber: lessonNumber,
			LessonTitle:  lessonTitle,
			Index:        *nextIndex,
		})
		*nextIndex++
	}
	return chunks
}

// contextualize prepends the owning course and lesson to chunk content so a
// chunk is self-describing when retrieved on its own.
func contextualize(title string, lessonNumber *int, text string) string {
	if lessonNumber == nil {
		return fmt.Sprintf("Course %s content: %s", title, text)
	}
	return fmt.Sprintf("Course %s Lesson %d content: %s", title, *lessonNumber, text)
}
