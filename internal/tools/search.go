package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/index"
	"github.com/studyowl/studyowl/internal/log"
)

// SearchCourseContentName is the Genkit tool name for course content search.
const SearchCourseContentName = "search_course_content"

// Searcher is the slice of the index the search tool depends on.
type Searcher interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
	Search(ctx context.Context, query string, opts ...index.SearchOption) ([]index.Result, error)
	GetCourseLink(ctx context.Context, title string) (string, error)
	GetLessonLink(ctx context.Context, title string, lessonNumber int) (string, error)
}

// SearchInput defines the arguments the model supplies when calling
// search_course_content.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course materials"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title to search within; partial names are resolved to the closest match"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Restrict the search to a specific lesson number"`
}

// CourseSearch holds dependencies for the course search tool handler.
type CourseSearch struct {
	store  Searcher
	limit  int
	logger log.Logger
}

// NewCourseSearch creates the tool handler. limit caps how many chunks each
// search returns; non-positive values fall back to the index default.
func NewCourseSearch(store Searcher, limit int, logger log.Logger) (*CourseSearch, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if limit <= 0 {
		limit = index.DefaultSearchLimit
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &CourseSearch{store: store, limit: limit, logger: logger}, nil
}

// Register registers the search tool with Genkit.
func Register(g *genkit.Genkit, cs *CourseSearch) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cs == nil {
		return nil, fmt.Errorf("CourseSearch is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, SearchCourseContentName,
			"Search course materials for content relevant to a question. "+
				"Optionally restrict the search to one course (partial names are "+
				"resolved to the closest indexed course) and to one lesson number. "+
				"Returns: matching transcript excerpts labeled with their course "+
				"and lesson. Use this for questions about specific course content.",
			cs.Search),
	}, nil
}

// Search runs a semantic search over the indexed course content. Business
// failures (unknown course, backend down) are reported in the Result so the
// model can react; only context cancellation surfaces as a Go error.
func (cs *CourseSearch) Search(ctx *ai.ToolContext, input SearchInput) (Result, error) {
	cs.logger.Debug("search_course_content called",
		"query", input.Query, "course", input.CourseName, "lesson", input.LessonNumber)

	if strings.TrimSpace(input.Query) == "" {
		return Result{
			Status: StatusError,
			Error:  &Error{Code: ErrCodeValidation, Message: "query must not be empty"},
		}, nil
	}

	opts := []index.SearchOption{index.WithLimit(cs.limit)}
	resolvedCourse := ""
	if input.CourseName != "" {
		title, err := cs.store.ResolveCourseName(ctx, input.CourseName)
		if err != nil {
			return unavailableResult("resolving course name", err), nil
		}
		if title == "" {
			return Result{
				Status: StatusError,
				Error: &Error{
					Code:    ErrCodeNotFound,
					Message: fmt.Sprintf("no course found matching %q", input.CourseName),
				},
			}, nil
		}
		resolvedCourse = title
		opts = append(opts, index.WithCourse(title))
	}
	if input.LessonNumber != nil {
		opts = append(opts, index.WithLesson(*input.LessonNumber))
	}

	results, err := cs.store.Search(ctx, input.Query, opts...)
	if err != nil {
		return unavailableResult("searching course content", err), nil
	}

	if len(results) == 0 {
		return Result{
			Status: StatusSuccess,
			Data: map[string]any{
				"content": noResultsMessage(resolvedCourse, input.LessonNumber),
				"matches": 0,
			},
		}, nil
	}

	cs.recordSources(ctx, results)

	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"content": formatResults(results),
			"matches": len(results),
		},
	}, nil
}

// recordSources reports every returned chunk to the query's recorder, with
// the most specific link available for each.
func (cs *CourseSearch) recordSources(ctx context.Context, results []index.Result) {
	rec := RecorderFromContext(ctx)
	if rec == nil {
		return
	}

	for _, r := range results {
		ch := r.Chunk
		src := course.Source{Label: sourceLabel(ch)}

		var link string
		var err error
		if ch.LessonNumber != nil {
			link, err = cs.store.GetLessonLink(ctx, ch.CourseTitle, *ch.LessonNumber)
		}
		if link == "" && err == nil {
			link, err = cs.store.GetCourseLink(ctx, ch.CourseTitle)
		}
		if err != nil {
			cs.logger.Warn("source link lookup failed", "course", ch.CourseTitle, "error", err)
		}
		src.URL = link

		rec.Record(ch.Key(), src)
	}
}

// formatResults renders chunks as labeled blocks the model can quote from.
func formatResults(results []index.Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[%s]\n%s", sourceLabel(r.Chunk), r.Chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func sourceLabel(ch course.Chunk) string {
	if ch.LessonNumber != nil {
		return fmt.Sprintf("%s - Lesson %d", ch.CourseTitle, *ch.LessonNumber)
	}
	return ch.CourseTitle
}

func noResultsMessage(courseTitle string, lessonNumber *int) string {
	var scope strings.Builder
	if courseTitle != "" {
		fmt.Fprintf(&scope, " in course %q", courseTitle)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&scope, " in lesson %d", *lessonNumber)
	}
	return "No relevant content found" + scope.String() + "."
}

func unavailableResult(op string, err error) Result {
	return Result{
		Status: StatusError,
		Error: &Error{
			Code:    ErrCodeUnavailable,
			Message: fmt.Sprintf("%s: %v", op, err),
		},
	}
}
