package api

import (
	"net/http"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
)

// Node is one vertex of the course graph. Group 0 is instructors, 1 is
// courses, 2 is lessons.
type Node struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Group        int    `json:"group"`
	Instructor   string `json:"instructor,omitempty"`
	LessonCount  int    `json:"lesson_count,omitempty"`
	LessonNumber int    `json:"lesson_number,omitempty"`
	Course       string `json:"course,omitempty"`
	CourseLink   string `json:"course_link,omitempty"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

// Link is one edge of the course graph: "teaches" from instructor to
// course, "contains" from course to lesson.
type Link struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Type   string `json:"type"`
}

// Graph is the node-link payload the frontend visualization consumes.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// VisualizationHandler serves the course graph.
type VisualizationHandler struct {
	system QueryService
	logger log.Logger
}

// NewVisualizationHandler creates a visualization handler.
func NewVisualizationHandler(system QueryService, logger log.Logger) *VisualizationHandler {
	return &VisualizationHandler{system: system, logger: logger}
}

// RegisterRoutes registers the visualization route on the mux.
func (h *VisualizationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/visualization-data", h.graph)
}

func (h *VisualizationHandler) graph(w http.ResponseWriter, r *http.Request) {
	courses, err := h.system.Courses(r.Context())
	if err != nil {
		h.logger.Error("loading courses for visualization", "error", err)
		writeError(w, http.StatusInternalServerError, "visualization_failed", "could not load course data")
		return
	}
	writeJSON(w, http.StatusOK, buildGraph(courses))
}

// buildGraph turns catalog metadata into a node-link graph: one node per
// instructor, course, and lesson, with edges following the teaching
// hierarchy.
func buildGraph(courses []course.Course) Graph {
	g := Graph{Nodes: []Node{}, Links: []Link{}}
	nextID := 0
	instructorIDs := make(map[string]int)

	for _, c := range courses {
		instructor := c.Instructor
		if instructor == "" {
			instructor = "Unknown"
		}
		if _, ok := instructorIDs[instructor]; !ok {
			instructorIDs[instructor] = nextID
			g.Nodes = append(g.Nodes, Node{
				ID:    nextID,
				Name:  instructor,
				Type:  "instructor",
				Group: 0,
			})
			nextID++
		}
	}

	for _, c := range courses {
		instructor := c.Instructor
		if instructor == "" {
			instructor = "Unknown"
		}

		courseID := nextID
		g.Nodes = append(g.Nodes, Node{
			ID:          courseID,
			Name:        c.Title,
			Type:        "course",
			Group:       1,
			Instructor:  instructor,
			LessonCount: len(c.Lessons),
			CourseLink:  c.Link,
		})
		nextID++

		g.Links = append(g.Links, Link{
			Source: instructorIDs[instructor],
			Target: courseID,
			Type:   "teaches",
		})

		for _, l := range c.Lessons {
			g.Nodes = append(g.Nodes, Node{
				ID:           nextID,
				Name:         l.Title,
				Type:         "lesson",
				Group:        2,
				LessonNumber: l.Number,
				Course:       c.Title,
				LessonLink:   l.Link,
			})
			g.Links = append(g.Links, Link{
				Source: courseID,
				Target: nextID,
				Type:   "contains",
			})
			nextID++
		}
	}

	return g
}
