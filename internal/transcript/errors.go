package transcript

import "fmt"

// ParseError reports a document that cannot be parsed at all, such as a
// missing course title header. Per-lesson problems are not ParseErrors;
// malformed lesson blocks are skipped with a warning instead.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing transcript: %s", e.Reason)
	}
	return fmt.Sprintf("parsing transcript %s: %s", e.Path, e.Reason)
}
