// Package tools defines the retrieval tools the answering model can call
// during a query, plus the per-query source recorder that turns tool hits
// into citations.
package tools

// Status indicates whether a tool call succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorCode classifies tool failures for model consumption.
type ErrorCode string

const (
	ErrCodeNotFound    ErrorCode = "NotFound"
	ErrCodeUnavailable ErrorCode = "Unavailable"
	ErrCodeValidation  ErrorCode = "ValidationError"
)

// Error is a structured tool failure. The model reads Code and Message to
// decide whether to retry with different arguments or give up.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Result is the uniform envelope every tool returns. Business failures go
// in Error with StatusError; a Go error is reserved for context
// cancellation and infrastructure faults.
type Result struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
}
