package service

import (
	"fmt"
	"strings"
)

// ValidationError describes a single violation in an inbound request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string { return e.Message }

// ValidationFailedError carries every violation found in a request so a
// caller sees all of them at once. No record is created for rejected
// requests.
type ValidationFailedError struct {
	Errors []ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		msgs = append(msgs, v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// SystemNotFoundError indicates a source or target system is unknown or
// inactive; surfaced pre-dispatch, no record is created.
type SystemNotFoundError struct {
	Name string
}

func (e *SystemNotFoundError) Error() string {
	return fmt.Sprintf("system %q not found or inactive", e.Name)
}
