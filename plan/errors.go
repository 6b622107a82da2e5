package plan

import (
	"fmt"

	"github.com/pkg/errors"
)

// PlanningError is an expected planning failure: a parse error, a semantic
// validation failure, or a parameter-count mismatch outside explain mode.
// It is never logged with a stack trace; it crosses the facade boundary as
// a plain runtime failure carrying a human-readable message.
type PlanningError struct {
	msg string
}

func (e *PlanningError) Error() string { return e.msg }

func newPlanningError(format string, args ...interface{}) error {
	return &PlanningError{msg: fmt.Sprintf(format, args...)}
}

// IsPlanningError reports whether err is an expected planning failure
// rather than an internal compile error.
func IsPlanningError(err error) bool {
	var pe *PlanningError
	return errors.As(err, &pe)
}

// wrapCompileError annotates an unexpected optimizer failure with a stack
// trace, the way an internal compile error is logged before being
// surfaced to the caller as a plain runtime failure.
func wrapCompileError(err error, context string) error {
	return errors.Wrap(err, context)
}
