package pipeline

import (
	"fmt"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

// Error is returned when a session fails in one of its stages.
type Error struct {
	SessionID string
	Stage     State
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing description of the error.
func (e *Error) Message() string {
	return failure.Message(e.Err)
}
