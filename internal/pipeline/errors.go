package pipeline

import (
	"errors"
	"fmt"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

// PhaseError marks a named, expected failure condition inside a phase, such
// as a missing input file or an unreachable worker. Anything else that
// escapes a phase handler is treated as unexpected and recorded with its
// full detail.
type PhaseError struct {
	Phase  domain.Phase
	Reason string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s: %s", e.Phase, e.Reason)
}

// Recoverable builds a PhaseError for a known failure condition.
func Recoverable(phase domain.Phase, format string, args ...any) *PhaseError {
	return &PhaseError{Phase: phase, Reason: fmt.Sprintf(format, args...)}
}

// failureText renders the message persisted in the state file. Expected
// conditions keep their short reason, unexpected errors are flagged as such.
func failureText(err error) string {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return fmt.Sprintf("unexpected: %v", err)
}
