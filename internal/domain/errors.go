package domain

import (
	"errors"
	"fmt"
)

// Ошибки доменной модели.
var (
	// ErrUnknownStatus — строка не является статусом шага.
	ErrUnknownStatus = errors.New("unknown step status")

	// ErrInvalidTransition — переход между статусами запрещён.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError — недопустимый переход статуса шага.
type TransitionError struct {
	Step string // код шага, если известен
	From StepStatus
	To   StepStatus
}

// Error реализует интерфейс error.
func (e *TransitionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step %s: cannot move from %s to %s", e.Step, e.From, e.To)
	}
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
