package domain

import (
	"fmt"
	"strings"
)

// StepStatus — статус шага пайплайна.
//
// Жизненный цикл:
//
//	NOT_STARTED → STARTING → RUNNING → READY → DONE
//	           ↘ RUNNING            ↘ DONE
//	(любой нетерминальный) → FAILED → STARTING | RUNNING
type StepStatus string

const (
	// StatusNotStarted — шаг ещё не запускался. Шаг без статуса в графе
	// считается NOT_STARTED.
	StatusNotStarted StepStatus = "not_started"

	// StatusStarting — контейнер шага загружается (boot).
	StatusStarting StepStatus = "starting"

	// StatusRunning — шаг выполняется (execute).
	StatusRunning StepStatus = "running"

	// StatusReady — шаг готов обслуживать зависимые шаги.
	StatusReady StepStatus = "ready"

	// StatusDone — шаг завершён.
	StatusDone StepStatus = "done"

	// StatusFailed — шаг завершился с ошибкой.
	StatusFailed StepStatus = "failed"
)

// AllStatuses возвращает все статусы в порядке жизненного цикла.
func AllStatuses() []StepStatus {
	return []StepStatus{
		StatusNotStarted,
		StatusStarting,
		StatusRunning,
		StatusReady,
		StatusDone,
		StatusFailed,
	}
}

// SatisfiedStatuses — статусы, достаточные для старта зависимых шагов.
func SatisfiedStatuses() []StepStatus {
	return []StepStatus{StatusDone, StatusReady}
}

// String возвращает строковое представление статуса.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid проверяет, что статус входит в перечисление.
func (s StepStatus) IsValid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsSatisfied возвращает true для DONE и READY.
func (s StepStatus) IsSatisfied() bool {
	return s == StatusDone || s == StatusReady
}

// IsTerminal возвращает true, если из статуса нет переходов.
func (s StepStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// ParseStepStatus парсит строку в StepStatus (без учёта регистра и пробелов).
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// transitions — допустимые переходы для команд (boot/execute/ready/done/fail).
// Статусы, выведенные из health-событий, записываются без этой проверки.
var transitions = map[StepStatus][]StepStatus{
	StatusNotStarted: {StatusStarting, StatusRunning, StatusFailed},
	StatusStarting:   {StatusRunning, StatusReady, StatusFailed},
	StatusRunning:    {StatusReady, StatusDone, StatusFailed},
	StatusReady:      {StatusDone, StatusRunning, StatusFailed},
	StatusFailed:     {StatusStarting, StatusRunning},
	StatusDone:       nil,
}

// CanTransitionTo проверяет допустимость перехода s → to.
// Переход в тот же статус всегда допустим (идемпотентность команд).
func (s StepStatus) CanTransitionTo(to StepStatus) bool {
	if s == to {
		return to.IsValid()
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает *TransitionError для недопустимого перехода.
func ValidateTransition(from, to StepStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
