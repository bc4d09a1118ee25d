package pipeline

import "errors"

// Ошибки валидации определения.
var (
	// ErrEmptySteps — пайплайн не содержит шагов.
	ErrEmptySteps = errors.New("pipeline has no steps")

	// ErrEmptyCode — у шага нет кода.
	ErrEmptyCode = errors.New("step has empty code")

	// ErrDuplicateCode — несколько шагов с одним кодом (без учёта регистра).
	ErrDuplicateCode = errors.New("duplicate step code")

	// ErrDuplicateOrder — несколько шагов с одним порядковым номером.
	ErrDuplicateOrder = errors.New("duplicate step order")

	// ErrInvalidCode — код нельзя использовать в переменной окружения.
	ErrInvalidCode = errors.New("invalid step code")

	// ErrParse — определение не разобрано.
	ErrParse = errors.New("pipeline definition parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Code    string // код шага, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Code != "" {
		return "step " + e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(code, field, message string, err error) *ValidationError {
	return &ValidationError{
		Code:    code,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
