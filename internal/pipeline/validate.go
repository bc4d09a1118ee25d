package pipeline

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/shaiso/initdaemon/internal/domain"
)

// codeRe — допустимые коды: их пишут в INIT_DAEMON_STEP и в query-параметр.
var codeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// Validate выполняет полную валидацию определения.
//
// Проверяет:
// - Наличие шагов
// - Непустые и допустимые коды
// - Уникальность кодов без учёта регистра
// - Различные порядковые номера (совпадение порядка делает проверку
//   предшественников неопределённой)
func Validate(def *Definition) error {
	if def == nil || len(def.Steps) == 0 {
		return NewValidationError("", "steps", "pipeline has no steps", ErrEmptySteps)
	}

	codes := make(map[string]bool, len(def.Steps))
	orders := make(map[int64]string, len(def.Steps))

	for i, step := range def.Steps {
		code := domain.NormalizeCode(step.Code)
		if code == "" {
			return NewValidationError("", "code",
				fmt.Sprintf("step %d has empty code", i), ErrEmptyCode)
		}
		if !codeRe.MatchString(code) {
			return NewValidationError(code, "code",
				fmt.Sprintf("code %s contains unsupported characters", strconv.Quote(step.Code)), ErrInvalidCode)
		}

		if codes[code] {
			return NewValidationError(code, "code",
				fmt.Sprintf("duplicate step code: %s", code), ErrDuplicateCode)
		}
		codes[code] = true

		if other, ok := orders[step.Order]; ok {
			return NewValidationError(code, "order",
				fmt.Sprintf("order %d is already used by step %s", step.Order, other), ErrDuplicateOrder)
		}
		orders[step.Order] = code
	}

	return nil
}
