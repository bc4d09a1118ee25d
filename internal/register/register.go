// Package register хранит текущий статус каждого шага.
//
// Статус — единственный факт poc:status у шага. Запись выполняется одним
// атомарным обновлением "удалить старый, вставить новый", поэтому читатели
// не видят шаг без статуса в момент замены.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// ErrMultipleStatuses — у шага больше одного факта статуса.
var ErrMultipleStatuses = errors.New("step has several statuses")

// Register — реестр статусов шагов.
type Register struct {
	store  store.Store
	logger *slog.Logger
}

// New создаёт Register.
func New(s store.Store, logger *slog.Logger) *Register {
	if logger == nil {
		logger = slog.Default()
	}
	return &Register{store: s, logger: logger}
}

// Current возвращает текущий статус шага. Шаг без статуса — NOT_STARTED.
func (r *Register) Current(ctx context.Context, step domain.StepRef) (domain.StepStatus, error) {
	q := store.NewSelect(store.Where(
		store.Triple(store.IRI(step.IRI), vocab.Status, store.Var("status")),
	), "status")

	rows, err := r.store.Select(ctx, q)
	if err != nil {
		return "", fmt.Errorf("select status of %s: %w", step.Code, err)
	}

	switch len(rows) {
	case 0:
		return domain.StatusNotStarted, nil
	case 1:
	default:
		return "", fmt.Errorf("%w (%w): %s has %d", ErrMultipleStatuses, store.ErrConsistency, step.Code, len(rows))
	}

	status, err := domain.ParseStepStatus(rows[0].Value("status"))
	if err != nil {
		return "", fmt.Errorf("%w: step %s: %w", store.ErrConsistency, step.Code, err)
	}
	return status, nil
}

// Set безусловно заменяет статус шага одним атомарным обновлением.
// Допустимость перехода не проверяется.
func (r *Register) Set(ctx context.Context, step domain.StepRef, status domain.StepStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStatus, status)
	}

	u := store.Replace(store.IRI(step.IRI), vocab.Status, store.Literal(status.String()))
	if err := r.store.Update(ctx, u); err != nil {
		return fmt.Errorf("update status of %s: %w", step.Code, err)
	}

	r.logger.Debug("step status set", "step", step.Code, "status", status)
	return nil
}

// Transition переводит шаг в статус to с проверкой таблицы переходов.
//
// Повторный переход в текущий статус ничего не пишет и не считается ошибкой.
// Недопустимый переход возвращает *domain.TransitionError.
// Между чтением и записью возможна гонка с другим писателем: побеждает
// последняя запись.
func (r *Register) Transition(ctx context.Context, step domain.StepRef, to domain.StepStatus) (domain.StepStatus, error) {
	from, err := r.Current(ctx, step)
	if err != nil {
		return "", err
	}

	if err := domain.ValidateTransition(from, to); err != nil {
		var te *domain.TransitionError
		if errors.As(err, &te) {
			te.Step = step.Code
		}
		return from, err
	}

	if from == to {
		return from, nil
	}

	if err := r.Set(ctx, step, to); err != nil {
		return from, err
	}
	return from, nil
}
