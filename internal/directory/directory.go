// Package directory находит шаги пайплайна по человекочитаемому коду.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// Ошибки справочника шагов.
var (
	// ErrStepNotFound — ни один шаг не несёт указанный код.
	ErrStepNotFound = errors.New("step not found")

	// ErrAmbiguousStep — код принадлежит нескольким шагам.
	ErrAmbiguousStep = errors.New("step code is ambiguous")

	// ErrNoOrder — шаг не входит ни в один пайплайн или не имеет порядкового номера.
	ErrNoOrder = errors.New("step has no position in a pipeline")
)

// NotFoundError — шаг с кодом Code не найден.
type NotFoundError struct {
	Code string
}

// Error реализует интерфейс error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No step found with code '%s'", e.Code)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrStepNotFound).
func (e *NotFoundError) Unwrap() error {
	return ErrStepNotFound
}

// Directory — справочник шагов поверх хранилища фактов.
type Directory struct {
	store  store.Store
	logger *slog.Logger
}

// New создаёт Directory.
func New(s store.Store, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{store: s, logger: logger}
}

// ByCode — шаблон "шаг с кодом code" с переменной ?step.
// Код нормализуется к нижнему регистру.
func ByCode(step store.Term, code string) []store.Pattern {
	return []store.Pattern{
		store.Triple(step, vocab.Type, vocab.Step),
		store.Triple(step, vocab.Code, store.Literal(domain.NormalizeCode(code))),
	}
}

// Exists проверяет, что шаг с кодом существует.
func (d *Directory) Exists(ctx context.Context, code string) (bool, error) {
	q := store.NewAsk(store.Where(ByCode(store.Var("step"), code)...))
	ok, err := d.store.Ask(ctx, q)
	if err != nil {
		return false, fmt.Errorf("ask step %q: %w", code, err)
	}
	return ok, nil
}

// Resolve возвращает ссылку на шаг по коду.
//
// Ноль совпадений — *NotFoundError, больше одного — ErrAmbiguousStep
// (нарушение целостности графа, а не выбор первого попавшегося).
func (d *Directory) Resolve(ctx context.Context, code string) (domain.StepRef, error) {
	normalized := domain.NormalizeCode(code)

	q := store.NewSelect(store.Where(ByCode(store.Var("step"), normalized)...), "step")
	rows, err := d.store.Select(ctx, q)
	if err != nil {
		return domain.StepRef{}, fmt.Errorf("select step %q: %w", normalized, err)
	}

	switch len(rows) {
	case 0:
		return domain.StepRef{}, &NotFoundError{Code: code}
	case 1:
		return domain.StepRef{IRI: rows[0].Value("step"), Code: normalized}, nil
	default:
		d.logger.Error("step code matches several steps",
			"step", normalized,
			"matches", len(rows),
		)
		return domain.StepRef{}, fmt.Errorf("%w (%w): code %q matches %d steps",
			ErrAmbiguousStep, store.ErrConsistency, normalized, len(rows))
	}
}

// Order возвращает пайплайн и порядковый номер шага.
func (d *Directory) Order(ctx context.Context, step domain.StepRef) (domain.StepOrder, error) {
	stepIRI := store.IRI(step.IRI)
	q := store.NewSelect(store.Where(
		store.Triple(store.Var("pipeline"), vocab.Type, vocab.Workflow),
		store.Triple(store.Var("pipeline"), vocab.HasStep, stepIRI),
		store.Triple(stepIRI, vocab.Order, store.Var("sequence")),
	), "pipeline", "sequence")

	rows, err := d.store.Select(ctx, q)
	if err != nil {
		return domain.StepOrder{}, fmt.Errorf("select order of %s: %w", step.Code, err)
	}

	switch len(rows) {
	case 0:
		return domain.StepOrder{}, fmt.Errorf("%w: %s", ErrNoOrder, step.Code)
	case 1:
	default:
		return domain.StepOrder{}, fmt.Errorf("%w: step %s has %d positions",
			store.ErrConsistency, step.Code, len(rows))
	}

	seq, err := rows[0]["sequence"].Int()
	if err != nil {
		return domain.StepOrder{}, fmt.Errorf("%w: step %s has non-integer order %q",
			store.ErrConsistency, step.Code, rows[0].Value("sequence"))
	}

	return domain.StepOrder{Pipeline: rows[0].Value("pipeline"), Sequence: seq}, nil
}

// PrecedingUnsatisfied возвращает шаги того же пайплайна с меньшим порядковым
// номером, статус которых не удовлетворяет зависимым (включая шаги без статуса).
func (d *Directory) PrecedingUnsatisfied(ctx context.Context, code string) ([]domain.StepRef, error) {
	where := PrecedingUnsatisfied(code)
	where.Patterns = append(where.Patterns, store.Triple(store.Var("prev"), vocab.Code, store.Var("prev_code")))

	q := store.NewSelect(where, "prev", "prev_code", "prev_sequence").OrderByAsc("prev_sequence")

	rows, err := d.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select steps preceding %q: %w", code, err)
	}

	steps := make([]domain.StepRef, 0, len(rows))
	for _, row := range rows {
		steps = append(steps, domain.StepRef{
			IRI:  row.Value("prev"),
			Code: domain.NormalizeCode(row.Value("prev_code")),
		})
	}
	return steps, nil
}

// PrecedingUnsatisfied — группа "в пайплайне шага code есть шаг ?prev
// с меньшим порядковым номером и без статуса DONE/READY".
//
// Отсутствие статуса тоже считается неудовлетворённым: условие выражено
// через NOT EXISTS, а не через сравнение статуса.
func PrecedingUnsatisfied(code string) store.Group {
	step := store.Var("step")
	prev := store.Var("prev")

	satisfied := make([]store.Term, 0, 2)
	for _, s := range domain.SatisfiedStatuses() {
		satisfied = append(satisfied, store.Literal(s.String()))
	}

	patterns := []store.Pattern{
		store.Triple(store.Var("pipeline"), vocab.Type, vocab.Workflow),
		store.Triple(store.Var("pipeline"), vocab.HasStep, step),
		store.Triple(store.Var("pipeline"), vocab.HasStep, prev),
	}
	patterns = append(patterns, ByCode(step, code)...)
	patterns = append(patterns,
		store.Triple(step, vocab.Order, store.Var("sequence")),
		store.Triple(prev, vocab.Type, vocab.Step),
		store.Triple(prev, vocab.Order, store.Var("prev_sequence")),
	)

	return store.Where(patterns...).
		Filter(store.Less(store.Var("prev_sequence"), store.Var("sequence"))).
		Without(store.Where(
			store.Triple(prev, vocab.Status, store.Var("prev_status")),
		).Filter(store.In(store.Var("prev_status"), satisfied...)))
}
