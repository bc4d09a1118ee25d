package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/initdaemon/internal/delta"
	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/register"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// Outcome — результат обработки одного источника или события.
type Outcome string

const (
	// OutcomeApplied — статус шага изменён.
	OutcomeApplied Outcome = "applied"

	// OutcomeUnchanged — вычисленный статус совпал с текущим, записи не было.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeUnattributed — событие не удалось связать с шагом.
	OutcomeUnattributed Outcome = "unattributed"

	// OutcomeNoEvents — у источника нет health-событий.
	OutcomeNoEvents Outcome = "no_events"

	// OutcomeSkipped — статус не повышается (сверка перед проверкой шага
	// только продвигает шаги, ставшие healthy).
	OutcomeSkipped Outcome = "skipped"

	// OutcomeMalformed — событие или переопределение статуса некорректны.
	OutcomeMalformed Outcome = "malformed"
)

// Result — итог сверки для одного шага.
type Result struct {
	Outcome Outcome
	Source  string
	Step    domain.StepRef
	From    domain.StepStatus
	To      domain.StepStatus
	Healthy bool
}

// Processor выводит статусы шагов из health-событий.
type Processor struct {
	store    store.Store
	dir      *directory.Directory
	register *register.Register
	cfg      Config
	logger   *slog.Logger
}

// Deps — зависимости Processor.
type Deps struct {
	Store     store.Store
	Directory *directory.Directory
	Register  *register.Register
	Logger    *slog.Logger
}

// New создаёт Processor.
func New(deps Deps, cfg Config) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:    deps.Store,
		dir:      deps.Directory,
		register: deps.Register,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Config возвращает действующую конфигурацию.
func (p *Processor) Config() Config {
	return p.cfg
}

// IsHealthFact проверяет, что факт утверждает действие health-check:
// (?, dockevent:action, "<HealthStatusValue>").
func (p *Processor) IsHealthFact(fact store.Pattern) bool {
	return fact.Predicate.Kind == store.KindIRI &&
		fact.Predicate.Value == vocab.EventAction.Value &&
		fact.Object.Kind == store.KindLiteral &&
		fact.Object.Value == p.cfg.HealthStatusValue
}

// isHealthTriple проверяет предикат и объект тройки до разбора термов.
func (p *Processor) isHealthTriple(t delta.Triple) bool {
	if t.Predicate == nil || t.Object == nil {
		return false
	}
	if t.Predicate.Type != "uri" || t.Predicate.Value != vocab.EventAction.Value {
		return false
	}
	switch t.Object.Type {
	case "literal", "typed-literal":
		return t.Object.Value == p.cfg.HealthStatusValue
	default:
		return false
	}
}

// ProcessBatch обрабатывает вставленные факты пачки по одному.
//
// Факты, не относящиеся к health-check, пропускаются без проверки формы:
// поток изменений несёт все вставки графа. Некорректный факт
// прерывает обработку только самого себя; по итогам пачки возвращается
// один *BatchError. Ошибка хранилища прерывает пачку сразу.
func (p *Processor) ProcessBatch(ctx context.Context, inserts []delta.Triple) ([]Result, error) {
	var (
		results []Result
		failed  int
		first   error
	)

	for i, t := range inserts {
		if !p.isHealthTriple(t) {
			continue
		}

		fact, err := t.Pattern()
		if err != nil {
			failed++
			if first == nil {
				first = fmt.Errorf("%w: fact %d: %w", ErrMalformedEvent, i, err)
			}
			p.logger.Warn("malformed health event", "fact", i, "error", err)
			continue
		}

		res, err := p.ProcessFact(ctx, fact)
		if errors.Is(err, ErrMalformedEvent) {
			failed++
			if first == nil {
				first = fmt.Errorf("fact %d: %w", i, err)
			}
			p.logger.Warn("malformed health event", "event", fact.Subject.Value, "error", err)
			results = append(results, res...)
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, res...)
	}

	if failed > 0 {
		return results, &BatchError{Total: len(inserts), Failed: failed, First: first}
	}
	return results, nil
}

// ProcessFact обрабатывает один факт health-check: находит источник события
// и сверяет статус шага, за который отвечает контейнер источника.
// Прочие факты игнорируются.
func (p *Processor) ProcessFact(ctx context.Context, fact store.Pattern) ([]Result, error) {
	if !p.IsHealthFact(fact) {
		return nil, nil
	}
	if fact.Subject.Kind != store.KindIRI {
		return nil, fmt.Errorf("%w: event subject is not a resource", ErrMalformedEvent)
	}

	event, err := p.event(ctx, fact.Subject.Value)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("health event received",
		"event", event.IRI,
		"source", event.Source,
		"state", event.State,
		"time_nano", event.TimeNano,
	)

	return p.ReconcileSource(ctx, event.Source)
}

// event читает поля health-события. Отсутствие source, состояния или
// времени — ErrMalformedEvent.
func (p *Processor) event(ctx context.Context, iri string) (domain.HealthEvent, error) {
	e := store.IRI(iri)
	q := store.NewSelect(store.Where(
		store.Triple(e, vocab.EventSource, store.Var("source")),
		store.Triple(e, vocab.EventActionExtra, store.Var("state")),
		store.Triple(e, vocab.EventTimeNano, store.Var("time")),
	), "source", "state", "time")

	rows, err := p.store.Select(ctx, q)
	if err != nil {
		return domain.HealthEvent{}, fmt.Errorf("select health event %s: %w", iri, err)
	}
	if len(rows) == 0 {
		return domain.HealthEvent{}, fmt.Errorf("%w: event %s has no source, state or timeNano", ErrMalformedEvent, iri)
	}

	return rowToEvent(iri, rows[0])
}

func rowToEvent(iri string, row store.Binding) (domain.HealthEvent, error) {
	t, err := row["time"].Int()
	if err != nil {
		return domain.HealthEvent{}, fmt.Errorf("%w: event %s has non-integer timeNano %q",
			ErrMalformedEvent, iri, row.Value("time"))
	}
	source := row.Value("source")
	if source == "" {
		return domain.HealthEvent{}, fmt.Errorf("%w: event %s has empty source", ErrMalformedEvent, iri)
	}
	return domain.HealthEvent{
		IRI:      iri,
		Source:   source,
		TimeNano: t,
		State:    row.Value("state"),
	}, nil
}
