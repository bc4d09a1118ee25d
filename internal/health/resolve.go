package health

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// ReconcileSource пересчитывает статус шагов, за которые отвечают
// контейнеры источника, по его последнему health-событию.
//
// Некорректные данные (timeNano, переопределение статуса) дают результат
// OutcomeMalformed и ошибку ErrMalformedEvent; корректные контейнеры
// источника при этом обработаны.
func (p *Processor) ReconcileSource(ctx context.Context, source string) ([]Result, error) {
	return p.reconcileSource(ctx, source, false)
}

func (p *Processor) reconcileSource(ctx context.Context, source string, promoteOnly bool) ([]Result, error) {
	event, found, err := p.latestEvent(ctx, source)
	if errors.Is(err, ErrMalformedEvent) {
		return []Result{{Outcome: OutcomeMalformed, Source: source}}, err
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return []Result{{Outcome: OutcomeNoEvents, Source: source}}, nil
	}

	records, err := p.launchRecords(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		p.logger.Info("health event not attributable to a step", "source", source, "state", event.State)
		return []Result{{Outcome: OutcomeUnattributed, Source: source, Healthy: event.IsHealthy()}}, nil
	}

	// некорректное переопределение одного контейнера не мешает остальным
	var malformed []error
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		res, err := p.apply(ctx, event, rec, promoteOnly)
		if errors.Is(err, ErrMalformedEvent) {
			p.logger.Warn("malformed launch record", "source", source, "container", rec.Container, "error", err)
			results = append(results, res)
			malformed = append(malformed, err)
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, errors.Join(malformed...)
}

// latestEvent возвращает авторитетное health-событие источника:
// события упорядочены по убыванию timeNano, первая строка побеждает.
func (p *Processor) latestEvent(ctx context.Context, source string) (domain.HealthEvent, bool, error) {
	e := store.Var("event")
	q := store.NewSelect(store.Where(
		store.Triple(e, vocab.EventAction, store.Literal(p.cfg.HealthStatusValue)),
		store.Triple(e, vocab.EventSource, store.Literal(source)),
		store.Triple(e, vocab.EventActionExtra, store.Var("state")),
		store.Triple(e, vocab.EventTimeNano, store.Var("time")),
	), "event", "state", "time").OrderByDesc("time")

	if p.cfg.CheckOnlyLatestHealthcheck {
		q.WithLimit(1)
	}

	rows, err := p.store.Select(ctx, q)
	if err != nil {
		return domain.HealthEvent{}, false, fmt.Errorf("select health events of %s: %w", source, err)
	}
	if len(rows) == 0 {
		return domain.HealthEvent{}, false, nil
	}

	row := rows[0]
	t, err := row["time"].Int()
	if err != nil {
		return domain.HealthEvent{}, false, fmt.Errorf("%w: event %s has non-integer timeNano %q",
			ErrMalformedEvent, row.Value("event"), row.Value("time"))
	}

	p.logger.Debug("authoritative health event",
		"source", source,
		"event", row.Value("event"),
		"state", row.Value("state"),
		"candidates", len(rows),
	)

	return domain.HealthEvent{
		IRI:      row.Value("event"),
		Source:   source,
		TimeNano: t,
		State:    row.Value("state"),
	}, true, nil
}

// launchRecords собирает окружение всех контейнеров источника.
// Контейнеры без INIT_DAEMON_STEP отбрасываются.
func (p *Processor) launchRecords(ctx context.Context, source string) ([]domain.LaunchRecord, error) {
	ce := store.Var("container_event")
	c := store.Var("container")
	q := store.NewSelect(store.Where(
		store.Triple(ce, vocab.EventSource, store.Literal(source)),
		store.Triple(ce, vocab.EventContainer, c),
		store.Triple(c, vocab.ContainerEnv, store.Var("env")),
	), "container", "env")

	rows, err := p.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select launch records of %s: %w", source, err)
	}

	lines := make(map[string][]string)
	for _, row := range rows {
		container := row.Value("container")
		lines[container] = append(lines[container], row.Value("env"))
	}

	containers := make([]string, 0, len(lines))
	for container := range lines {
		containers = append(containers, container)
	}
	sort.Strings(containers)

	records := make([]domain.LaunchRecord, 0, len(containers))
	for _, container := range containers {
		// одна и та же строка окружения может прийти через несколько событий контейнера
		rec := domain.ParseLaunchRecord(container, dedupe(lines[container]))
		if rec.StepCode() == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// target вычисляет статус шага для события: переопределение контейнера,
// иначе значение по умолчанию.
func (p *Processor) target(event domain.HealthEvent, rec domain.LaunchRecord) (domain.StepStatus, error) {
	healthy := event.IsHealthy()
	if override, ok := rec.StatusOverride(healthy); ok {
		status, err := domain.ParseStepStatus(override)
		if err != nil {
			return "", fmt.Errorf("%w: container %s: %w", ErrMalformedEvent, rec.Container, err)
		}
		return status, nil
	}
	if healthy {
		return p.cfg.DefaultHealthyStatus, nil
	}
	return p.cfg.DefaultUnhealthyStatus, nil
}

// apply записывает вычисленный статус, если он отличается от текущего.
func (p *Processor) apply(ctx context.Context, event domain.HealthEvent, rec domain.LaunchRecord, promoteOnly bool) (Result, error) {
	res := Result{Source: event.Source, Healthy: event.IsHealthy()}

	to, err := p.target(event, rec)
	if err != nil {
		res.Outcome = OutcomeMalformed
		return res, err
	}
	res.To = to

	code := rec.StepCode()
	step, err := p.dir.Resolve(ctx, code)
	if errors.Is(err, directory.ErrStepNotFound) {
		p.logger.Info("container step not found", "container", rec.Container, "step", code)
		res.Outcome = OutcomeUnattributed
		res.Step = domain.StepRef{Code: code}
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Step = step

	from, err := p.register.Current(ctx, step)
	if err != nil {
		return res, err
	}
	res.From = from

	if promoteOnly && !(event.IsHealthy() && to.IsSatisfied()) {
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	if from == to {
		res.Outcome = OutcomeUnchanged
		return res, nil
	}

	if err := p.register.Set(ctx, step, to); err != nil {
		return res, err
	}

	p.logger.Info("step status derived from health",
		"step", step.Code,
		"from", from,
		"to", to,
		"source", event.Source,
		"state", event.State,
	)
	res.Outcome = OutcomeApplied
	return res, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
