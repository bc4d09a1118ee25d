package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// stepEnvPrefix — префикс строки окружения с кодом шага.
const stepEnvPrefix = domain.EnvStep + "="

// ReconcilePreceding продвигает предшествующие шаги, которые ещё не
// удовлетворены, но контейнеры которых уже сообщили healthy.
//
// Используется при проверке шага, когда поток изменений недоступен.
// Статус только повышается до удовлетворённого, понижения нет.
func (p *Processor) ReconcilePreceding(ctx context.Context, code string) ([]Result, error) {
	steps, err := p.dir.PrecedingUnsatisfied(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, nil
	}

	wanted := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		wanted[s.Code] = struct{}{}
	}

	sources, err := p.stepSources(ctx)
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, code := range sortedKeys(sources) {
		if _, ok := wanted[code]; !ok {
			continue
		}
		selected = append(selected, sources[code]...)
	}

	return p.reconcileSources(ctx, selected, true)
}

// ReconcileAll пересчитывает статусы для всех источников, контейнеры
// которых привязаны к шагам.
func (p *Processor) ReconcileAll(ctx context.Context) ([]Result, error) {
	sources, err := p.stepSources(ctx)
	if err != nil {
		return nil, err
	}

	var all []string
	for _, code := range sortedKeys(sources) {
		all = append(all, sources[code]...)
	}
	return p.reconcileSources(ctx, all, false)
}

func (p *Processor) reconcileSources(ctx context.Context, sources []string, promoteOnly bool) ([]Result, error) {
	var results []Result
	for _, source := range dedupe(sources) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.reconcileSource(ctx, source, promoteOnly)
		results = append(results, res...)
		if errors.Is(err, ErrMalformedEvent) {
			// фатальны только ошибки хранилища
			p.logger.Warn("skipping malformed health data", "source", source, "error", err)
			continue
		}
		if err != nil {
			return results, fmt.Errorf("reconcile source %s: %w", source, err)
		}
	}
	return results, nil
}

// stepSources возвращает источники контейнеров, сгруппированные по
// нормализованному коду шага из INIT_DAEMON_STEP.
func (p *Processor) stepSources(ctx context.Context) (map[string][]string, error) {
	ce := store.Var("container_event")
	c := store.Var("container")
	env := store.Var("env")
	q := store.NewSelect(store.Where(
		store.Triple(c, vocab.ContainerEnv, env),
		store.Triple(ce, vocab.EventContainer, c),
		store.Triple(ce, vocab.EventSource, store.Var("source")),
	).Filter(store.StrStarts(env, stepEnvPrefix)), "env", "source")

	rows, err := p.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select container sources: %w", err)
	}

	out := make(map[string][]string)
	for _, row := range rows {
		code := domain.NormalizeCode(strings.TrimPrefix(row.Value("env"), stepEnvPrefix))
		if code == "" {
			continue
		}
		out[code] = append(out[code], row.Value("source"))
	}
	for code, sources := range out {
		sorted := dedupe(sources)
		sort.Strings(sorted)
		out[code] = sorted
	}
	return out, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
