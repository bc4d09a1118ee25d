// Package storetest собирает факты графа для тестов: пайплайны, шаги,
// контейнеры и health-события.
package storetest

import (
	"fmt"

	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// Base — префикс IRI тестовых ресурсов.
const Base = "http://example.test/"

// Step — шаг тестового пайплайна. Пустой Status — у шага нет факта статуса.
type Step struct {
	Code   string
	Order  int64
	Status string
}

// StepIRI возвращает IRI шага по коду.
func StepIRI(code string) string {
	return Base + "steps/" + code
}

// Pipeline возвращает факты пайплайна с шагами.
func Pipeline(name string, steps ...Step) []store.Pattern {
	p := store.IRI(Base + "pipelines/" + name)
	facts := []store.Pattern{store.Triple(p, vocab.Type, vocab.Workflow)}

	for _, s := range steps {
		iri := store.IRI(StepIRI(s.Code))
		facts = append(facts,
			store.Triple(p, vocab.HasStep, iri),
			store.Triple(iri, vocab.Type, vocab.Step),
			store.Triple(iri, vocab.Code, store.Literal(s.Code)),
			store.Triple(iri, vocab.Order, store.Integer(s.Order)),
		)
		if s.Status != "" {
			facts = append(facts, store.Triple(iri, vocab.Status, store.Literal(s.Status)))
		}
	}
	return facts
}

// Container возвращает факты запуска контейнера: событие контейнера
// с источником source и строки окружения "KEY=VALUE".
func Container(name, source string, env ...string) []store.Pattern {
	c := store.IRI(Base + "containers/" + name)
	ce := store.IRI(Base + "events/start-" + name)
	facts := []store.Pattern{
		store.Triple(ce, vocab.EventAction, store.Literal("start")),
		store.Triple(ce, vocab.EventSource, store.Literal(source)),
		store.Triple(ce, vocab.EventContainer, c),
	}
	for _, line := range env {
		facts = append(facts, store.Triple(c, vocab.ContainerEnv, store.Literal(line)))
	}
	return facts
}

// HealthEvent возвращает IRI и факты health-события.
func HealthEvent(source, state string, timeNano int64) (string, []store.Pattern) {
	iri := fmt.Sprintf("%sevents/health-%s-%d", Base, source, timeNano)
	e := store.IRI(iri)
	return iri, []store.Pattern{
		store.Triple(e, vocab.EventAction, store.Literal("health_status")),
		store.Triple(e, vocab.EventSource, store.Literal(source)),
		store.Triple(e, vocab.EventActionExtra, store.Literal(state)),
		store.Triple(e, vocab.EventTimeNano, store.Integer(timeNano)),
	}
}

// Join склеивает наборы фактов.
func Join(sets ...[]store.Pattern) []store.Pattern {
	var out []store.Pattern
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
