package pipeline

import (
	"sort"

	"github.com/google/uuid"

	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

// Materialized — пайплайн, готовый к записи в граф.
type Materialized struct {
	IRI   string
	Steps []domain.Step
	Facts []store.Pattern
}

// Materialize строит факты пайплайна: тип, шаги, коды, порядок и статус
// not_started. IRI генерируются через uuid. Определение должно пройти Validate.
func Materialize(def *Definition) *Materialized {
	return materialize(def, uuid.NewString)
}

func materialize(def *Definition, newID func() string) *Materialized {
	m := &Materialized{IRI: vocab.ResourceBase + "pipelines/" + newID()}
	pipeline := store.IRI(m.IRI)

	m.Facts = append(m.Facts, store.Triple(pipeline, vocab.Type, vocab.Workflow))
	if def.Title != "" {
		m.Facts = append(m.Facts, store.Triple(pipeline, vocab.Title, store.Literal(def.Title)))
	} else if def.Name != "" {
		m.Facts = append(m.Facts, store.Triple(pipeline, vocab.Title, store.Literal(def.Name)))
	}

	steps := append([]StepDefinition(nil), def.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	for _, sd := range steps {
		code := domain.NormalizeCode(sd.Code)
		iri := vocab.ResourceBase + "steps/" + newID()
		step := store.IRI(iri)

		m.Facts = append(m.Facts,
			store.Triple(pipeline, vocab.HasStep, step),
			store.Triple(step, vocab.Type, vocab.Step),
			store.Triple(step, vocab.Code, store.Literal(code)),
			store.Triple(step, vocab.Order, store.Integer(sd.Order)),
			store.Triple(step, vocab.Status, store.Literal(domain.StatusNotStarted.String())),
		)
		if sd.Title != "" {
			m.Facts = append(m.Facts, store.Triple(step, vocab.Title, store.Literal(sd.Title)))
		}

		m.Steps = append(m.Steps, domain.Step{
			StepRef:   domain.StepRef{IRI: iri, Code: code},
			StepOrder: domain.StepOrder{Pipeline: m.IRI, Sequence: sd.Order},
			Status:    domain.StatusNotStarted,
		})
	}
	return m
}

// Update возвращает одно обновление, вставляющее все факты.
func (m *Materialized) Update() *store.Update {
	return store.InsertData(m.Facts...)
}

// Rollback возвращает обновление, удаляющее все факты пайплайна.
// Статус шагов удаляется с любым значением: его могли успеть сменить.
func (m *Materialized) Rollback() *store.Update {
	del := make([]store.Pattern, 0, len(m.Facts))
	for _, f := range m.Facts {
		if f.Predicate == vocab.Status {
			f.Object = store.Var("status")
		}
		del = append(del, f)
	}
	return &store.Update{Delete: del}
}
