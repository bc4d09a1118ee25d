// Package delta декодирует уведомления об изменениях графа.
//
// Формат (delta-notifier):
//
//	[
//	  {
//	    "inserts": [{"subject": {...}, "predicate": {...}, "object": {...}}],
//	    "deletes": [...]
//	  }
//	]
//
// Терм: {"type": "uri"|"literal"|"typed-literal"|"bnode", "value": "...", "datatype": "..."}.
package delta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shaiso/initdaemon/internal/store"
)

// ErrMalformed — уведомление не соответствует ожидаемой структуре.
var ErrMalformed = errors.New("malformed delta")

// Term — терм тройки в уведомлении.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
}

// Triple — тройка в уведомлении. Отсутствующие поля остаются nil.
type Triple struct {
	Subject   *Term `json:"subject"`
	Predicate *Term `json:"predicate"`
	Object    *Term `json:"object"`
}

// ChangeSet — одна группа изменений.
type ChangeSet struct {
	Inserts []Triple `json:"inserts"`
	Deletes []Triple `json:"deletes"`
}

// Batch — пачка групп изменений из одного уведомления.
type Batch []ChangeSet

// Decode разбирает тело уведомления.
//
// Принимается как массив групп, так и одиночная группа (объект).
func Decode(data []byte) (Batch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	if trimmed[0] == '{' {
		var single ChangeSet
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Batch{single}, nil
	}

	var batch Batch
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return batch, nil
}

// Inserts возвращает все вставленные тройки пачки в исходном порядке.
func (b Batch) Inserts() []Triple {
	var inserts []Triple
	for _, cs := range b {
		inserts = append(inserts, cs.Inserts...)
	}
	return inserts
}

// Encode сериализует пачку в формат уведомления.
func (b Batch) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// Pattern переводит тройку в модель хранилища.
func (t Triple) Pattern() (store.Pattern, error) {
	if t.Subject == nil || t.Predicate == nil || t.Object == nil {
		return store.Pattern{}, fmt.Errorf("%w: triple misses subject, predicate or object", ErrMalformed)
	}

	s, err := t.Subject.term()
	if err != nil {
		return store.Pattern{}, fmt.Errorf("subject: %w", err)
	}
	p, err := t.Predicate.term()
	if err != nil {
		return store.Pattern{}, fmt.Errorf("predicate: %w", err)
	}
	o, err := t.Object.term()
	if err != nil {
		return store.Pattern{}, fmt.Errorf("object: %w", err)
	}

	if s.Kind != store.KindIRI || p.Kind != store.KindIRI {
		return store.Pattern{}, fmt.Errorf("%w: subject and predicate must be resources", ErrMalformed)
	}
	return store.Triple(s, p, o), nil
}

func (t *Term) term() (store.Term, error) {
	switch t.Type {
	case "uri":
		if err := store.ValidateIRI(t.Value); err != nil {
			return store.Term{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return store.IRI(t.Value), nil
	case "bnode":
		return store.Term{}, fmt.Errorf("%w: blank nodes are not supported", ErrMalformed)
	case "literal", "typed-literal":
		return store.Term{Kind: store.KindLiteral, Value: t.Value, Datatype: t.Datatype}, nil
	case "":
		return store.Term{}, fmt.Errorf("%w: term without type", ErrMalformed)
	default:
		return store.Term{}, fmt.Errorf("%w: unknown term type %q", ErrMalformed, t.Type)
	}
}

// FromPattern переводит тройку хранилища в формат уведомления.
func FromPattern(p store.Pattern) Triple {
	return Triple{
		Subject:   fromTerm(p.Subject),
		Predicate: fromTerm(p.Predicate),
		Object:    fromTerm(p.Object),
	}
}

func fromTerm(t store.Term) *Term {
	switch t.Kind {
	case store.KindIRI:
		return &Term{Type: "uri", Value: t.Value}
	case store.KindLiteral:
		if t.Datatype != "" {
			return &Term{Type: "typed-literal", Value: t.Value, Datatype: t.Datatype}
		}
		return &Term{Type: "literal", Value: t.Value}
	default:
		return &Term{Type: "", Value: t.Value}
	}
}
