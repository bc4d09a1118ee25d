package store

import "fmt"

// Update — атомарное обновление: сначала удаляются все факты, подходящие
// под шаблоны Delete, затем вставляются факты Insert.
//
// В шаблонах Delete subject и predicate обязаны быть константами,
// object может быть переменной (удаляются все значения).
type Update struct {
	Delete []Pattern
	Insert []Pattern
}

// Replace заменяет все значения (subject, predicate) на object.
func Replace(subject, predicate, object Term) *Update {
	return &Update{
		Delete: []Pattern{Triple(subject, predicate, Var("old"))},
		Insert: []Pattern{Triple(subject, predicate, object)},
	}
}

// InsertData вставляет факты без удаления.
func InsertData(triples ...Pattern) *Update {
	return &Update{Insert: triples}
}

// Validate проверяет обновление.
func (u *Update) Validate() error {
	if u == nil {
		return fmt.Errorf("%w: nil update", ErrInvalidQuery)
	}
	if len(u.Delete) == 0 && len(u.Insert) == 0 {
		return fmt.Errorf("%w: empty update", ErrInvalidQuery)
	}

	for _, p := range u.Delete {
		if p.Subject.Kind != KindIRI || p.Predicate.Kind != KindIRI {
			return fmt.Errorf("%w: delete pattern needs constant subject and predicate", ErrInvalidQuery)
		}
		for _, t := range p.Terms() {
			if err := validateTerm(t); err != nil {
				return err
			}
		}
	}

	for _, p := range u.Insert {
		if p.Subject.Kind != KindIRI || p.Predicate.Kind != KindIRI {
			return fmt.Errorf("%w: insert triple needs IRI subject and predicate", ErrInvalidQuery)
		}
		if p.Object.IsVar() {
			return fmt.Errorf("%w: insert triple cannot contain variables", ErrInvalidQuery)
		}
		for _, t := range p.Terms() {
			if err := validateTerm(t); err != nil {
				return err
			}
		}
	}
	return nil
}
