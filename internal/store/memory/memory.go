// Package memory реализует store.Store в памяти процесса.
//
// Используется в тестах и для локального запуска (STORE_BACKEND=memory).
// Атомарность обновлений обеспечивается RWMutex: читатели никогда
// не видят промежуточного состояния Update.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shaiso/initdaemon/internal/store"
)

// Store — граф фактов в памяти.
type Store struct {
	mu      sync.RWMutex
	facts   []store.Pattern
	updates int
}

// New создаёт хранилище с начальными фактами.
func New(facts ...store.Pattern) *Store {
	s := &Store{}
	for _, f := range facts {
		s.insert(f)
	}
	return s
}

// Ask реализует store.Store.
func (s *Store) Ask(ctx context.Context, q *store.Query) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.Wrap("ask", err)
	}
	if err := q.Validate(); err != nil {
		return false, store.Wrap("ask", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.solve(q.Where, store.Binding{})) > 0, nil
}

// Select реализует store.Store.
func (s *Store) Select(ctx context.Context, q *store.Query) ([]store.Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("select", err)
	}
	if err := q.Validate(); err != nil {
		return nil, store.Wrap("select", err)
	}

	s.mu.RLock()
	solutions := s.solve(q.Where, store.Binding{})
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(solutions, func(i, j int) bool {
			c := compare(solutions[i][q.OrderBy], solutions[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(solutions) > q.Limit {
		solutions = solutions[:q.Limit]
	}

	result := make([]store.Binding, len(solutions))
	for i, sol := range solutions {
		row := make(store.Binding, len(q.Vars))
		for _, v := range q.Vars {
			row[v] = sol[v]
		}
		result[i] = row
	}
	return result, nil
}

// Update реализует store.Store.
func (s *Store) Update(ctx context.Context, u *store.Update) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("update", err)
	}
	if err := u.Validate(); err != nil {
		return store.Wrap("update", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range u.Delete {
		kept := s.facts[:0]
		for _, f := range s.facts {
			if _, ok := match(p, f, store.Binding{}); !ok {
				kept = append(kept, f)
			}
		}
		s.facts = kept
	}
	for _, f := range u.Insert {
		s.insert(f)
	}
	s.updates++
	return nil
}

// Updates возвращает количество выполненных Update.
func (s *Store) Updates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// Facts возвращает копию всех фактов.
func (s *Store) Facts() []store.Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Pattern(nil), s.facts...)
}

// Objects возвращает значения object для пары (subject, predicate).
func (s *Store) Objects(subject, predicate string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var values []string
	for _, f := range s.facts {
		if f.Subject.Value == subject && f.Predicate.Value == predicate {
			values = append(values, f.Object.Value)
		}
	}
	return values
}

// insert добавляет факт, если такого ещё нет (граф — множество).
func (s *Store) insert(f store.Pattern) {
	for _, existing := range s.facts {
		if sameTerm(existing.Subject, f.Subject) &&
			sameTerm(existing.Predicate, f.Predicate) &&
			sameTerm(existing.Object, f.Object) {
			return
		}
	}
	s.facts = append(s.facts, f)
}

// solve возвращает все решения группы, расширяющие начальную привязку.
func (s *Store) solve(g store.Group, initial store.Binding) []store.Binding {
	solutions := []store.Binding{initial}

	for _, p := range g.Patterns {
		var next []store.Binding
		for _, b := range solutions {
			for _, f := range s.facts {
				if nb, ok := match(p, f, b); ok {
					next = append(next, nb)
				}
			}
		}
		solutions = next
		if len(solutions) == 0 {
			return nil
		}
	}

	var result []store.Binding
	for _, b := range solutions {
		if s.accept(g, b) {
			result = append(result, b)
		}
	}
	return result
}

// accept проверяет фильтры и NOT EXISTS для решения.
func (s *Store) accept(g store.Group, b store.Binding) bool {
	for _, f := range g.Filters {
		if !evalFilter(f, b) {
			return false
		}
	}
	for _, sub := range g.NotExists {
		if len(s.solve(sub, b)) > 0 {
			return false
		}
	}
	return true
}

// match сопоставляет шаблон с фактом с учётом текущей привязки.
func match(p, fact store.Pattern, b store.Binding) (store.Binding, bool) {
	pattern := p.Terms()
	values := fact.Terms()

	var nb store.Binding
	for i, t := range pattern {
		v := values[i]
		if !t.IsVar() {
			if !sameTerm(t, v) {
				return nil, false
			}
			continue
		}

		if bound, ok := b[t.Value]; ok {
			if !sameTerm(bound, v) {
				return nil, false
			}
			continue
		}
		if nb != nil {
			if bound, ok := nb[t.Value]; ok {
				if !sameTerm(bound, v) {
					return nil, false
				}
				continue
			}
		}

		if nb == nil {
			nb = make(store.Binding, len(b)+3)
			for k, val := range b {
				nb[k] = val
			}
		}
		nb[t.Value] = v
	}

	if nb == nil {
		nb = b
	}
	return nb, true
}

func resolve(t store.Term, b store.Binding) (store.Term, bool) {
	if !t.IsVar() {
		return t, true
	}
	v, ok := b[t.Value]
	return v, ok
}

func evalFilter(f store.Filter, b store.Binding) bool {
	left, ok := resolve(f.Left, b)
	if !ok {
		return false
	}

	operands := make([]store.Term, 0, len(f.Right))
	for _, r := range f.Right {
		v, ok := resolve(r, b)
		if !ok {
			return false
		}
		operands = append(operands, v)
	}

	switch f.Op {
	case store.OpEqual:
		return sameValue(left, operands[0])
	case store.OpNotEqual:
		return !sameValue(left, operands[0])
	case store.OpLess:
		return compare(left, operands[0]) < 0
	case store.OpGreater:
		return compare(left, operands[0]) > 0
	case store.OpIn:
		for _, o := range operands {
			if sameValue(left, o) {
				return true
			}
		}
		return false
	case store.OpNotIn:
		for _, o := range operands {
			if sameValue(left, o) {
				return false
			}
		}
		return true
	case store.OpStrStarts:
		return strings.HasPrefix(left.Value, operands[0].Value)
	default:
		return false
	}
}

// sameTerm — точное совпадение термов (для сопоставления с фактами).
func sameTerm(a, b store.Term) bool {
	return a.Kind == b.Kind && a.Value == b.Value && a.Datatype == b.Datatype
}

// sameValue — сравнение значений в фильтрах: числа сравниваются численно.
func sameValue(a, b store.Term) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == store.KindLiteral && (a.Datatype != "" || b.Datatype != "") {
		return compare(a, b) == 0
	}
	return a.Value == b.Value
}

// compare упорядочивает значения: целые и дробные числа численно,
// остальное — лексикографически.
func compare(a, b store.Term) int {
	if ai, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
		if bi, err := strconv.ParseInt(b.Value, 10, 64); err == nil {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	}
	if af, err := strconv.ParseFloat(a.Value, 64); err == nil {
		if bf, err := strconv.ParseFloat(b.Value, 64); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a.Value, b.Value)
}
