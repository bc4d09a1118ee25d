package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// XSDInteger — datatype целочисленных литералов.
const XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"

// TermKind — вид терма в шаблоне.
type TermKind uint8

const (
	// KindVar — переменная запроса (?name).
	KindVar TermKind = iota
	// KindIRI — ресурс.
	KindIRI
	// KindLiteral — литерал (строка или типизированное значение).
	KindLiteral
)

// Term — элемент тройки: переменная, IRI или литерал.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string // только для литералов, пусто для простых строк
}

// Var создаёт переменную.
func Var(name string) Term {
	return Term{Kind: KindVar, Value: name}
}

// IRI создаёт ресурс.
func IRI(value string) Term {
	return Term{Kind: KindIRI, Value: value}
}

// Literal создаёт строковый литерал.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// Integer создаёт литерал xsd:integer.
func Integer(n int64) Term {
	return Term{Kind: KindLiteral, Value: strconv.FormatInt(n, 10), Datatype: XSDInteger}
}

// IsVar возвращает true для переменных.
func (t Term) IsVar() bool {
	return t.Kind == KindVar
}

// Int возвращает целое значение литерала.
func (t Term) Int() (int64, error) {
	if t.Kind != KindLiteral {
		return 0, fmt.Errorf("term %s is not a literal", t)
	}
	return strconv.ParseInt(strings.TrimSpace(t.Value), 10, 64)
}

// String возвращает человекочитаемое представление терма (для логов).
func (t Term) String() string {
	switch t.Kind {
	case KindVar:
		return "?" + t.Value
	case KindIRI:
		return "<" + t.Value + ">"
	default:
		if t.Datatype != "" {
			return strconv.Quote(t.Value) + "^^<" + t.Datatype + ">"
		}
		return strconv.Quote(t.Value)
	}
}

// Pattern — шаблон тройки subject–predicate–object.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Triple создаёт шаблон тройки.
func Triple(s, p, o Term) Pattern {
	return Pattern{Subject: s, Predicate: p, Object: o}
}

// Terms возвращает элементы шаблона по порядку.
func (p Pattern) Terms() [3]Term {
	return [3]Term{p.Subject, p.Predicate, p.Object}
}

// FilterOp — оператор фильтра.
type FilterOp string

const (
	OpEqual     FilterOp = "="
	OpNotEqual  FilterOp = "!="
	OpLess      FilterOp = "<"
	OpGreater   FilterOp = ">"
	OpIn        FilterOp = "IN"
	OpNotIn     FilterOp = "NOT IN"
	OpStrStarts FilterOp = "STRSTARTS"
)

// Filter — условие над связанными переменными.
//
// Для OpIn/OpNotIn Right содержит список значений, для остальных —
// ровно один терм.
type Filter struct {
	Op    FilterOp
	Left  Term
	Right []Term
}

// Equal — FILTER(left = right).
func Equal(left, right Term) Filter {
	return Filter{Op: OpEqual, Left: left, Right: []Term{right}}
}

// NotEqual — FILTER(left != right).
func NotEqual(left, right Term) Filter {
	return Filter{Op: OpNotEqual, Left: left, Right: []Term{right}}
}

// Less — FILTER(left < right).
func Less(left, right Term) Filter {
	return Filter{Op: OpLess, Left: left, Right: []Term{right}}
}

// Greater — FILTER(left > right).
func Greater(left, right Term) Filter {
	return Filter{Op: OpGreater, Left: left, Right: []Term{right}}
}

// In — FILTER(left IN (values...)).
func In(left Term, values ...Term) Filter {
	return Filter{Op: OpIn, Left: left, Right: values}
}

// NotIn — FILTER(left NOT IN (values...)).
func NotIn(left Term, values ...Term) Filter {
	return Filter{Op: OpNotIn, Left: left, Right: values}
}

// StrStarts — FILTER(STRSTARTS(STR(left), prefix)).
func StrStarts(left Term, prefix string) Filter {
	return Filter{Op: OpStrStarts, Left: left, Right: []Term{Literal(prefix)}}
}

// Group — группа шаблонов с фильтрами.
//
// NotExists — подгруппы, у которых не должно быть ни одного решения
// при текущих значениях переменных (FILTER NOT EXISTS).
type Group struct {
	Patterns  []Pattern
	Filters   []Filter
	NotExists []Group
}

// Where собирает группу из шаблонов.
func Where(patterns ...Pattern) Group {
	return Group{Patterns: patterns}
}

// Filter добавляет фильтры в группу.
func (g Group) Filter(filters ...Filter) Group {
	g.Filters = append(append([]Filter(nil), g.Filters...), filters...)
	return g
}

// Without добавляет подгруппу FILTER NOT EXISTS.
func (g Group) Without(sub Group) Group {
	g.NotExists = append(append([]Group(nil), g.NotExists...), sub)
	return g
}

// Form — форма запроса.
type Form int

const (
	FormAsk Form = iota
	FormSelect
)

// Query — запрос к хранилищу.
type Query struct {
	Form    Form
	Vars    []string // проекция SELECT
	Where   Group
	OrderBy string // переменная сортировки, пусто — без сортировки
	Desc    bool
	Limit   int // 0 — без ограничения
}

// NewAsk создаёт ASK-запрос.
func NewAsk(where Group) *Query {
	return &Query{Form: FormAsk, Where: where}
}

// NewSelect создаёт SELECT-запрос с проекцией vars.
func NewSelect(where Group, vars ...string) *Query {
	return &Query{Form: FormSelect, Vars: vars, Where: where}
}

// OrderByDesc задаёт сортировку по убыванию.
func (q *Query) OrderByDesc(v string) *Query {
	q.OrderBy = v
	q.Desc = true
	return q
}

// OrderByAsc задаёт сортировку по возрастанию.
func (q *Query) OrderByAsc(v string) *Query {
	q.OrderBy = v
	q.Desc = false
	return q
}

// WithLimit ограничивает количество решений.
func (q *Query) WithLimit(n int) *Query {
	q.Limit = n
	return q
}

// Binding — одно решение запроса: переменная → значение.
type Binding map[string]Term

// Value возвращает строковое значение переменной.
func (b Binding) Value(name string) string {
	return b[name].Value
}

var varNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate проверяет запрос: имена переменных, IRI, связанность переменных
// в фильтрах, проекции и сортировке.
func (q *Query) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: nil query", ErrInvalidQuery)
	}
	if q.Form != FormAsk && q.Form != FormSelect {
		return fmt.Errorf("%w: unknown form %d", ErrInvalidQuery, q.Form)
	}
	if len(q.Where.Patterns) == 0 {
		return fmt.Errorf("%w: empty where clause", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}

	bound, err := validateGroup(q.Where, nil)
	if err != nil {
		return err
	}

	if q.Form == FormSelect {
		if len(q.Vars) == 0 {
			return fmt.Errorf("%w: select without projection", ErrInvalidQuery)
		}
		for _, v := range q.Vars {
			if !bound[v] {
				return fmt.Errorf("%w: projected variable ?%s is not bound", ErrInvalidQuery, v)
			}
		}
	}
	if q.OrderBy != "" && !bound[q.OrderBy] {
		return fmt.Errorf("%w: order variable ?%s is not bound", ErrInvalidQuery, q.OrderBy)
	}
	return nil
}

// validateGroup проверяет группу и возвращает множество переменных,
// связанных её шаблонами (включая внешние).
func validateGroup(g Group, outer map[string]bool) (map[string]bool, error) {
	bound := make(map[string]bool, len(outer))
	for v := range outer {
		bound[v] = true
	}

	for _, p := range g.Patterns {
		for i, t := range p.Terms() {
			if err := validateTerm(t); err != nil {
				return nil, err
			}
			if i == 1 && t.Kind == KindLiteral {
				return nil, fmt.Errorf("%w: literal in predicate position", ErrInvalidQuery)
			}
			if i == 0 && t.Kind == KindLiteral {
				return nil, fmt.Errorf("%w: literal in subject position", ErrInvalidQuery)
			}
			if t.IsVar() {
				bound[t.Value] = true
			}
		}
	}

	for _, f := range g.Filters {
		if err := validateFilter(f, bound); err != nil {
			return nil, err
		}
	}

	for _, sub := range g.NotExists {
		if len(sub.Patterns) == 0 {
			return nil, fmt.Errorf("%w: empty NOT EXISTS group", ErrInvalidQuery)
		}
		if _, err := validateGroup(sub, bound); err != nil {
			return nil, err
		}
	}

	return bound, nil
}

func validateFilter(f Filter, bound map[string]bool) error {
	switch f.Op {
	case OpEqual, OpNotEqual, OpLess, OpGreater, OpStrStarts:
		if len(f.Right) != 1 {
			return fmt.Errorf("%w: filter %s expects one operand", ErrInvalidQuery, f.Op)
		}
	case OpIn, OpNotIn:
		if len(f.Right) == 0 {
			return fmt.Errorf("%w: filter %s expects values", ErrInvalidQuery, f.Op)
		}
	default:
		return fmt.Errorf("%w: unknown filter %q", ErrInvalidQuery, f.Op)
	}

	terms := append([]Term{f.Left}, f.Right...)
	for _, t := range terms {
		if err := validateTerm(t); err != nil {
			return err
		}
		if t.IsVar() && !bound[t.Value] {
			return fmt.Errorf("%w: filter variable ?%s is not bound", ErrInvalidQuery, t.Value)
		}
	}
	if f.Op == OpStrStarts && f.Right[0].Kind != KindLiteral {
		return fmt.Errorf("%w: STRSTARTS prefix must be a literal", ErrInvalidQuery)
	}
	return nil
}

func validateTerm(t Term) error {
	switch t.Kind {
	case KindVar:
		if !varNameRe.MatchString(t.Value) {
			return fmt.Errorf("%w: bad variable name %q", ErrInvalidQuery, t.Value)
		}
	case KindIRI:
		if err := ValidateIRI(t.Value); err != nil {
			return err
		}
	case KindLiteral:
		if t.Datatype != "" {
			if err := ValidateIRI(t.Datatype); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown term kind %d", ErrInvalidQuery, t.Kind)
	}
	return nil
}

// ValidateIRI проверяет, что IRI можно безопасно записать в <...>.
func ValidateIRI(iri string) error {
	if iri == "" {
		return fmt.Errorf("%w: empty IRI", ErrInvalidQuery)
	}
	for _, r := range iri {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			return fmt.Errorf("%w: IRI %q contains forbidden character %q", ErrInvalidQuery, iri, r)
		}
	}
	return nil
}
