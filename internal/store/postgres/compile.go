package postgres

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shaiso/initdaemon/internal/store"
)

// Позиции терма в тройке.
const (
	posSubject = iota
	posPredicate
	posObject
)

var columns = [3]string{"subject", "predicate", "object"}

// ref — место, где переменная впервые связана: столбец строки alias.
type ref struct {
	alias string
	pos   int
}

// operand — SQL-выражения значения терма.
type operand struct {
	val  string // текст значения
	kind string // object_kind
	dt   string // datatype
	num  string // численное значение или NULL
}

// compiler переводит запрос в SQL с позиционными параметрами.
// Значения из запроса никогда не попадают в текст SQL.
type compiler struct {
	args    []any
	graph   string
	aliases int
}

func newCompiler(graph string) *compiler {
	c := &compiler{}
	c.graph = c.arg(graph)
	return c
}

func (c *compiler) arg(v any) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *compiler) alias() string {
	a := "q" + strconv.Itoa(c.aliases)
	c.aliases++
	return a
}

// compiledQuery — результат компиляции.
type compiledQuery struct {
	sql  string
	args []any
	vars []string
}

// compileQuery переводит запрос в SQL. Для SELECT каждая переменная
// проекции даёт три столбца: значение, вид и datatype.
func compileQuery(q *store.Query, graph string) (*compiledQuery, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	c := newCompiler(graph)
	from, conds, bound := c.group(q.Where, nil)
	body := "FROM " + strings.Join(from, ", ") + " WHERE " + strings.Join(conds, " AND ")

	if q.Form == store.FormAsk {
		return &compiledQuery{sql: "SELECT EXISTS (SELECT 1 " + body + ")", args: c.args}, nil
	}

	cols := make([]string, 0, len(q.Vars)*3)
	for _, v := range q.Vars {
		o := bound[v].operand()
		cols = append(cols, o.val, o.kind+"::int", o.dt)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" ")
	b.WriteString(body)

	if q.OrderBy != "" {
		o := bound[q.OrderBy].operand()
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		b.WriteString(" ORDER BY ")
		if o.num != "NULL" {
			fmt.Fprintf(&b, "%s %s NULLS LAST, ", o.num, dir)
		}
		fmt.Fprintf(&b, "%s COLLATE \"C\" %s", o.val, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	return &compiledQuery{sql: b.String(), args: c.args, vars: q.Vars}, nil
}

// group возвращает список таблиц, условия и связанные переменные группы.
// outer — переменные внешней группы (для NOT EXISTS).
func (c *compiler) group(g store.Group, outer map[string]ref) ([]string, []string, map[string]ref) {
	bound := make(map[string]ref, len(outer))
	for k, v := range outer {
		bound[k] = v
	}

	var from, conds []string
	for _, p := range g.Patterns {
		a := c.alias()
		from = append(from, "quads "+a)
		conds = append(conds, a+".graph = "+c.graph)

		for pos, t := range p.Terms() {
			r := ref{alias: a, pos: pos}
			if t.IsVar() {
				if prev, ok := bound[t.Value]; ok {
					conds = append(conds, sameTerm(prev, r))
				} else {
					bound[t.Value] = r
				}
				continue
			}
			conds = append(conds, c.constant(r, t))
		}
	}

	for _, f := range g.Filters {
		conds = append(conds, c.filter(f, bound))
	}

	for _, sub := range g.NotExists {
		subFrom, subConds, _ := c.group(sub, bound)
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM "+strings.Join(subFrom, ", ")+
			" WHERE "+strings.Join(subConds, " AND ")+")")
	}

	return from, conds, bound
}

func (r ref) col() string {
	return r.alias + "." + columns[r.pos]
}

func (r ref) operand() operand {
	if r.pos != posObject {
		return operand{val: r.col(), kind: strconv.Itoa(kindIRI), dt: "''", num: "NULL"}
	}
	return operand{
		val:  r.alias + ".object",
		kind: r.alias + ".object_kind",
		dt:   r.alias + ".datatype",
		num:  r.alias + ".object_num",
	}
}

// sameTerm — точное совпадение двух мест связывания одной переменной.
func sameTerm(a, b ref) string {
	switch {
	case a.pos != posObject && b.pos != posObject:
		return a.col() + " = " + b.col()
	case a.pos != posObject:
		return fmt.Sprintf("(%s.object = %s AND %s.object_kind = %d)", b.alias, a.col(), b.alias, kindIRI)
	case b.pos != posObject:
		return fmt.Sprintf("(%s.object = %s AND %s.object_kind = %d)", a.alias, b.col(), a.alias, kindIRI)
	default:
		return fmt.Sprintf("(%[1]s.object = %[2]s.object AND %[1]s.object_kind = %[2]s.object_kind AND %[1]s.datatype = %[2]s.datatype)",
			a.alias, b.alias)
	}
}

// constant — условие "в позиции r стоит константа t".
func (c *compiler) constant(r ref, t store.Term) string {
	if r.pos != posObject {
		return r.col() + " = " + c.arg(t.Value)
	}
	if t.Kind == store.KindIRI {
		return fmt.Sprintf("(%s.object = %s AND %s.object_kind = %d)", r.alias, c.arg(t.Value), r.alias, kindIRI)
	}
	return fmt.Sprintf("(%s.object = %s AND %s.object_kind = %d AND %s.datatype = %s)",
		r.alias, c.arg(t.Value), r.alias, kindLiteral, r.alias, c.arg(t.Datatype))
}

func (c *compiler) operand(t store.Term, bound map[string]ref) operand {
	if t.IsVar() {
		return bound[t.Value].operand()
	}

	kind := kindLiteral
	if t.Kind == store.KindIRI {
		kind = kindIRI
	}
	num := "NULL"
	if n, ok := numeric(t); ok {
		num = c.arg(n) + "::numeric"
	}
	return operand{
		val:  c.arg(t.Value),
		kind: strconv.Itoa(kind),
		dt:   c.arg(t.Datatype),
		num:  num,
	}
}

// equal — равенство значений: вид совпадает; типизированные литералы
// сравниваются численно, если оба значения числа.
func equal(a, b operand) string {
	return fmt.Sprintf("(%s = %s AND CASE WHEN %s <> '' OR %s <> '' THEN COALESCE(%s = %s, %s = %s) ELSE %s = %s END)",
		a.kind, b.kind, a.dt, b.dt, a.num, b.num, a.val, b.val, a.val, b.val)
}

func (c *compiler) filter(f store.Filter, bound map[string]ref) string {
	left := c.operand(f.Left, bound)

	switch f.Op {
	case store.OpEqual:
		return equal(left, c.operand(f.Right[0], bound))
	case store.OpNotEqual:
		return "NOT " + equal(left, c.operand(f.Right[0], bound))
	case store.OpLess, store.OpGreater:
		right := c.operand(f.Right[0], bound)
		op := string(f.Op)
		return fmt.Sprintf("COALESCE(%s %s %s, %s COLLATE \"C\" %s %s)", left.num, op, right.num, left.val, op, right.val)
	case store.OpIn, store.OpNotIn:
		alts := make([]string, 0, len(f.Right))
		for _, r := range f.Right {
			alts = append(alts, equal(left, c.operand(r, bound)))
		}
		expr := "(" + strings.Join(alts, " OR ") + ")"
		if f.Op == store.OpNotIn {
			return "NOT " + expr
		}
		return expr
	case store.OpStrStarts:
		return fmt.Sprintf("starts_with(%s, %s)", left.val, c.arg(f.Right[0].Value))
	default:
		// Validate не пропускает неизвестные операторы
		return "FALSE"
	}
}

// numeric возвращает численное значение литерала: целое или конечное
// дробное, независимо от datatype. Так же сравнивает хранилище в памяти,
// поэтому "10" > "9" и для простых строк.
func numeric(t store.Term) (any, bool) {
	if t.Kind != store.KindLiteral {
		return nil, false
	}
	if n, err := strconv.ParseInt(t.Value, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(t.Value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f, true
	}
	return nil, false
}
