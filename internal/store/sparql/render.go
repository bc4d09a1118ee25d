package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/initdaemon/internal/store"
)

// literalEscaper экранирует строку для записи в "..." (SPARQL ECHAR).
var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\b", `\b`,
	"\f", `\f`,
)

// RenderQuery переводит запрос в текст SPARQL с FROM <graph>.
// Перед записью запрос проверяется через Validate.
func RenderQuery(q *store.Query, graph string) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	if err := store.ValidateIRI(graph); err != nil {
		return "", fmt.Errorf("graph: %w", err)
	}

	var b strings.Builder
	switch q.Form {
	case store.FormAsk:
		b.WriteString("ASK")
	case store.FormSelect:
		b.WriteString("SELECT")
		for _, v := range q.Vars {
			b.WriteString(" ?")
			b.WriteString(v)
		}
	}

	b.WriteString(" FROM <")
	b.WriteString(graph)
	b.WriteString("> WHERE ")
	writeGroup(&b, q.Where)

	if q.OrderBy != "" {
		if q.Desc {
			fmt.Fprintf(&b, " ORDER BY DESC(?%s)", q.OrderBy)
		} else {
			fmt.Fprintf(&b, " ORDER BY ASC(?%s)", q.OrderBy)
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), nil
}

// RenderUpdate переводит обновление в одну операцию SPARQL Update.
//
// С удалением: WITH <g> DELETE {...} INSERT {...} WHERE { OPTIONAL {...} }.
// Каждый шаблон удаления стоит в своём OPTIONAL, поэтому вставка
// выполняется и тогда, когда удалять нечего. Переменные шаблонов
// переименовываются, чтобы шаблоны не соединялись между собой.
// Без удаления: INSERT DATA { GRAPH <g> {...} }.
func RenderUpdate(u *store.Update, graph string) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	if err := store.ValidateIRI(graph); err != nil {
		return "", fmt.Errorf("graph: %w", err)
	}

	var b strings.Builder
	if len(u.Delete) == 0 {
		b.WriteString("INSERT DATA { GRAPH <")
		b.WriteString(graph)
		b.WriteString("> { ")
		for _, p := range u.Insert {
			writePattern(&b, p)
		}
		b.WriteString("} }")
		return b.String(), nil
	}

	deletes := make([]store.Pattern, len(u.Delete))
	for i, p := range u.Delete {
		deletes[i] = renameVars(p, "_d"+strconv.Itoa(i))
	}

	b.WriteString("WITH <")
	b.WriteString(graph)
	b.WriteString("> DELETE { ")
	for _, p := range deletes {
		writePattern(&b, p)
	}
	b.WriteString("} ")

	if len(u.Insert) > 0 {
		b.WriteString("INSERT { ")
		for _, p := range u.Insert {
			writePattern(&b, p)
		}
		b.WriteString("} ")
	}

	b.WriteString("WHERE { ")
	for _, p := range deletes {
		b.WriteString("OPTIONAL { ")
		writePattern(&b, p)
		b.WriteString("} ")
	}
	b.WriteString("}")
	return b.String(), nil
}

func renameVars(p store.Pattern, suffix string) store.Pattern {
	rename := func(t store.Term) store.Term {
		if t.IsVar() {
			return store.Var(t.Value + suffix)
		}
		return t
	}
	return store.Triple(rename(p.Subject), rename(p.Predicate), rename(p.Object))
}

func writeGroup(b *strings.Builder, g store.Group) {
	b.WriteString("{ ")
	for _, p := range g.Patterns {
		writePattern(b, p)
	}
	for _, f := range g.Filters {
		writeFilter(b, f)
	}
	for _, sub := range g.NotExists {
		b.WriteString("FILTER NOT EXISTS ")
		writeGroup(b, sub)
		b.WriteString(" ")
	}
	b.WriteString("}")
}

func writePattern(b *strings.Builder, p store.Pattern) {
	for _, t := range p.Terms() {
		b.WriteString(Term(t))
		b.WriteString(" ")
	}
	b.WriteString(". ")
}

const xsdDecimal = "http://www.w3.org/2001/XMLSchema#decimal"

func writeFilter(b *strings.Builder, f store.Filter) {
	left := Term(f.Left)
	switch f.Op {
	case store.OpIn, store.OpNotIn:
		values := make([]string, len(f.Right))
		for i, v := range f.Right {
			values[i] = Term(v)
		}
		fmt.Fprintf(b, "FILTER(%s %s (%s)) ", left, f.Op, strings.Join(values, ", "))
	case store.OpStrStarts:
		fmt.Fprintf(b, "FILTER(STRSTARTS(STR(%s), %s)) ", left, Term(f.Right[0]))
	case store.OpLess, store.OpGreater:
		// числа сравниваются численно и без datatype, иначе как строки
		right := Term(f.Right[0])
		fmt.Fprintf(b, "FILTER(COALESCE(<%[4]s>(STR(%[1]s)) %[2]s <%[4]s>(STR(%[3]s)), STR(%[1]s) %[2]s STR(%[3]s))) ",
			left, f.Op, right, xsdDecimal)
	default:
		fmt.Fprintf(b, "FILTER(%s %s %s) ", left, f.Op, Term(f.Right[0]))
	}
}

// Term записывает терм в синтаксисе SPARQL. IRI и datatype должны
// быть провалидированы, литералы экранируются.
func Term(t store.Term) string {
	switch t.Kind {
	case store.KindVar:
		return "?" + t.Value
	case store.KindIRI:
		return "<" + t.Value + ">"
	default:
		lit := `"` + literalEscaper.Replace(t.Value) + `"`
		if t.Datatype != "" {
			lit += "^^<" + t.Datatype + ">"
		}
		return lit
	}
}
