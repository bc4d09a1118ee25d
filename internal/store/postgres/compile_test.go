package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/vocab"
)

const graph = "http://mu.semte.ch/application"

func TestCompileQuery_Ask(t *testing.T) {
	cq, err := compileQuery(store.NewAsk(directory.PrecedingUnsatisfied("HDFS_Init")), graph)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cq.sql, "SELECT EXISTS (SELECT 1 FROM quads q0, quads q1"))
	assert.Contains(t, cq.sql, "NOT EXISTS (SELECT 1 FROM quads q")
	assert.Equal(t, graph, cq.args[0])
	// код шага передаётся параметром, а не текстом запроса
	assert.Contains(t, cq.args, "hdfs_init")
	assert.NotContains(t, cq.sql, "hdfs_init")
}

func TestCompileQuery_Select(t *testing.T) {
	q := store.NewSelect(store.Where(
		store.Triple(store.Var("e"), vocab.EventSource, store.Literal("S1")),
		store.Triple(store.Var("e"), vocab.EventTimeNano, store.Var("time")),
	), "e", "time").OrderByDesc("time").WithLimit(1)

	cq, err := compileQuery(q, graph)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cq.sql,
		"SELECT q0.subject, 1::int, '', q1.object, q1.object_kind::int, q1.datatype FROM quads q0, quads q1 WHERE "))
	// ?e во второй тройке соединяется с первой
	assert.Contains(t, cq.sql, "q0.subject = q1.subject")
	assert.True(t, strings.HasSuffix(cq.sql,
		`ORDER BY q1.object_num DESC NULLS LAST, q1.object COLLATE "C" DESC LIMIT 1`))
	assert.Equal(t, []string{"e", "time"}, cq.vars)
}

func TestCompileQuery_SubjectJoinsObject(t *testing.T) {
	q := store.NewSelect(store.Where(
		store.Triple(store.Var("ce"), vocab.EventContainer, store.Var("c")),
		store.Triple(store.Var("c"), vocab.ContainerEnv, store.Var("env")),
	).Filter(store.StrStarts(store.Var("env"), "INIT_DAEMON_STEP=")), "env")

	cq, err := compileQuery(q, graph)
	require.NoError(t, err)

	assert.Contains(t, cq.sql, "(q0.object = q1.subject AND q0.object_kind = 1)")
	assert.Contains(t, cq.sql, "starts_with(q1.object, $")
	assert.Contains(t, cq.args, "INIT_DAEMON_STEP=")
}

func TestCompileQuery_NumericFilter(t *testing.T) {
	q := store.NewAsk(store.Where(
		store.Triple(store.Var("s"), vocab.Order, store.Var("n")),
	).Filter(store.Less(store.Var("n"), store.Integer(10))))

	cq, err := compileQuery(q, graph)
	require.NoError(t, err)
	assert.Contains(t, cq.sql, "COALESCE(q0.object_num < $")
	assert.Contains(t, cq.args, int64(10))
}

func TestCompileQuery_Invalid(t *testing.T) {
	_, err := compileQuery(store.NewSelect(store.Where(
		store.Triple(store.Var("s"), vocab.Order, store.Var("n")),
	), "missing"), graph)
	assert.ErrorIs(t, err, store.ErrInvalidQuery)
}

func TestDeleteStatement(t *testing.T) {
	step := store.IRI("http://example.test/steps/a")

	sql, args := deleteStatement(graph, store.Triple(step, vocab.Status, store.Var("old")))
	assert.Equal(t, "DELETE FROM quads WHERE graph = $1 AND subject = $2 AND predicate = $3", sql)
	assert.Equal(t, []any{graph, step.Value, vocab.Status.Value}, args)

	sql, args = deleteStatement(graph, store.Triple(step, vocab.Status, store.Literal("done")))
	assert.True(t, strings.HasSuffix(sql, "AND datatype = $6"))
	assert.Len(t, args, 6)
}

func TestInsertStatement_Numeric(t *testing.T) {
	step := store.IRI("http://example.test/steps/a")

	_, args := insertStatement(graph, store.Triple(step, vocab.Order, store.Integer(3)))
	require.Len(t, args, 7)
	num, ok := args[6].(*int64)
	require.True(t, ok)
	require.NotNil(t, num)
	assert.Equal(t, int64(3), *num)

	_, args = insertStatement(graph, store.Triple(step, vocab.Code, store.Literal("3")))
	assert.Nil(t, args[6].(*int64), "plain literals have no numeric value")
}

func TestLockKeys(t *testing.T) {
	a := store.IRI("http://example.test/steps/a")
	b := store.IRI("http://example.test/steps/b")

	keys := lockKeys(graph, []store.Pattern{
		store.Triple(b, vocab.Status, store.Var("old")),
		store.Triple(a, vocab.Status, store.Var("old")),
		store.Triple(b, vocab.Status, store.Literal("done")),
	})
	assert.Equal(t, []string{
		graph + " " + a.Value + " " + vocab.Status.Value,
		graph + " " + b.Value + " " + vocab.Status.Value,
	}, keys)

	assert.Empty(t, lockKeys(graph, nil))
}

func TestCompileQuery_NumericPlainLiteral(t *testing.T) {
	q := store.NewAsk(store.Where(
		store.Triple(store.Var("s"), vocab.Order, store.Var("n")),
	).Filter(store.Less(store.Var("n"), store.Literal("10"))))

	cq, err := compileQuery(q, graph)
	require.NoError(t, err)
	// сравнение численное, как у хранилища в памяти
	assert.Contains(t, cq.sql, "COALESCE(q0.object_num < $")
	assert.Contains(t, cq.args, int64(10))
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		term store.Term
		want any
		ok   bool
	}{
		{store.Integer(7), int64(7), true},
		{store.Literal("9"), int64(9), true},
		{store.Literal("-3"), int64(-3), true},
		{store.Literal("2.5"), 2.5, true},
		{store.Literal("abc"), nil, false},
		{store.Literal("Inf"), nil, false},
		{store.IRI("http://example.test/10"), nil, false},
	}
	for _, tt := range tests {
		got, ok := numeric(tt.term)
		assert.Equal(t, tt.ok, ok, tt.term.Value)
		assert.Equal(t, tt.want, got, tt.term.Value)
	}
}

func TestInsertStatement_PlainNumber(t *testing.T) {
	step := store.IRI("http://example.test/steps/a")

	_, args := insertStatement(graph, store.Triple(step, vocab.Order, store.Literal("10")))
	assert.Equal(t, int64(10), args[6])

	_, args = insertStatement(graph, store.Triple(step, vocab.Status, store.Literal("done")))
	assert.Nil(t, args[6])
}
