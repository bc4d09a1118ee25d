package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ex = "http://example.test/"

func TestQueryValidate(t *testing.T) {
	s := Var("s")
	p := IRI(ex + "p")

	tests := []struct {
		name    string
		q       *Query
		wantErr bool
	}{
		{
			name: "ask",
			q:    NewAsk(Where(Triple(s, p, Literal("x")))),
		},
		{
			name: "select with order and limit",
			q:    NewSelect(Where(Triple(s, p, Var("o"))), "s", "o").OrderByDesc("o").WithLimit(1),
		},
		{
			name:    "empty where",
			q:       NewAsk(Group{}),
			wantErr: true,
		},
		{
			name:    "unbound projection",
			q:       NewSelect(Where(Triple(s, p, Var("o"))), "missing"),
			wantErr: true,
		},
		{
			name:    "unbound order",
			q:       NewSelect(Where(Triple(s, p, Var("o"))), "s").OrderByAsc("t"),
			wantErr: true,
		},
		{
			name:    "bad variable name",
			q:       NewAsk(Where(Triple(Var("s}"), p, Var("o")))),
			wantErr: true,
		},
		{
			name:    "literal subject",
			q:       NewAsk(Where(Triple(Literal("x"), p, Var("o")))),
			wantErr: true,
		},
		{
			name:    "literal predicate",
			q:       NewAsk(Where(Triple(s, Literal("p"), Var("o")))),
			wantErr: true,
		},
		{
			name:    "iri injection",
			q:       NewAsk(Where(Triple(s, IRI(ex+"p> } ; DROP ALL ; {"), Var("o")))),
			wantErr: true,
		},
		{
			name:    "unbound filter variable",
			q:       NewAsk(Where(Triple(s, p, Var("o"))).Filter(Less(Var("o"), Var("x")))),
			wantErr: true,
		},
		{
			name: "not exists sees outer variables",
			q: NewAsk(Where(Triple(s, p, Var("o"))).Without(
				Where(Triple(s, IRI(ex+"q"), Var("v"))).Filter(Equal(Var("v"), Var("o"))),
			)),
		},
		{
			name:    "empty not exists",
			q:       NewAsk(Where(Triple(s, p, Var("o"))).Without(Group{})),
			wantErr: true,
		},
		{
			name:    "in without values",
			q:       NewAsk(Where(Triple(s, p, Var("o"))).Filter(In(Var("o")))),
			wantErr: true,
		},
		{
			name:    "negative limit",
			q:       NewSelect(Where(Triple(s, p, Var("o"))), "s").WithLimit(-1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGroupBuildersDoNotAlias(t *testing.T) {
	base := Where(Triple(Var("s"), IRI(ex+"p"), Var("o")))
	a := base.Filter(Equal(Var("o"), Literal("a")))
	b := base.Filter(Equal(Var("o"), Literal("b")))

	require.Len(t, a.Filters, 1)
	require.Len(t, b.Filters, 1)
	assert.Equal(t, "a", a.Filters[0].Right[0].Value)
	assert.Empty(t, base.Filters)
}

func TestTermInt(t *testing.T) {
	n, err := Integer(42).Int()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = IRI(ex + "x").Int()
	assert.Error(t, err)

	_, err = Literal("abc").Int()
	assert.Error(t, err)
}

func TestUpdateValidate(t *testing.T) {
	s := IRI(ex + "s")
	p := IRI(ex + "p")

	assert.NoError(t, Replace(s, p, Literal("v")).Validate())
	assert.NoError(t, InsertData(Triple(s, p, Integer(1))).Validate())

	assert.ErrorIs(t, (&Update{}).Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, InsertData(Triple(s, p, Var("o"))).Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Replace(Var("s"), p, Literal("v")).Validate(), ErrInvalidQuery)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("ask", nil))

	err := Wrap("ask", ErrUnavailable)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ask", se.Op)
	assert.ErrorIs(t, err, ErrUnavailable)

	// повторная обёртка не меняет операцию
	again := Wrap("select", err)
	require.ErrorAs(t, again, &se)
	assert.Equal(t, "ask", se.Op)
}
