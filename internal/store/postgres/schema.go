package postgres

// schemaDDL — таблица фактов. Один факт — одна строка (graph, subject,
// predicate, object). object_num заполняется для литералов с числовым
// значением и служит для численных сравнений и сортировки.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS quads (
    id          BIGSERIAL PRIMARY KEY,
    graph       TEXT NOT NULL,
    subject     TEXT NOT NULL,
    predicate   TEXT NOT NULL,
    object      TEXT NOT NULL,
    object_kind SMALLINT NOT NULL,
    datatype    TEXT NOT NULL DEFAULT '',
    object_num  NUMERIC,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_quads_fact
    ON quads (graph, subject, predicate, object, object_kind, datatype);
CREATE INDEX IF NOT EXISTS idx_quads_predicate_object ON quads (graph, predicate, object);
CREATE INDEX IF NOT EXISTS idx_quads_subject_predicate ON quads (graph, subject, predicate);
`

// Значения object_kind.
const (
	kindIRI     = 1
	kindLiteral = 2
)
