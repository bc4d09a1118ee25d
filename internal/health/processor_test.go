package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/initdaemon/internal/delta"
	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/register"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/store/memory"
	"github.com/shaiso/initdaemon/internal/store/storetest"
	"github.com/shaiso/initdaemon/internal/vocab"
)

func newProcessor(cfg Config, facts ...store.Pattern) (*Processor, *memory.Store) {
	s := memory.New(facts...)
	p := New(Deps{
		Store:     s,
		Directory: directory.New(s, nil),
		Register:  register.New(s, nil),
	}, cfg)
	return p, s
}

func enabled() Config {
	cfg := DefaultConfig()
	cfg.CheckHealthStatus = true
	return cfg
}

// emit добавляет факты события в хранилище и возвращает их в формате
// потока изменений, как их прислал бы delta-notifier.
func emit(t *testing.T, s *memory.Store, facts []store.Pattern) []delta.Triple {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), store.InsertData(facts...)))

	triples := make([]delta.Triple, 0, len(facts))
	for _, f := range facts {
		triples = append(triples, delta.FromPattern(f))
	}
	return triples
}

func statusOf(s *memory.Store, code string) []string {
	return s.Objects(storetest.StepIRI(code), vocab.Status.Value)
}

func hdfsPipeline(status string) []store.Pattern {
	return storetest.Pipeline("p1",
		storetest.Step{Code: "setup", Order: 1, Status: "done"},
		storetest.Step{Code: "hdfs_init", Order: 2, Status: status},
	)
}

func TestProcessBatch_HealthyAppliesDefault(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	results, err := p.ProcessBatch(context.Background(), emit(t, s, facts))
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
	assert.Equal(t, domain.StatusRunning, results[0].From)
	assert.Equal(t, domain.StatusDone, results[0].To)
	assert.Equal(t, []string{"done"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_UnhealthyAppliesDefault(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)

	_, facts := storetest.HealthEvent("S1", "starting", 100)
	_, err := p.ProcessBatch(context.Background(), emit(t, s, facts))
	require.NoError(t, err)

	// любое состояние кроме healthy — ветка unhealthy
	assert.Equal(t, []string{"failed"}, statusOf(s, "hdfs_init"))
}

// Событие с большим timeNano авторитетно, даже если пришло раньше.
func TestProcessBatch_LatestWins(t *testing.T) {
	for _, latestOnly := range []bool{true, false} {
		cfg := enabled()
		cfg.CheckOnlyLatestHealthcheck = latestOnly

		p, s := newProcessor(cfg, storetest.Join(
			hdfsPipeline(""),
			storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=HDFS_Init"),
		)...)
		ctx := context.Background()

		_, newer := storetest.HealthEvent("S1", "healthy", 100)
		_, err := p.ProcessBatch(ctx, emit(t, s, newer))
		require.NoError(t, err)
		require.Equal(t, []string{"done"}, statusOf(s, "hdfs_init"))

		_, older := storetest.HealthEvent("S1", "unhealthy", 50)
		results, err := p.ProcessBatch(ctx, emit(t, s, older))
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, OutcomeUnchanged, results[0].Outcome, "latestOnly=%v", latestOnly)
		assert.Equal(t, []string{"done"}, statusOf(s, "hdfs_init"), "latestOnly=%v", latestOnly)
	}
}

func TestProcessBatch_OverridePrecedence(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("starting"),
		storetest.Container("namenode", "S1",
			"INIT_DAEMON_STEP=hdfs_init",
			"INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY=ready",
			"INIT_DAEMON_STEP_STATUS_WHEN_UNHEALTHY=running",
		),
	)...)
	ctx := context.Background()

	_, healthy := storetest.HealthEvent("S1", "healthy", 100)
	_, err := p.ProcessBatch(ctx, emit(t, s, healthy))
	require.NoError(t, err)
	assert.Equal(t, []string{"ready"}, statusOf(s, "hdfs_init"))

	_, unhealthy := storetest.HealthEvent("S1", "unhealthy", 200)
	_, err = p.ProcessBatch(ctx, emit(t, s, unhealthy))
	require.NoError(t, err)
	assert.Equal(t, []string{"running"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_CustomDefaults(t *testing.T) {
	cfg := enabled()
	cfg.DefaultHealthyStatus = domain.StatusReady

	p, s := newProcessor(cfg, storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 1)
	_, err := p.ProcessBatch(context.Background(), emit(t, s, facts))
	require.NoError(t, err)
	assert.Equal(t, []string{"ready"}, statusOf(s, "hdfs_init"))
}

// Повторная обработка того же события не меняет хранилище.
func TestProcessBatch_Idempotent(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)
	ctx := context.Background()

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	batch := emit(t, s, facts)

	_, err := p.ProcessBatch(ctx, batch)
	require.NoError(t, err)
	updates := s.Updates()

	results, err := p.ProcessBatch(ctx, batch)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeUnchanged, results[0].Outcome)
	assert.Equal(t, updates, s.Updates())
}

func TestProcessBatch_IgnoresOtherFacts(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)

	other := []store.Pattern{
		store.Triple(store.IRI(storetest.Base+"events/x"), vocab.EventAction, store.Literal("die")),
		store.Triple(store.IRI(storetest.Base+"events/x"), vocab.EventSource, store.Literal("S1")),
	}
	updates := s.Updates()

	results, err := p.ProcessBatch(context.Background(), emit(t, s, other))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, updates+1, s.Updates(), "only the emit itself touched the store")
	assert.Equal(t, []string{"running"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_SkipsUnrelatedShapes(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)

	_, good := storetest.HealthEvent("S1", "healthy", 100)

	batch := []delta.Triple{
		{
			Subject:   &delta.Term{Type: "bnode", Value: "b0"},
			Predicate: &delta.Term{Type: "uri", Value: "http://example.test/p"},
			Object:    &delta.Term{Type: "literal", Value: "x"},
		},
		{Subject: &delta.Term{Type: "uri", Value: "http://example.test/x"}},
		{
			Subject:   &delta.Term{Type: "uri", Value: "http://example.test/y"},
			Predicate: &delta.Term{Type: "uri", Value: vocab.EventAction.Value},
			Object:    &delta.Term{Type: "weird", Value: "health_status"},
		},
	}
	batch = append(batch, emit(t, s, good)...)

	results, err := p.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
	assert.Equal(t, []string{"done"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_Unattributed(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("proxy", "S2", "PATH=/bin"),
		storetest.Container("worker", "S3", "INIT_DAEMON_STEP=unknown_step"),
	)...)
	ctx := context.Background()

	_, noStep := storetest.HealthEvent("S2", "healthy", 1)
	results, err := p.ProcessBatch(ctx, emit(t, s, noStep))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeUnattributed, results[0].Outcome)

	_, unknown := storetest.HealthEvent("S3", "healthy", 1)
	results, err = p.ProcessBatch(ctx, emit(t, s, unknown))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeUnattributed, results[0].Outcome)
	assert.Equal(t, "unknown_step", results[0].Step.Code)

	assert.Equal(t, []string{"running"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_MalformedReportedOncePerBatch(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)
	ctx := context.Background()

	// событие без source и timeNano
	broken := store.IRI(storetest.Base + "events/broken")
	brokenFacts := []store.Pattern{store.Triple(broken, vocab.EventAction, store.Literal("health_status"))}

	_, good := storetest.HealthEvent("S1", "healthy", 100)

	batch := emit(t, s, brokenFacts)
	// факт health-check с пустым узлом вместо ресурса
	batch = append(batch, delta.Triple{
		Subject:   &delta.Term{Type: "bnode", Value: "b0"},
		Predicate: &delta.Term{Type: "uri", Value: vocab.EventAction.Value},
		Object:    &delta.Term{Type: "literal", Value: "health_status"},
	})
	batch = append(batch, emit(t, s, good)...)

	results, err := p.ProcessBatch(ctx, batch)

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Equal(t, 2, be.Failed)
	assert.Equal(t, len(batch), be.Total)

	// корректное событие пачки всё равно применено
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
	assert.Equal(t, []string{"done"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_InvalidOverride(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1",
			"INIT_DAEMON_STEP=hdfs_init",
			"INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY=finished",
		),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	_, err := p.ProcessBatch(context.Background(), emit(t, s, facts))

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)
	assert.Equal(t, []string{"running"}, statusOf(s, "hdfs_init"))
}

func TestProcessBatch_InvalidOverrideKeepsOtherContainers(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		storetest.Pipeline("p1",
			storetest.Step{Code: "a", Order: 1, Status: "running"},
			storetest.Step{Code: "b", Order: 2, Status: "running"},
		),
		// два контейнера одного источника
		storetest.Container("ca", "S1",
			"INIT_DAEMON_STEP=a",
			"INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY=bogus",
		),
		storetest.Container("cb", "S1", "INIT_DAEMON_STEP=b"),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	results, err := p.ProcessBatch(context.Background(), emit(t, s, facts))

	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Failed)

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeMalformed, results[0].Outcome)
	assert.Equal(t, OutcomeApplied, results[1].Outcome)
	assert.Equal(t, []string{"running"}, statusOf(s, "a"))
	assert.Equal(t, []string{"done"}, statusOf(s, "b"))
}

func TestProcessBatch_StoreErrorAborts(t *testing.T) {
	p, s := newProcessor(enabled(), storetest.Join(
		hdfsPipeline("running"),
		storetest.Container("namenode", "S1", "INIT_DAEMON_STEP=hdfs_init"),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	batch := emit(t, s, facts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessBatch(ctx, batch)
	var se *store.Error
	require.ErrorAs(t, err, &se)

	var be *BatchError
	assert.NotErrorAs(t, err, &be)
}

func TestProcessBatch_CustomActionValue(t *testing.T) {
	cfg := enabled()
	cfg.HealthStatusValue = "health"

	p, _ := newProcessor(cfg)
	fact := store.Triple(store.IRI(storetest.Base+"e"), vocab.EventAction, store.Literal("health"))
	assert.True(t, p.IsHealthFact(fact))

	fact.Object = store.Literal("health_status")
	assert.False(t, p.IsHealthFact(fact))
}
