package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/initdaemon/internal/coordinator"
	"github.com/shaiso/initdaemon/internal/delta"
	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/store/memory"
	"github.com/shaiso/initdaemon/internal/store/storetest"
	"github.com/shaiso/initdaemon/internal/vocab"
)

func newServer(t *testing.T, hc health.Config, facts ...store.Pattern) (*httptest.Server, *memory.Store) {
	t.Helper()
	return newServerWith(t, coordinator.Config{Health: hc}, facts...)
}

func newServerWith(t *testing.T, cfg coordinator.Config, facts ...store.Pattern) (*httptest.Server, *memory.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := memory.New(facts...)
	cfg.Store = s
	cfg.Logger = logger
	h := NewHandler(Config{
		Coordinator: coordinator.New(cfg),
		Logger:      logger,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, s
}

func twoSteps(statusA string) []store.Pattern {
	return storetest.Pipeline("p1",
		storetest.Step{Code: "a", Order: 1, Status: statusA},
		storetest.Step{Code: "b", Order: 2, Status: "not_started"},
	)
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func decodeError(t *testing.T, body string) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp.Error
}

func TestCanStart(t *testing.T) {
	srv, _ := newServer(t, health.DefaultConfig(), twoSteps("done")...)

	resp, body := do(t, http.MethodGet, srv.URL+"/canStart?step=b", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", body)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	srv, _ = newServer(t, health.DefaultConfig(), twoSteps("running")...)
	_, body = do(t, http.MethodGet, srv.URL+"/canStart?step=B", "")
	assert.Equal(t, "false", body)
}

func TestCanStart_Errors(t *testing.T) {
	srv, _ := newServer(t, health.DefaultConfig(), twoSteps("done")...)

	resp, body := do(t, http.MethodGet, srv.URL+"/canStart", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Step query parameter is required", decodeError(t, body).Message)

	resp, body = do(t, http.MethodGet, srv.URL+"/canStart?step=zzz", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	detail := decodeError(t, body)
	assert.Equal(t, ErrCodeNotFound, detail.Code)
	assert.Equal(t, "No step found with code 'zzz'", detail.Message)
}

func TestCommands(t *testing.T) {
	srv, s := newServer(t, health.DefaultConfig(), twoSteps("not_started")...)

	for _, path := range []string{"/boot", "/execute", "/ready", "/finish"} {
		resp, _ := do(t, http.MethodPut, srv.URL+path+"?step=a", "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode, path)
	}
	assert.Equal(t, []string{"done"}, s.Objects(storetest.StepIRI("a"), vocab.Status.Value))

	// done терминален
	resp, body := do(t, http.MethodPut, srv.URL+"/fail?step=a", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidState, decodeError(t, body).Code)

	resp, _ = do(t, http.MethodPut, srv.URL+"/done?step=missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/execute?step=a", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestConsistencyError(t *testing.T) {
	facts := storetest.Join(
		twoSteps("done"),
		storetest.Pipeline("p2", storetest.Step{Code: "dup", Order: 1}),
	)
	// второй шаг с тем же кодом
	other := store.IRI(storetest.Base + "steps/dup-2")
	facts = append(facts,
		store.Triple(other, vocab.Type, vocab.Step),
		store.Triple(other, vocab.Code, store.Literal("dup")),
	)
	srv, _ := newServer(t, health.DefaultConfig(), facts...)

	resp, body := do(t, http.MethodPut, srv.URL+"/execute?step=dup", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, ErrCodeInconsistent, decodeError(t, body).Code)
}

func TestDelta(t *testing.T) {
	hc := health.DefaultConfig()
	hc.CheckHealthStatus = true

	srv, s := newServer(t, hc, storetest.Join(
		storetest.Pipeline("p1", storetest.Step{Code: "a", Order: 1, Status: "running"}),
		storetest.Container("ca", "S1", "INIT_DAEMON_STEP=a"),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	require.NoError(t, s.Update(context.Background(), store.InsertData(facts...)))

	triples := make([]delta.Triple, 0, len(facts))
	for _, f := range facts {
		triples = append(triples, delta.FromPattern(f))
	}
	body, err := delta.Batch{{Inserts: triples}}.Encode()
	require.NoError(t, err)

	resp, _ := do(t, http.MethodPost, srv.URL+"/.mu/delta", string(body))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"done"}, s.Objects(storetest.StepIRI("a"), vocab.Status.Value))

	resp, respBody := do(t, http.MethodPost, srv.URL+"/.mu/delta", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeMalformedEvent, decodeError(t, respBody).Code)
}

func TestDelta_UnrelatedFactsIgnored(t *testing.T) {
	hc := health.DefaultConfig()
	hc.CheckHealthStatus = true

	srv, s := newServer(t, hc, storetest.Join(
		storetest.Pipeline("p1", storetest.Step{Code: "a", Order: 1, Status: "running"}),
		storetest.Container("ca", "S1", "INIT_DAEMON_STEP=a"),
	)...)

	_, facts := storetest.HealthEvent("S1", "healthy", 100)
	require.NoError(t, s.Update(context.Background(), store.InsertData(facts...)))

	triples := []delta.Triple{{
		Subject:   &delta.Term{Type: "bnode", Value: "genid1"},
		Predicate: &delta.Term{Type: "uri", Value: "http://example.test/p"},
		Object:    &delta.Term{Type: "literal", Value: "v"},
	}}
	for _, f := range facts {
		triples = append(triples, delta.FromPattern(f))
	}
	body, err := delta.Batch{{Inserts: triples}}.Encode()
	require.NoError(t, err)

	resp, _ := do(t, http.MethodPost, srv.URL+"/.mu/delta", string(body))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"done"}, s.Objects(storetest.StepIRI("a"), vocab.Status.Value))
}

func TestCanStart_MalformedOverride(t *testing.T) {
	hc := health.DefaultConfig()
	hc.CheckHealthStatus = true

	_, healthyA := storetest.HealthEvent("SA", "healthy", 10)
	_, healthyB := storetest.HealthEvent("SB", "healthy", 10)
	srv, s := newServerWith(t, coordinator.Config{Health: hc, ReconcileOnGate: true}, storetest.Join(
		storetest.Pipeline("p1",
			storetest.Step{Code: "a", Order: 1, Status: "running"},
			storetest.Step{Code: "b", Order: 2, Status: "running"},
			storetest.Step{Code: "c", Order: 3},
		),
		storetest.Container("ca", "SA", "INIT_DAEMON_STEP=a", "INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY=bogus"),
		storetest.Container("cb", "SB", "INIT_DAEMON_STEP=b"),
		healthyA, healthyB,
	)...)

	resp, body := do(t, http.MethodGet, srv.URL+"/canStart?step=c", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "false", body)
	assert.Equal(t, []string{"done"}, s.Objects(storetest.StepIRI("b"), vocab.Status.Value))
}

func TestDelta_Disabled(t *testing.T) {
	srv, _ := newServer(t, health.DefaultConfig())

	resp, _ := do(t, http.MethodPost, srv.URL+"/.mu/delta", `not json`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPipelines(t *testing.T) {
	srv, _ := newServer(t, health.DefaultConfig())

	def := `
name: hadoop
steps:
  - code: HDFS_Init
    order: 1
  - code: yarn_init
    order: 2
`
	resp, body := do(t, http.MethodPost, srv.URL+"/pipelines", def)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var created struct {
		Data PipelineResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.Len(t, created.Data.Steps, 2)
	assert.Equal(t, "hdfs_init", created.Data.Steps[0].Code)

	resp, _ = do(t, http.MethodPost, srv.URL+"/pipelines", def)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/pipelines", "name: x\nsteps:\n  - {code: a, order: 1}\n  - {code: b, order: 1}\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/steps/yarn_init", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var step struct {
		Data StepResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &step))
	assert.Equal(t, "yarn_init", step.Data.Code)
	assert.Equal(t, int64(2), step.Data.Order)
	assert.Equal(t, "not_started", step.Data.Status)
	require.NotNil(t, step.Data.CanStart)
	assert.False(t, *step.Data.CanStart)
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("first"), mw("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
