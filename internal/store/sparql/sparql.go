// Package sparql реализует store.Store поверх SPARQL 1.1 Protocol.
//
// Запросы отправляются POST-формой query=, обновления — update=.
// Ответы разбираются в формате application/sparql-results+json.
// Все вызовы проходят через circuit breaker: при серии отказов эндпоинта
// запросы сразу завершаются store.ErrUnavailable.
package sparql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shaiso/initdaemon/internal/store"
)

const (
	defaultTimeout     = 30 * time.Second
	resultsContentType = "application/sparql-results+json"
	maxErrorBody       = 512
)

// Ошибки клиента SPARQL.
var (
	// ErrEndpointRequired — не задан адрес эндпоинта.
	ErrEndpointRequired = errors.New("sparql endpoint is required")

	// ErrGraphRequired — не задан граф приложения.
	ErrGraphRequired = errors.New("application graph is required")

	// ErrRejected — эндпоинт отклонил запрос (4xx).
	ErrRejected = errors.New("sparql request rejected")
)

// Config — настройки клиента.
type Config struct {
	// Endpoint — URL эндпоинта (MU_SPARQL_ENDPOINT).
	Endpoint string

	// Graph — IRI графа приложения (MU_APPLICATION_GRAPH).
	Graph string

	// Timeout — таймаут одного запроса. Default: 30s.
	Timeout time.Duration

	// FailureThreshold — число отказов подряд, после которого breaker
	// размыкается. Default: 5.
	FailureThreshold uint32

	// OpenTimeout — сколько breaker остаётся разомкнутым. Default: 30s.
	OpenTimeout time.Duration

	// HTTPClient — клиент HTTP. Default: новый http.Client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Store — хранилище фактов на SPARQL-эндпоинте.
type Store struct {
	endpoint string
	graph    string
	timeout  time.Duration
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// New создаёт Store.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("sparql endpoint: %w", err)
	}
	if cfg.Graph == "" {
		return nil, ErrGraphRequired
	}
	if err := store.ValidateIRI(cfg.Graph); err != nil {
		return nil, fmt.Errorf("application graph: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		endpoint: cfg.Endpoint,
		graph:    cfg.Graph,
		timeout:  cfg.Timeout,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}

	threshold := cfg.FailureThreshold
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sparql",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// отклонённый запрос — ошибка вызывающего, а не эндпоинта
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("sparql circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return s, nil
}

// Graph возвращает граф приложения.
func (s *Store) Graph() string {
	return s.graph
}

// Ask реализует store.Store.
func (s *Store) Ask(ctx context.Context, q *store.Query) (bool, error) {
	text, err := RenderQuery(q, s.graph)
	if err != nil {
		return false, store.Wrap("ask", err)
	}

	body, err := s.call(ctx, "query", text)
	if err != nil {
		return false, store.Wrap("ask", err)
	}

	ok, err := decodeBoolean(body)
	if err != nil {
		return false, store.Wrap("ask", err)
	}
	return ok, nil
}

// Select реализует store.Store.
func (s *Store) Select(ctx context.Context, q *store.Query) ([]store.Binding, error) {
	text, err := RenderQuery(q, s.graph)
	if err != nil {
		return nil, store.Wrap("select", err)
	}

	body, err := s.call(ctx, "query", text)
	if err != nil {
		return nil, store.Wrap("select", err)
	}

	rows, err := decodeBindings(body)
	if err != nil {
		return nil, store.Wrap("select", err)
	}
	return rows, nil
}

// Update реализует store.Store. Обновление уходит одним запросом,
// атомарность обеспечивает эндпоинт.
func (s *Store) Update(ctx context.Context, u *store.Update) error {
	text, err := RenderUpdate(u, s.graph)
	if err != nil {
		return store.Wrap("update", err)
	}

	if _, err := s.call(ctx, "update", text); err != nil {
		return store.Wrap("update", err)
	}
	return nil
}

// call отправляет форму field=text через breaker и возвращает тело ответа.
func (s *Store) call(ctx context.Context, field, text string) ([]byte, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, field, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (s *Store) post(ctx context.Context, field, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	form := url.Values{field: {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", resultsContentType)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", store.ErrUnavailable, err)
	}

	s.logger.Debug("sparql request",
		"kind", field,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", store.ErrUnavailable, resp.StatusCode, snippet(body))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
