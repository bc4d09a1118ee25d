package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/initdaemon/internal/delta"
	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/gate"
	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/pipeline"
	"github.com/shaiso/initdaemon/internal/register"
	"github.com/shaiso/initdaemon/internal/store"
	"github.com/shaiso/initdaemon/internal/telemetry"
)

// Ошибки координатора.
var (
	// ErrStepRequired — не передан код шага.
	ErrStepRequired = errors.New("step query parameter is required")

	// ErrStepExists — шаг с таким кодом уже есть в графе.
	ErrStepExists = errors.New("step code already exists")
)

// Publisher публикует смены статуса шагов. nil — публикация отключена.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, change domain.StatusChange) error
}

// Coordinator — операции над шагами.
type Coordinator struct {
	store           store.Store
	dir             *directory.Directory
	register        *register.Register
	gate            *gate.Gate
	health          *health.Processor
	publisher       Publisher
	reconcileOnGate bool
	logger          *slog.Logger
}

// Config — конфигурация Coordinator.
type Config struct {
	// Store — хранилище фактов.
	Store store.Store

	// Health — конфигурация обработчика health-событий.
	Health health.Config

	// ReconcileOnGate — перед CanStart продвигать предшествующие шаги,
	// контейнеры которых уже healthy. Работает при Health.CheckHealthStatus.
	ReconcileOnGate bool

	// Publisher — публикация смен статуса (опционально).
	Publisher Publisher

	Logger *slog.Logger
}

// New создаёт Coordinator.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := directory.New(cfg.Store, logger)
	reg := register.New(cfg.Store, logger)

	return &Coordinator{
		store:    cfg.Store,
		dir:      dir,
		register: reg,
		gate:     gate.New(cfg.Store, dir),
		health: health.New(health.Deps{
			Store:     cfg.Store,
			Directory: dir,
			Register:  reg,
			Logger:    logger,
		}, cfg.Health),
		publisher:       cfg.Publisher,
		reconcileOnGate: cfg.ReconcileOnGate,
		logger:          logger,
	}
}

// Health возвращает обработчик health-событий.
func (c *Coordinator) Health() *health.Processor {
	return c.health
}

// stepCode проверяет, что код шага передан.
func stepCode(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", ErrStepRequired
	}
	return code, nil
}

// CanStart отвечает, может ли шаг стартовать.
//
// Порядок: проверка параметра, сверка предшествующих шагов по
// health-событиям (если включена), существование шага и проверка
// зависимостей. Некорректные health-данные отдельных контейнеров
// пропускаются, ошибку дают только сбои хранилища.
func (c *Coordinator) CanStart(ctx context.Context, code string) (bool, error) {
	start := time.Now()
	defer func() {
		telemetry.OperationDuration.WithLabelValues("can_start").Observe(time.Since(start).Seconds())
	}()

	ok, err := c.canStart(ctx, code)

	result := "blocked"
	switch {
	case errors.Is(err, directory.ErrStepNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	case ok:
		result = "allowed"
	}
	telemetry.GateChecks.WithLabelValues(result).Inc()

	return ok, err
}

func (c *Coordinator) canStart(ctx context.Context, code string) (bool, error) {
	code, err := stepCode(code)
	if err != nil {
		return false, err
	}

	// для неизвестного кода предшественников нет, сверка ничего не делает
	if c.reconcileOnGate && c.health.Config().CheckHealthStatus {
		results, err := c.health.ReconcilePreceding(ctx, code)
		c.observe(results)
		if err != nil {
			return false, fmt.Errorf("reconcile steps preceding %q: %w", code, err)
		}
	}

	return c.gate.CanStart(ctx, code)
}

// Boot — контейнер шага загружается.
func (c *Coordinator) Boot(ctx context.Context, code string) error {
	return c.Transition(ctx, code, domain.StatusStarting)
}

// Execute — шаг начал выполнение.
func (c *Coordinator) Execute(ctx context.Context, code string) error {
	return c.Transition(ctx, code, domain.StatusRunning)
}

// Ready — шаг готов обслуживать зависимые шаги.
func (c *Coordinator) Ready(ctx context.Context, code string) error {
	return c.Transition(ctx, code, domain.StatusReady)
}

// Finish — шаг завершён.
func (c *Coordinator) Finish(ctx context.Context, code string) error {
	return c.Transition(ctx, code, domain.StatusDone)
}

// Fail — шаг завершился с ошибкой.
func (c *Coordinator) Fail(ctx context.Context, code string) error {
	return c.Transition(ctx, code, domain.StatusFailed)
}

// Transition переводит шаг в статус to по таблице переходов.
//
// Смена статуса публикуется, если задан Publisher. Ошибка публикации
// логируется и не отменяет записанный статус.
func (c *Coordinator) Transition(ctx context.Context, code string, to domain.StepStatus) (err error) {
	start := time.Now()
	defer func() {
		telemetry.Transitions.WithLabelValues(to.String(), telemetry.Result(err)).Inc()
		telemetry.OperationDuration.WithLabelValues("transition").Observe(time.Since(start).Seconds())
	}()

	code, err = stepCode(code)
	if err != nil {
		return err
	}

	step, err := c.dir.Resolve(ctx, code)
	if err != nil {
		return err
	}

	from, err := c.register.Transition(ctx, step, to)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}

	telemetry.WithStep(c.logger, step.Code).Info("step status changed",
		"from", from,
		"to", to,
	)

	if c.publisher != nil {
		change := domain.StatusChange{Step: step, From: from, To: to, At: time.Now().UTC()}
		if perr := c.publisher.PublishStatusChanged(ctx, change); perr != nil {
			c.logger.Warn("failed to publish status change",
				"step", step.Code,
				"error", perr,
			)
		}
	}
	return nil
}

// Describe возвращает шаг с пайплайном, порядковым номером и статусом.
func (c *Coordinator) Describe(ctx context.Context, code string) (domain.Step, error) {
	code, err := stepCode(code)
	if err != nil {
		return domain.Step{}, err
	}

	ref, err := c.dir.Resolve(ctx, code)
	if err != nil {
		return domain.Step{}, err
	}
	order, err := c.dir.Order(ctx, ref)
	if err != nil {
		return domain.Step{}, err
	}
	status, err := c.register.Current(ctx, ref)
	if err != nil {
		return domain.Step{}, err
	}

	return domain.Step{StepRef: ref, StepOrder: order, Status: status}, nil
}

// IngestDelta обрабатывает тело уведомления delta-notifier.
//
// При выключенной обработке health-событий уведомление принимается
// и игнорируется. Некорректное тело — ошибка, оборачивающая
// health.ErrMalformedEvent.
func (c *Coordinator) IngestDelta(ctx context.Context, body []byte) ([]health.Result, error) {
	if !c.health.Config().CheckHealthStatus {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		telemetry.OperationDuration.WithLabelValues("ingest_delta").Observe(time.Since(start).Seconds())
	}()

	batch, err := delta.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", health.ErrMalformedEvent, err)
	}

	results, err := c.health.ProcessBatch(ctx, batch.Inserts())
	c.observe(results)
	return results, err
}

// ReconcileAll сверяет статусы всех шагов, к которым привязаны контейнеры.
func (c *Coordinator) ReconcileAll(ctx context.Context) ([]health.Result, error) {
	if !c.health.Config().CheckHealthStatus {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		telemetry.OperationDuration.WithLabelValues("reconcile_all").Observe(time.Since(start).Seconds())
	}()

	results, err := c.health.ReconcileAll(ctx)
	c.observe(results)
	return results, err
}

// LoadPipeline проверяет определение и записывает пайплайн одним обновлением.
// Код, уже занятый другим шагом, — ErrStepExists.
//
// Уникальность кодов проверяется до и после вставки. Если две загрузки
// с общим кодом пересеклись, каждая увидит дубль и удалит свои факты:
// обе вернут ErrStepExists, дублей в графе не остаётся.
func (c *Coordinator) LoadPipeline(ctx context.Context, def *pipeline.Definition) (*pipeline.Materialized, error) {
	if err := pipeline.Validate(def); err != nil {
		return nil, err
	}

	for _, s := range def.Steps {
		exists, err := c.dir.Exists(ctx, s.Code)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrStepExists, domain.NormalizeCode(s.Code))
		}
	}

	m := pipeline.Materialize(def)
	if err := c.store.Update(ctx, m.Update()); err != nil {
		return nil, fmt.Errorf("insert pipeline %s: %w", def.Name, err)
	}

	// проверка кодов и вставка выполняются разными запросами, параллельная загрузка
	// могла занять тот же код, тогда свой пайплайн удаляется
	for _, step := range m.Steps {
		_, err := c.dir.Resolve(ctx, step.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, directory.ErrAmbiguousStep) {
			return nil, err
		}
		if rbErr := c.store.Update(ctx, m.Rollback()); rbErr != nil {
			return nil, fmt.Errorf("roll back pipeline %s: %w", m.IRI, rbErr)
		}
		c.logger.Warn("pipeline rolled back, step code taken concurrently",
			"pipeline", m.IRI,
			"step", step.Code,
		)
		return nil, fmt.Errorf("%w: %s", ErrStepExists, step.Code)
	}

	c.logger.Info("pipeline loaded",
		"pipeline", m.IRI,
		"name", def.Name,
		"steps", len(m.Steps),
	)
	return m, nil
}

func (c *Coordinator) observe(results []health.Result) {
	for _, r := range results {
		telemetry.HealthOutcomes.WithLabelValues(string(r.Outcome)).Inc()
	}
}
