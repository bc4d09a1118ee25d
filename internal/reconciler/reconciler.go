// Package reconciler периодически сверяет статусы шагов с последними
// health-событиями их контейнеров.
//
// Это запасной путь на случай потерянных уведомлений об изменениях графа:
// сверка идемпотентна, поэтому повторный проход ничего не пишет.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/telemetry"
)

// ErrScheduleRequired — не задано расписание.
var ErrScheduleRequired = errors.New("reconcile schedule is required")

// cronParser — стандартные 5 полей, опциональные секунды и дескрипторы (@every 30s).
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Target — то, что сверяется по расписанию.
type Target interface {
	ReconcileAll(ctx context.Context) ([]health.Result, error)
}

// Reconciler запускает Target по cron-расписанию.
type Reconciler struct {
	target   Target
	schedule cron.Schedule
	spec     string
	logger   *slog.Logger
}

// Config — конфигурация Reconciler.
type Config struct {
	Target Target

	// Schedule — cron-выражение или дескриптор, например "@every 1m".
	Schedule string

	Logger *slog.Logger
}

// ValidateSchedule проверяет cron-выражение.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return ErrScheduleRequired
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return nil
}

// New создаёт Reconciler.
func New(cfg Config) (*Reconciler, error) {
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return nil, err
	}
	schedule, _ := cronParser.Parse(cfg.Schedule)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		target:   cfg.Target,
		schedule: schedule,
		spec:     cfg.Schedule,
		logger:   logger,
	}, nil
}

// Next возвращает время следующего запуска после from.
func (r *Reconciler) Next(from time.Time) time.Time {
	return r.schedule.Next(from)
}

// Tick выполняет одну сверку и логирует итог.
func (r *Reconciler) Tick(ctx context.Context) error {
	start := time.Now()

	results, err := r.target.ReconcileAll(ctx)
	telemetry.Reconciliations.WithLabelValues(telemetry.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("reconcile all: %w", err)
	}

	counts := make(map[health.Outcome]int)
	for _, res := range results {
		counts[res.Outcome]++
	}

	r.logger.Info("reconciliation completed",
		"sources", len(results),
		"applied", counts[health.OutcomeApplied],
		"unchanged", counts[health.OutcomeUnchanged],
		"unattributed", counts[health.OutcomeUnattributed],
		"duration", time.Since(start),
	)
	return nil
}

// Run запускает сверки по расписанию до отмены ctx.
// Пересекающиеся запуски пропускаются.
func (r *Reconciler) Run(ctx context.Context) error {
	logger := cronLogger{r.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	c.Schedule(r.schedule, cron.FuncJob(func() {
		if err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reconciliation failed", "error", err)
		}
	}))

	r.logger.Info("reconciler started", "schedule", r.spec)
	c.Start()

	<-ctx.Done()

	// ждём завершения текущей сверки
	<-c.Stop().Done()
	r.logger.Info("reconciler stopped")
	return nil
}

// cronLogger передаёт сообщения cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
