package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервиса. Регистрируются в глобальном реестре Prometheus
// и отдаются на /metrics.
var (
	// HTTPRequests — обработанные HTTP-запросы по маршруту и коду ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initdaemon_http_requests_total",
		Help: "Total HTTP requests handled by initdaemon",
	}, []string{"route", "status"})

	// GateChecks — проверки canStart по результату: allowed, blocked, not_found, error.
	GateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initdaemon_gate_checks_total",
		Help: "Dependency gate evaluations by result",
	}, []string{"result"})

	// Transitions — команды смены статуса по целевому статусу и результату.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initdaemon_status_transitions_total",
		Help: "Step status commands by target status and result",
	}, []string{"to", "result"})

	// HealthOutcomes — итоги сверки статусов по health-событиям.
	HealthOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initdaemon_health_outcomes_total",
		Help: "Health reconciliation outcomes",
	}, []string{"outcome"})

	// DeltaBatches — принятые пачки изменений по каналу и результату.
	DeltaBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initdaemon_delta_batches_total",
		Help: "Change feed batches by channel and result",
	}, []string{"channel", "result"})

	// Reconciliations — периодические сверки по результату.
	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initdaemon_reconciliations_total",
		Help: "Scheduled reconciliation runs by result",
	}, []string{"result"})

	// OperationDuration — длительность операций координатора.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "initdaemon_operation_duration_seconds",
		Help:    "Duration of coordinator operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Result возвращает метку результата: "ok" или "error".
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
