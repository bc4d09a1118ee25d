package domain

import "strings"

// Переменные окружения контейнера, которыми он связывается с шагом.
const (
	// EnvStep — код шага, который инициализирует контейнер.
	EnvStep = "INIT_DAEMON_STEP"

	// EnvStatusWhenHealthy — статус шага, когда контейнер healthy.
	EnvStatusWhenHealthy = "INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY"

	// EnvStatusWhenUnhealthy — статус шага, когда контейнер не healthy.
	EnvStatusWhenUnhealthy = "INIT_DAEMON_STEP_STATUS_WHEN_UNHEALTHY"
)

// HealthHealthy — единственное состояние проверки, считающееся здоровым.
// Любое другое значение трактуется как unhealthy.
const HealthHealthy = "healthy"

// HealthEvent — неизменяемый факт о смене состояния health-check контейнера.
type HealthEvent struct {
	// IRI — идентификатор события в графе.
	IRI string `json:"iri,omitempty"`

	// Source — токен источника (контейнер), к которому относится событие.
	Source string `json:"source"`

	// TimeNano — время события в наносекундах; используется только для упорядочивания.
	TimeNano int64 `json:"time_nano"`

	// State — состояние проверки: healthy, unhealthy, ...
	State string `json:"state"`
}

// IsHealthy возвращает true только для состояния "healthy" (точное совпадение).
func (e HealthEvent) IsHealthy() bool {
	return e.State == HealthHealthy
}

// LaunchRecord — переменные окружения, с которыми был запущен контейнер.
type LaunchRecord struct {
	// Container — IRI контейнера.
	Container string `json:"container,omitempty"`

	// Env — переменные окружения KEY → VALUE.
	Env map[string]string `json:"env"`
}

// ParseLaunchRecord собирает LaunchRecord из строк вида "KEY=VALUE".
// Строки без "=" пропускаются; при повторе ключа побеждает последнее значение.
func ParseLaunchRecord(container string, lines []string) LaunchRecord {
	env := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		env[strings.TrimSpace(key)] = value
	}
	return LaunchRecord{Container: container, Env: env}
}

// StepCode возвращает нормализованный код шага или "" если контейнер
// не привязан к шагу.
func (r LaunchRecord) StepCode() string {
	return NormalizeCode(r.Env[EnvStep])
}

// StatusOverride возвращает переопределение целевого статуса для ветки
// healthy/unhealthy. ok=false, если переменная не задана или пуста.
func (r LaunchRecord) StatusOverride(healthy bool) (string, bool) {
	key := EnvStatusWhenUnhealthy
	if healthy {
		key = EnvStatusWhenHealthy
	}
	value := strings.TrimSpace(r.Env[key])
	return value, value != ""
}
