package health

import (
	"fmt"

	"github.com/shaiso/initdaemon/internal/domain"
)

// DefaultHealthStatusValue — значение dockevent:action у health-событий.
const DefaultHealthStatusValue = "health_status"

// Config — конфигурация обработчика health-событий.
type Config struct {
	// CheckHealthStatus включает обработку health-событий.
	CheckHealthStatus bool

	// CheckOnlyLatestHealthcheck — рассматривать только последнее событие
	// источника (LIMIT 1). Иначе читается вся история, упорядоченная
	// по убыванию времени, и авторитетна её первая запись.
	CheckOnlyLatestHealthcheck bool

	// DefaultHealthyStatus — статус шага для healthy, если у контейнера
	// нет INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY.
	DefaultHealthyStatus domain.StepStatus

	// DefaultUnhealthyStatus — статус шага для остальных состояний, если у
	// контейнера нет INIT_DAEMON_STEP_STATUS_WHEN_UNHEALTHY.
	DefaultUnhealthyStatus domain.StepStatus

	// HealthStatusValue — значение dockevent:action, обозначающее health-check.
	HealthStatusValue string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		CheckHealthStatus:          false,
		CheckOnlyLatestHealthcheck: true,
		DefaultHealthyStatus:       domain.StatusDone,
		DefaultUnhealthyStatus:     domain.StatusFailed,
		HealthStatusValue:          DefaultHealthStatusValue,
	}
}

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	if !c.DefaultHealthyStatus.IsValid() {
		return fmt.Errorf("default healthy status: %w: %q", domain.ErrUnknownStatus, c.DefaultHealthyStatus)
	}
	if !c.DefaultUnhealthyStatus.IsValid() {
		return fmt.Errorf("default unhealthy status: %w: %q", domain.ErrUnknownStatus, c.DefaultUnhealthyStatus)
	}
	if c.HealthStatusValue == "" {
		return fmt.Errorf("health status action value is empty")
	}
	return nil
}

// withDefaults заполняет пустые поля значениями по умолчанию.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultHealthyStatus == "" {
		c.DefaultHealthyStatus = def.DefaultHealthyStatus
	}
	if c.DefaultUnhealthyStatus == "" {
		c.DefaultUnhealthyStatus = def.DefaultUnhealthyStatus
	}
	if c.HealthStatusValue == "" {
		c.HealthStatusValue = def.HealthStatusValue
	}
	return c
}
