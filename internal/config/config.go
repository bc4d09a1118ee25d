// Package config загружает конфигурацию сервиса.
//
// Значения берутся из YAML-файла (если задан CONFIG_FILE), затем
// переопределяются переменными окружения. Конфигурация читается один раз
// при старте и передаётся компонентам явно.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/health"
)

// Бэкенды хранилища фактов.
const (
	BackendMemory   = "memory"
	BackendSPARQL   = "sparql"
	BackendPostgres = "postgres"
)

// ErrInvalid — конфигурация не прошла проверку.
var ErrInvalid = errors.New("invalid configuration")

// Config — корневая конфигурация сервиса.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Health     HealthConfig     `yaml:"health"`
	Queue      QueueConfig      `yaml:"queue"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
}

// ServerConfig — HTTP-сервер.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig — хранилище фактов.
type StoreConfig struct {
	// Backend — memory, sparql или postgres.
	Backend string `yaml:"backend"`

	// Graph — IRI графа приложения.
	Graph string `yaml:"graph"`

	// SPARQLEndpoint — адрес SPARQL-эндпоинта.
	SPARQLEndpoint string `yaml:"sparql_endpoint"`

	// SPARQLTimeout — таймаут одного запроса к эндпоинту.
	SPARQLTimeout time.Duration `yaml:"sparql_timeout"`

	// DatabaseURL — строка подключения к PostgreSQL.
	DatabaseURL string `yaml:"database_url"`
}

// HealthConfig — обработка health-событий.
type HealthConfig struct {
	CheckHealthStatus          bool   `yaml:"check_health_status"`
	CheckOnlyLatestHealthcheck bool   `yaml:"check_only_latest_healthcheck"`
	DefaultStatusWhenHealthy   string `yaml:"default_status_when_healthy"`
	DefaultStatusWhenUnhealthy string `yaml:"default_status_when_unhealthy"`
	HealthStatusValue          string `yaml:"health_status_value"`

	// ReconcileOnGate — перед проверкой canStart сверять предшествующие
	// шаги с их последними health-событиями.
	ReconcileOnGate bool `yaml:"reconcile_on_gate"`
}

// QueueConfig — RabbitMQ. Пустой URL отключает очередь.
type QueueConfig struct {
	URL      string `yaml:"url"`
	Prefetch int    `yaml:"prefetch"`
}

// ReconcilerConfig — периодическая сверка. Пустое расписание отключает её.
type ReconcilerConfig struct {
	Schedule string `yaml:"schedule"`
}

// Defaults возвращает конфигурацию по умолчанию.
func Defaults() *Config {
	h := health.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            80,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend:        BackendSPARQL,
			Graph:          "http://mu.semte.ch/application",
			SPARQLEndpoint: "http://database:8890/sparql",
			SPARQLTimeout:  30 * time.Second,
		},
		Health: HealthConfig{
			CheckHealthStatus:          h.CheckHealthStatus,
			CheckOnlyLatestHealthcheck: h.CheckOnlyLatestHealthcheck,
			DefaultStatusWhenHealthy:   h.DefaultHealthyStatus.String(),
			DefaultStatusWhenUnhealthy: h.DefaultUnhealthyStatus.String(),
			HealthStatusValue:          h.HealthStatusValue,
			ReconcileOnGate:            true,
		},
		Queue: QueueConfig{
			Prefetch: 10,
		},
	}
}

// Load собирает конфигурацию: значения по умолчанию, файл CONFIG_FILE
// (если задан), переменные окружения. Результат проверяется.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

// applyEnv переопределяет значения переменными окружения.
func applyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		b, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			cfg.Server.Port = port
		}
	}

	str("STORE_BACKEND", &cfg.Store.Backend)
	str("MU_APPLICATION_GRAPH", &cfg.Store.Graph)
	str("MU_SPARQL_ENDPOINT", &cfg.Store.SPARQLEndpoint)
	str("DB_URL", &cfg.Store.DatabaseURL)
	str("RABBITMQ_URL", &cfg.Queue.URL)
	str("RECONCILE_SCHEDULE", &cfg.Reconciler.Schedule)

	flag("CHECK_HEALTH_STATUS", &cfg.Health.CheckHealthStatus)
	flag("CHECK_ONLY_LATEST_HEALTHCHECK", &cfg.Health.CheckOnlyLatestHealthcheck)
	flag("RECONCILE_ON_GATE", &cfg.Health.ReconcileOnGate)
	str("DEFAULT_STATUS_WHEN_HEALTHY", &cfg.Health.DefaultStatusWhenHealthy)
	str("DEFAULT_STATUS_WHEN_UNHEALTHY", &cfg.Health.DefaultStatusWhenUnhealthy)
	str("HEALTH_STATUS_VALUE", &cfg.Health.HealthStatusValue)

	return errors.Join(errs...)
}

// parseBool принимает true/false, yes/no, 1/0 и on/off.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", v)
	}
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Store.Graph == "" {
		errs = append(errs, "store.graph is required")
	}

	switch c.Store.Backend {
	case BackendMemory, BackendPostgres:
	case BackendSPARQL:
		if c.Store.SPARQLEndpoint == "" {
			errs = append(errs, "store.sparql_endpoint is required for sparql backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of memory, sparql, postgres", c.Store.Backend))
	}

	if _, err := c.HealthProcessor(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Queue.Prefetch < 0 {
		errs = append(errs, "queue.prefetch must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// HealthProcessor возвращает конфигурацию обработчика health-событий.
func (c *Config) HealthProcessor() (health.Config, error) {
	healthy, err := domain.ParseStepStatus(c.Health.DefaultStatusWhenHealthy)
	if err != nil {
		return health.Config{}, fmt.Errorf("health.default_status_when_healthy: %w", err)
	}
	unhealthy, err := domain.ParseStepStatus(c.Health.DefaultStatusWhenUnhealthy)
	if err != nil {
		return health.Config{}, fmt.Errorf("health.default_status_when_unhealthy: %w", err)
	}

	hc := health.Config{
		CheckHealthStatus:          c.Health.CheckHealthStatus,
		CheckOnlyLatestHealthcheck: c.Health.CheckOnlyLatestHealthcheck,
		DefaultHealthyStatus:       healthy,
		DefaultUnhealthyStatus:     unhealthy,
		HealthStatusValue:          c.Health.HealthStatusValue,
	}
	if err := hc.Validate(); err != nil {
		return health.Config{}, err
	}
	return hc, nil
}

// Addr возвращает адрес HTTP-сервера.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}
