package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/initdaemon/internal/domain"
)

// clearEnv сбрасывает переменные, которые могли прийти из окружения теста.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "STORE_BACKEND", "MU_APPLICATION_GRAPH", "MU_SPARQL_ENDPOINT",
		"DB_URL", "RABBITMQ_URL", "RECONCILE_SCHEDULE", "CHECK_HEALTH_STATUS",
		"CHECK_ONLY_LATEST_HEALTHCHECK", "RECONCILE_ON_GATE", "DEFAULT_STATUS_WHEN_HEALTHY",
		"DEFAULT_STATUS_WHEN_UNHEALTHY", "HEALTH_STATUS_VALUE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":80", cfg.Addr())
	assert.Equal(t, BackendSPARQL, cfg.Store.Backend)
	assert.Equal(t, "http://mu.semte.ch/application", cfg.Store.Graph)

	hc, err := cfg.HealthProcessor()
	require.NoError(t, err)
	assert.False(t, hc.CheckHealthStatus)
	assert.True(t, hc.CheckOnlyLatestHealthcheck)
	assert.Equal(t, domain.StatusDone, hc.DefaultHealthyStatus)
	assert.Equal(t, domain.StatusFailed, hc.DefaultUnhealthyStatus)
	assert.Equal(t, "health_status", hc.HealthStatusValue)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DB_URL", "postgresql://u:p@db/initdaemon")
	t.Setenv("CHECK_HEALTH_STATUS", "yes")
	t.Setenv("CHECK_ONLY_LATEST_HEALTHCHECK", "false")
	t.Setenv("DEFAULT_STATUS_WHEN_HEALTHY", "READY")
	t.Setenv("DEFAULT_STATUS_WHEN_UNHEALTHY", "running")
	t.Setenv("RECONCILE_SCHEDULE", "@every 30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgresql://u:p@db/initdaemon", cfg.Store.DatabaseURL)
	assert.Equal(t, "@every 30s", cfg.Reconciler.Schedule)

	hc, err := cfg.HealthProcessor()
	require.NoError(t, err)
	assert.True(t, hc.CheckHealthStatus)
	assert.False(t, hc.CheckOnlyLatestHealthcheck)
	assert.Equal(t, domain.StatusReady, hc.DefaultHealthyStatus)
	assert.Equal(t, domain.StatusRunning, hc.DefaultUnhealthyStatus)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "initdaemon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  shutdown_timeout: 3s
store:
  backend: memory
health:
  check_health_status: true
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	// окружение важнее файла
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.True(t, cfg.Health.CheckHealthStatus)
	assert.Equal(t, "done", cfg.Health.DefaultStatusWhenHealthy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"bad boolean", map[string]string{"CHECK_HEALTH_STATUS": "maybe"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"unknown default status", map[string]string{"DEFAULT_STATUS_WHEN_HEALTHY": "finished"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
