package domain

import "testing"

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" HDFS_Init "); got != "hdfs_init" {
		t.Errorf("NormalizeCode = %q, want hdfs_init", got)
	}
}

func TestHealthEvent_IsHealthy(t *testing.T) {
	tests := map[string]bool{
		"healthy":   true,
		"unhealthy": false,
		"Healthy":   false,
		"starting":  false,
		"":          false,
	}
	for state, want := range tests {
		if got := (HealthEvent{State: state}).IsHealthy(); got != want {
			t.Errorf("IsHealthy(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestParseLaunchRecord(t *testing.T) {
	rec := ParseLaunchRecord("c1", []string{
		"PATH=/usr/bin",
		"INIT_DAEMON_STEP=HDFS_Init",
		"INIT_DAEMON_STEP_STATUS_WHEN_HEALTHY=ready",
		"JAVA_OPTS=-Da=b",
		"garbage",
	})

	if rec.Container != "c1" {
		t.Errorf("unexpected container %q", rec.Container)
	}
	if rec.StepCode() != "hdfs_init" {
		t.Errorf("StepCode() = %q, want hdfs_init", rec.StepCode())
	}
	if rec.Env["JAVA_OPTS"] != "-Da=b" {
		t.Errorf("value should keep '=' after the first one, got %q", rec.Env["JAVA_OPTS"])
	}

	if v, ok := rec.StatusOverride(true); !ok || v != "ready" {
		t.Errorf("healthy override = %q, %v", v, ok)
	}
	if _, ok := rec.StatusOverride(false); ok {
		t.Error("unhealthy override should be absent")
	}
}

func TestLaunchRecord_NoStep(t *testing.T) {
	rec := ParseLaunchRecord("c2", []string{"PATH=/bin"})
	if rec.StepCode() != "" {
		t.Errorf("expected empty step code, got %q", rec.StepCode())
	}
}
