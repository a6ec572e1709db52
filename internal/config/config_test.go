package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef-test")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)
	t.Setenv("ALERT_RECIPIENTS", "ops@example.com, lead@example.com")

	cfg := LoadConfig()

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr default: %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "./backlogwatch.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.OutboxDir != "./outbox" {
		t.Fatalf("unexpected outbox dir default: %q", cfg.OutboxDir)
	}
	if cfg.AlertMinOverdue != 1 {
		t.Fatalf("unexpected alert_min_overdue default: %d", cfg.AlertMinOverdue)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.AccessTokenTTL() != 15*time.Minute || cfg.RefreshTokenTTL() != 24*time.Hour {
		t.Fatalf("unexpected token TTLs: %s / %s", cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if len(cfg.AlertRecipients) != 2 || cfg.AlertRecipients[1] != "lead@example.com" {
		t.Fatalf("unexpected recipients: %q", cfg.AlertRecipients)
	}
	if th := cfg.Thresholds.For("1"); th.Warning != 4 || th.Critical != 12 || th.Severe != 24 {
		t.Fatalf("expected default severity 1 thresholds, got %+v", th)
	}
	if cfg.SMTPConfigured() || cfg.SlackConfigured() || cfg.LLMConfigured() {
		t.Fatal("expected optional integrations to be off by default")
	}
	if _, ok := cfg.Mapping["jira"]; !ok {
		t.Fatal("expected default ingest mapping to be loaded")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
jwt_secret: "yaml-secret-0123456789"
db_path: "/tmp/yaml.db"
outbox_dir: "/tmp/yaml-outbox"
alert_recipients:
  - "yaml@example.com"
alert_min_overdue: 3
alert_schedule: "0 8 * * 1-5"
timezone: "Europe/Paris"
overdue_thresholds:
  "1":
    warning: 2
    critical: 6
    severe: 10
  default:
    warning: 72
    critical: 200
    severe: 400
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("ALERT_MIN_OVERDUE", "5")

	cfg := LoadConfig()

	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.OutboxDir != "/tmp/yaml-outbox" {
		t.Fatalf("expected outbox dir from yaml, got %q", cfg.OutboxDir)
	}
	if cfg.AlertMinOverdue != 5 {
		t.Fatalf("expected alert_min_overdue from env override, got %d", cfg.AlertMinOverdue)
	}
	if cfg.AlertSchedule != "0 8 * * 1-5" {
		t.Fatalf("unexpected alert schedule: %q", cfg.AlertSchedule)
	}
	if th := cfg.Thresholds.For("1"); th.Warning != 2 || th.Severe != 10 {
		t.Fatalf("expected overridden severity 1 thresholds, got %+v", th)
	}
	if th := cfg.Thresholds.For("2"); th.Warning != 8 {
		t.Fatalf("expected default severity 2 thresholds, got %+v", th)
	}
	if th := cfg.Thresholds.For("other"); th.Warning != 72 {
		t.Fatalf("expected overridden default thresholds, got %+v", th)
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("BW_TEST_STR", "value")
	envOverride(&s, "BW_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("BW_TEST_INT", "42")
	envOverrideInt(&i, "BW_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	list := []string{"old"}
	t.Setenv("BW_TEST_LIST", " a , ,b")
	envOverrideList(&list, "BW_TEST_LIST")
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Fatalf("envOverrideList failed, got %q", list)
	}

	empty := "keep"
	t.Setenv("BW_TEST_EMPTY", "")
	envOverrideAllowEmpty(&empty, "BW_TEST_EMPTY")
	if empty != "" {
		t.Fatalf("envOverrideAllowEmpty failed, got %q", empty)
	}
}

func TestLoadConfigMissingSecretFatal(t *testing.T) {
	if os.Getenv("TEST_MISSING_SECRET_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Unsetenv("JWT_SECRET")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigMissingSecretFatal")
	cmd.Env = append(os.Environ(), "TEST_MISSING_SECRET_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigInvalidThresholdsFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_THRESHOLDS_FATAL") == "1" {
		path := filepath.Join(os.TempDir(), "bw-invalid-thresholds.yaml")
		_ = os.WriteFile(path, []byte("jwt_secret: \"0123456789abcdef-test\"\noverdue_thresholds:\n  \"1\": {warning: 10, critical: 1, severe: 2}\n"), 0o644)
		_ = os.Setenv("CONFIG_PATH", path)
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidThresholdsFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_THRESHOLDS_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
