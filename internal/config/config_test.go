package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, warnings, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}

	rule := cfg.ThrottleRule()
	if rule.MaxRequests != 1000 || rule.PeriodSeconds != 60 {
		t.Fatalf("unexpected default rule %+v", rule)
	}
	if !rule.Enabled() {
		t.Fatal("expected defaults to enable throttling")
	}
	if cfg.Server.Router != RouterChi || cfg.Storage.Type != StorageRedis {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RedisAddr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %s", cfg.RedisAddr())
	}
	if cfg.StoreTimeout() != 0 {
		t.Fatalf("expected no store timeout, got %v", cfg.StoreTimeout())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("THROTTLE_MAX_REQUESTS", "3")
	t.Setenv("THROTTLE_PERIOD_SECONDS", "5")
	t.Setenv("THROTTLE_FAIL_OPEN", "true")
	t.Setenv("THROTTLE_STORE_TIMEOUT_MS", "250")
	t.Setenv("SERVER_ROUTER", "GIN")
	t.Setenv("STORAGE_TYPE", "memory")

	cfg, _, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Throttle.MaxRequests != 3 || cfg.Throttle.PeriodSeconds != 5 || !cfg.Throttle.FailOpen {
		t.Fatalf("unexpected throttle config %+v", cfg.Throttle)
	}
	if cfg.StoreTimeout() != 250*time.Millisecond {
		t.Fatalf("unexpected store timeout %v", cfg.StoreTimeout())
	}
	if cfg.Server.Router != RouterGin || cfg.Storage.Type != StorageMemory {
		t.Fatalf("unexpected server/storage %+v %+v", cfg.Server, cfg.Storage)
	}
}

func TestLoad_MalformedThrottleValuesFallBack(t *testing.T) {
	t.Setenv("THROTTLE_MAX_REQUESTS", "lots")
	t.Setenv("THROTTLE_PERIOD_SECONDS", "1m")
	t.Setenv("THROTTLE_FAIL_OPEN", "maybe")

	cfg, warnings, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("malformed throttle values must not fail loading: %v", err)
	}
	if cfg.Throttle.MaxRequests != 1000 || cfg.Throttle.PeriodSeconds != 60 || cfg.Throttle.FailOpen {
		t.Fatalf("expected defaults, got %+v", cfg.Throttle)
	}
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[0].String(), "THROTTLE_MAX_REQUESTS") {
		t.Fatalf("unexpected warning %q", warnings[0])
	}
}

func TestLoad_NonPositiveValuesDisable(t *testing.T) {
	t.Setenv("THROTTLE_MAX_REQUESTS", "0")

	cfg, _, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ThrottleRule().Enabled() {
		t.Fatal("expected throttling to be disabled")
	}

	t.Setenv("THROTTLE_MAX_REQUESTS", "10")
	t.Setenv("THROTTLE_PERIOD_SECONDS", "-1")
	cfg, _, _ = Load(LoadOptions{})
	if cfg.ThrottleRule().Enabled() {
		t.Fatal("expected negative period to disable throttling")
	}
}

func TestLoad_InvalidRedisPortIsAnError(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-port")
	if _, _, err := Load(LoadOptions{}); err == nil {
		t.Fatal("expected error for invalid REDIS_PORT")
	}
}

func TestLoad_UnsupportedRouter(t *testing.T) {
	t.Setenv("SERVER_ROUTER", "echo")
	if _, _, err := Load(LoadOptions{}); err == nil {
		t.Fatal("expected error for unsupported router")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "throttle.yaml", `
server:
  port: "9090"
storage:
  type: memory
  redis:
    host: cache.internal
throttle:
  max_requests: 25
  period_seconds: abc
  trust_proxy_headers: true
logging:
  format: json
`)

	cfg, warnings, err := Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Storage.Type != StorageMemory || cfg.Storage.Redis.Host != "cache.internal" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Throttle.MaxRequests != 25 || !cfg.Throttle.TrustProxyHeaders {
		t.Fatalf("unexpected throttle config %+v", cfg.Throttle)
	}
	if cfg.Throttle.PeriodSeconds != 60 || len(warnings) != 1 {
		t.Fatalf("expected period fallback with one warning, got %d %v", cfg.Throttle.PeriodSeconds, warnings)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoad_Tracing(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, _, err := Load(LoadOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Tracing.ServiceName != "throttled" || cfg.Tracing.SampleRatio != 1 || cfg.Tracing.Endpoint != "" {
			t.Fatalf("unexpected tracing defaults %+v", cfg.Tracing)
		}
	})

	t.Run("yaml and env", func(t *testing.T) {
		path := writeFile(t, "throttle.yaml", `
tracing:
  endpoint: http://collector:4318
  sample_ratio: 0.25
  log_spans: true
`)
		t.Setenv("TRACING_SERVICE_NAME", "edge-throttle")

		cfg, warnings, err := Load(LoadOptions{ConfigFile: path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(warnings) != 0 {
			t.Fatalf("expected no warnings, got %v", warnings)
		}
		want := TracingConfig{
			ServiceName: "edge-throttle",
			Endpoint:    "http://collector:4318",
			SampleRatio: 0.25,
			LogSpans:    true,
		}
		if cfg.Tracing != want {
			t.Fatalf("expected %+v, got %+v", want, cfg.Tracing)
		}
	})

	t.Run("malformed ratio falls back", func(t *testing.T) {
		t.Setenv("TRACING_SAMPLE_RATIO", "half")

		cfg, warnings, err := Load(LoadOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Tracing.SampleRatio != 1 || len(warnings) != 1 || warnings[0].Key != "TRACING_SAMPLE_RATIO" {
			t.Fatalf("expected fallback with one warning, got %v %v", cfg.Tracing.SampleRatio, warnings)
		}
	})
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	path := writeFile(t, "throttle.yaml", "throttle:\n  max_requests: 25\n")
	t.Setenv("THROTTLE_MAX_REQUESTS", "7")

	cfg, _, err := Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Throttle.MaxRequests != 7 {
		t.Fatalf("expected env to win, got %d", cfg.Throttle.MaxRequests)
	}
}

func TestLoad_MissingYAMLFileIsIgnored(t *testing.T) {
	if _, _, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_BrokenYAMLIsAnError(t *testing.T) {
	path := writeFile(t, "broken.yaml", "throttle: [unclosed\n")
	if _, _, err := Load(LoadOptions{ConfigFile: path}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_ExplicitEnvFile(t *testing.T) {
	// t.Setenv restores whatever godotenv writes into the process environment.
	t.Setenv("THROTTLE_PERIOD_SECONDS", "")
	_ = os.Unsetenv("THROTTLE_PERIOD_SECONDS")
	path := writeFile(t, "test.env", "THROTTLE_PERIOD_SECONDS=15\n")

	cfg, _, err := Load(LoadOptions{EnvFile: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Throttle.PeriodSeconds != 15 {
		t.Fatalf("expected env file value, got %d", cfg.Throttle.PeriodSeconds)
	}

	if _, _, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "missing.env")}); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestConfig_YAMLRedactsPassword(t *testing.T) {
	cfg := Default()
	cfg.Storage.Redis.Password = "s3cret"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "s3cret") {
		t.Fatalf("password leaked: %s", out)
	}
	if !strings.Contains(string(out), "max_requests: 1000") {
		t.Fatalf("unexpected yaml: %s", out)
	}
}
