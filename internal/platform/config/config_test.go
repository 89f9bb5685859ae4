package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestConfigLoad_UsesDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "READ_HEADER_TIMEOUT", "READ_TIMEOUT", "WRITE_TIMEOUT",
		"STORAGE_DRIVER", "SLUG_LENGTH", "SLUG_MAX_ATTEMPTS", "ANALYTICS_BATCH_SIZE", "ANALYTICS_FLUSH_INTERVAL", "TIMEZONE"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Addr != ":9999" {
		t.Fatalf("Addr: got %q, want %q", cfg.Addr, ":9999")
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("IdleTimeout: got %v, want %v", cfg.IdleTimeout, 60*time.Second)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout: got %v, want %v", cfg.ShutdownTimeout, 10*time.Second)
	}
	if cfg.StorageDriver != StorageDriverPostgres {
		t.Fatalf("StorageDriver: got %q", cfg.StorageDriver)
	}
	if cfg.SlugLength != 6 || cfg.SlugMaxAttempts != 5 {
		t.Fatalf("slug: got length %d attempts %d", cfg.SlugLength, cfg.SlugMaxAttempts)
	}
	if cfg.AnalyticsBatchSize != 100 || cfg.AnalyticsFlushInterval != time.Second {
		t.Fatalf("analytics: got batch %d interval %v", cfg.AnalyticsBatchSize, cfg.AnalyticsFlushInterval)
	}
	if cfg.Location() != time.Local {
		t.Fatalf("Location: got %v, want Local", cfg.Location())
	}
}

func TestConfigLoad_ReadsEnv(t *testing.T) {
	t.Setenv("ADDR", ":18080")
	t.Setenv("IDLE_TIMEOUT", "2m")
	t.Setenv("WRITE_TIMEOUT", "6s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("SLUG_LENGTH", "8")
	t.Setenv("SLUG_MAX_ATTEMPTS", "3")
	t.Setenv("BLOOM_ENABLED", "false")
	t.Setenv("ANALYTICS_FLUSH_INTERVAL", "250ms")
	t.Setenv("TIMEZONE", "Asia/Shanghai")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PUBLIC_BASE_URL", "https://lp.example/")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg := Load()

	if cfg.Addr != ":18080" {
		t.Fatalf("Addr: got %q, want %q", cfg.Addr, ":18080")
	}
	if cfg.IdleTimeout != 2*time.Minute {
		t.Fatalf("IdleTimeout: got %v, want %v", cfg.IdleTimeout, 2*time.Minute)
	}
	if cfg.WriteTimeout != 6*time.Second {
		t.Fatalf("WriteTimeout: got %v, want %v", cfg.WriteTimeout, 6*time.Second)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel: got %v", cfg.LogLevel)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Fatalf("StorageDriver: got %q", cfg.StorageDriver)
	}
	if cfg.SlugLength != 8 || cfg.SlugMaxAttempts != 3 || cfg.BloomEnabled {
		t.Fatalf("slug: got %d %d %v", cfg.SlugLength, cfg.SlugMaxAttempts, cfg.BloomEnabled)
	}
	if cfg.AnalyticsFlushInterval != 250*time.Millisecond {
		t.Fatalf("AnalyticsFlushInterval: got %v", cfg.AnalyticsFlushInterval)
	}
	if loc := cfg.Location(); loc.String() != "Asia/Shanghai" {
		t.Fatalf("Location: got %v", loc)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers: got %v", cfg.KafkaBrokers)
	}
	if cfg.PublicBaseURL != "https://lp.example" {
		t.Fatalf("PublicBaseURL: got %q", cfg.PublicBaseURL)
	}
	if cfg.TraceSampleRatio != 0.25 {
		t.Fatalf("TraceSampleRatio: got %v", cfg.TraceSampleRatio)
	}
}

func TestConfigLoad_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("IDLE_TIMEOUT", "soon")
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("SLUG_LENGTH", "2")
	t.Setenv("SLUG_MAX_ATTEMPTS", "-1")
	t.Setenv("TRACE_SAMPLE_RATIO", "2")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	cfg := Load()

	if cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("IdleTimeout: got %v", cfg.IdleTimeout)
	}
	if cfg.StorageDriver != StorageDriverPostgres {
		t.Fatalf("StorageDriver: got %q", cfg.StorageDriver)
	}
	if cfg.SlugLength != 6 || cfg.SlugMaxAttempts != 5 {
		t.Fatalf("slug: got %d %d", cfg.SlugLength, cfg.SlugMaxAttempts)
	}
	if cfg.TraceSampleRatio != 1 {
		t.Fatalf("TraceSampleRatio: got %v", cfg.TraceSampleRatio)
	}
	if cfg.Location() != time.Local {
		t.Fatalf("Location: got %v", cfg.Location())
	}
}
