package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Insights InsightConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// InsightConfig holds the hosting framework's insight settings.
type InsightConfig struct {
	SourceModel   string
	DefaultPeriod time.Duration
	CalendarFile  string // optional YAML market calendar
}

// MetricsConfig controls Prometheus metric output.
type MetricsConfig struct {
	Namespace string
	File      string // text exposition output; empty disables
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

const (
	defaultSourceModel = "manual"
	defaultPeriod      = time.Hour
	defaultNamespace   = "insights"
	defaultLogFormat   = "json"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	cfg := Config{
		Insights: InsightConfig{
			SourceModel:   getEnv("INSIGHT_SOURCE_MODEL", defaultSourceModel),
			DefaultPeriod: defaultPeriod,
			CalendarFile:  os.Getenv("CALENDAR_FILE"),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", defaultNamespace),
			File:      os.Getenv("METRICS_FILE"),
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
	}

	if v := os.Getenv("INSIGHT_DEFAULT_PERIOD_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INSIGHT_DEFAULT_PERIOD_SECONDS: %w", err)
		}
		cfg.Insights.DefaultPeriod = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
