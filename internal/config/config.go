// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database settings. Empty disables the execution result sink.
	DatabaseURL string

	// Execution context middleware settings.
	RepoName         string // repo name for repo-level execution spans
	ExecutionEnforce bool   // reject requests missing execution headers

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Rate limiting (per client IP, intake endpoints only).
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("OBSERVATORY_PORT", 8080),
		ReadTimeout:         envDuration("OBSERVATORY_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("OBSERVATORY_WRITE_TIMEOUT", 30*time.Second),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		RepoName:            envStr("OBSERVATORY_REPO_NAME", "llm-observatory"),
		ExecutionEnforce:    envBool("OBSERVATORY_EXECUTION_ENFORCE", true),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "observatory"),
		RateLimitEnabled:    envBool("OBSERVATORY_RATE_LIMIT_ENABLED", false),
		RateLimitRPS:        envFloat("OBSERVATORY_RATE_LIMIT_RPS", 50),
		RateLimitBurst:      envInt("OBSERVATORY_RATE_LIMIT_BURST", 100),
		LogLevel:            envStr("OBSERVATORY_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("OBSERVATORY_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.RepoName == "" {
		return fmt.Errorf("config: OBSERVATORY_REPO_NAME is required")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: OBSERVATORY_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: rate limit RPS and burst must be positive when enabled")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
