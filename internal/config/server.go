// Package config provides configuration management for Warden.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server configuration. Values come from an optional YAML
// file with environment variables overriding file values.
type ServerConfig struct {
	Environment Environment `yaml:"environment"`
	ListenAddr  string      `yaml:"listen_addr"`
	DatabaseURL string      `yaml:"database_url"`
	// RedisURL enables the shared rate-limit store when set; otherwise an
	// in-memory store is used.
	RedisURL string `yaml:"redis_url"`
	// AdminTokenSecret signs admin bearer tokens. Required outside
	// development.
	AdminTokenSecret string `yaml:"admin_token_secret"`
	// AdminTokenTTL is set via ADMIN_TOKEN_TTL_HOURS.
	AdminTokenTTL time.Duration `yaml:"-"`
	// RateLimit is the request budget per window for validation and auth
	// endpoints, in limiter notation (e.g. "100-M").
	RateLimit string `yaml:"rate_limit"`
	// MetricRetentionDays bounds how long telemetry rows are kept. Alert and
	// license state is never swept.
	MetricRetentionDays int `yaml:"metric_retention_days"`
	// RetentionSchedule is the cron expression for the retention sweeper.
	RetentionSchedule string `yaml:"retention_schedule"`
	LogLevel          string `yaml:"log_level"`
}

// defaults returns the baseline configuration before file and env overrides.
func defaults() ServerConfig {
	return ServerConfig{
		Environment:         EnvDevelopment,
		ListenAddr:          ":8080",
		AdminTokenTTL:       12 * time.Hour,
		RateLimit:           "100-M",
		MetricRetentionDays: 90,
		RetentionSchedule:   "0 3 * * *",
		LogLevel:            "info",
	}
}

// LoadServerConfig builds the server configuration. When path is non-empty
// the YAML file at that location is read first; environment variables then
// override any value.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if env := Environment(os.Getenv("ENV")); env != "" {
		cfg.Environment = env
	}
	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		cfg.Environment = EnvDevelopment
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.AdminTokenSecret = getEnv("ADMIN_TOKEN_SECRET", cfg.AdminTokenSecret)
	cfg.RateLimit = getEnv("RATE_LIMIT", cfg.RateLimit)
	cfg.RetentionSchedule = getEnv("RETENTION_SCHEDULE", cfg.RetentionSchedule)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricRetentionDays = getEnvInt("METRIC_RETENTION_DAYS", cfg.MetricRetentionDays)
	if ttl := getEnvInt("ADMIN_TOKEN_TTL_HOURS", 0); ttl > 0 {
		cfg.AdminTokenTTL = time.Duration(ttl) * time.Hour
	}

	if cfg.MetricRetentionDays <= 0 {
		cfg.MetricRetentionDays = 90
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AdminTokenSecret == "" && cfg.Environment != EnvDevelopment {
		return cfg, fmt.Errorf("ADMIN_TOKEN_SECRET is required in %s", cfg.Environment)
	}

	return cfg, nil
}

// getEnv reads a string from an environment variable, returning the default
// if unset.
func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable, returning the
// default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
