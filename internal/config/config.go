// Package config loads application configuration from environment
// variables, with an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"crypto-vol-lab/internal/quality"
)

// Config holds all configuration for the application. Only this
// package reads environment variables.
type Config struct {
	Env string // development, staging, production

	// Storage
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	// Extraction
	API      APIConfig
	Assets   []string
	Backfill time.Duration
	Interval string

	// Quality gate
	Quality QualityConfig

	// Pipeline
	TargetHorizonHours int
	OutputDir          string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsAddr string
}

// APIConfig holds the market-data REST API configuration.
type APIConfig struct {
	BaseURL        string
	Key            string
	RequestsPerSec float64
	WSEndpoint     string
}

// QualityConfig holds gate threshold overrides.
type QualityConfig struct {
	MinRows              int
	NullThreshold        float64
	MaxAgeHours          float64
	OutlierMultiplier    float64
	MaxOutlierFraction   float64
	MaxDuplicateFraction float64
	FreshnessAdvisory    bool
}

// Load reads configuration from environment variables. A .env file in
// the current directory or next to the executable is loaded first.
func Load() (*Config, error) {
	loadEnvFile()

	defaults := quality.DefaultConfig()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		UseMemory:     getEnvAsBool("USE_MEMORY", false),

		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "https://api.coincap.io/v2"),
			Key:            getEnv("API_KEY", ""),
			RequestsPerSec: getEnvAsFloat("API_REQUESTS_PER_SEC", 5),
			WSEndpoint:     getEnv("WS_ENDPOINT", ""),
		},
		Assets:   getEnvAsList("ASSETS", []string{"bitcoin"}),
		Backfill: getEnvAsDuration("BACKFILL", 30*24*time.Hour),
		Interval: getEnv("API_INTERVAL", "m5"),

		Quality: QualityConfig{
			MinRows:              getEnvAsInt("QUALITY_MIN_ROWS", defaults.MinRows),
			NullThreshold:        getEnvAsFloat("QUALITY_NULL_THRESHOLD", defaults.NullThreshold),
			MaxAgeHours:          getEnvAsFloat("QUALITY_MAX_AGE_HOURS", defaults.MaxAgeHours),
			OutlierMultiplier:    getEnvAsFloat("QUALITY_OUTLIER_MULTIPLIER", defaults.OutlierMultiplier),
			MaxOutlierFraction:   getEnvAsFloat("QUALITY_MAX_OUTLIER_FRACTION", defaults.MaxOutlierFraction),
			MaxDuplicateFraction: getEnvAsFloat("QUALITY_MAX_DUPLICATE_FRACTION", defaults.MaxDuplicateFraction),
			FreshnessAdvisory:    getEnvAsBool("QUALITY_FRESHNESS_ADVISORY", false),
		},

		TargetHorizonHours: getEnvAsInt("TARGET_HORIZON_HOURS", 1),
		OutputDir:          getEnv("OUTPUT_DIR", "reports"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// QualityGateConfig converts the threshold overrides into the quality
// gate's own config type.
func (c *Config) QualityGateConfig() quality.Config {
	gate := quality.DefaultConfig()
	gate.MinRows = c.Quality.MinRows
	gate.NullThreshold = c.Quality.NullThreshold
	gate.MaxAgeHours = c.Quality.MaxAgeHours
	gate.OutlierMultiplier = c.Quality.OutlierMultiplier
	gate.MaxOutlierFraction = c.Quality.MaxOutlierFraction
	gate.MaxDuplicateFraction = c.Quality.MaxDuplicateFraction
	gate.FreshnessAdvisory = c.Quality.FreshnessAdvisory
	return gate
}

func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("ASSETS must list at least one asset")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY=true")
	}
	if c.TargetHorizonHours <= 0 {
		return fmt.Errorf("TARGET_HORIZON_HOURS must be positive")
	}
	return nil
}

// loadEnvFile tries to load .env from the working directory, then next
// to the executable.
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
