package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RepoURL      string        `yaml:"repo_url"`
	CachePath    string        `yaml:"cache_path"`
	FetchRate    float64       `yaml:"fetch_rate"`
	FetchBurst   int           `yaml:"fetch_burst"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	UserAgent    string        `yaml:"user_agent"`

	StatsDir string `yaml:"stats_dir"`

	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`

	PostgresEnabled  bool   `yaml:"postgres_enabled"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresDatabase string `yaml:"postgres_database"`
	PostgresSSLMode  string `yaml:"postgres_ssl_mode"`

	ListenAddr      string        `yaml:"listen_addr"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Load() *Config {
	return &Config{
		RepoURL:          getEnv("REPO_URL", "https://dl.flathub.org/repo"),
		CachePath:        getEnv("CACHE_PATH", "commit-cache.json"),
		FetchRate:        getEnvFloat("FETCH_RATE", 20),
		FetchBurst:       getEnvInt("FETCH_BURST", 5),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 0),
		UserAgent:        getEnv("FETCH_USER_AGENT", "flathub-stats/1.0"),
		StatsDir:         getEnv("STATS_DIR", ""),
		S3Region:         getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3AccessKey:      getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresUser:     getEnv("POSTGRES_USER", "stats"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDatabase: getEnv("POSTGRES_DATABASE", "flathub_stats"),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		RateLimit:        getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.RepoURL == "" {
		return fmt.Errorf("repo_url must not be empty")
	}
	if !strings.HasPrefix(c.RepoURL, "http://") && !strings.HasPrefix(c.RepoURL, "https://") {
		return fmt.Errorf("repo_url must be an http(s) URL: %q", c.RepoURL)
	}
	if c.FetchRate < 0 {
		return fmt.Errorf("fetch_rate must not be negative")
	}
	if c.FetchBurst < 1 {
		c.FetchBurst = 1
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
