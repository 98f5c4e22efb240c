// Package config provides configuration loading for the quickMARC service.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads .env and .env.local when present. godotenv.Load does not
// override variables that are already set, so the OS environment wins.
func init() {
	// Load .env file if it exists (for shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (for local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the quickMARC service.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	LogFormat   string // json or text
	DatabaseDSN string // PostgreSQL connection string; empty selects the in-memory store
	NATSURL     string // NATS server URL; empty disables record events
	S3Endpoint  string // S3-compatible endpoint for MARC exports
	S3Region    string // S3 region
	S3Bucket    string // S3 bucket name
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key

	// Read cache
	CacheSize int           // Maximum cached parsed records
	CacheTTL  time.Duration // Lifetime of a cached record

	// Validate request and stored content against the JSON schemas
	ValidateContent bool

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort      = "8081"
	defaultS3Region  = "us-east-1"
	defaultEnv       = "dev"
	defaultLogFormat = "json"
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// Load reads environment variables and produces a Config suitable for wiring the service.
// Malformed numeric, boolean or duration values are reported as errors.
func Load() (Config, error) {
	cfg := Config{
		Env:         getEnv("QM_ENV", defaultEnv),
		Port:        getEnv("QM_PORT", defaultPort),
		LogFormat:   strings.ToLower(getEnv("QM_LOG_FORMAT", defaultLogFormat)),
		DatabaseDSN: os.Getenv("QM_DB_DSN"),
		NATSURL:     os.Getenv("QM_NATS_URL"),
		S3Endpoint:  os.Getenv("QM_S3_ENDPOINT"),
		S3Region:    getEnv("QM_S3_REGION", defaultS3Region),
		S3Bucket:    os.Getenv("QM_S3_BUCKET"),
		S3AccessKey: os.Getenv("QM_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("QM_S3_SECRET_KEY"),
	}

	var err error
	if cfg.CacheSize, err = getEnvInt("QM_CACHE_SIZE", defaultCacheSize); err != nil {
		return cfg, err
	}
	if cfg.CacheSize < 0 {
		return cfg, fmt.Errorf("QM_CACHE_SIZE must not be negative, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL, err = getEnvDuration("QM_CACHE_TTL", defaultCacheTTL); err != nil {
		return cfg, err
	}
	if cfg.ValidateContent, err = getEnvBool("QM_VALIDATE_CONTENT", true); err != nil {
		return cfg, err
	}

	// Handle CORS configuration
	if corsOrigins, exists := os.LookupEnv("QM_CORS_ALLOWED_ORIGINS"); exists && corsOrigins != "" {
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return cfg, fmt.Errorf("QM_LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// ExportEnabled reports whether MARC exports to object storage are configured.
func (c Config) ExportEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
