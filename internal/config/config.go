package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort               = "8080"
	defaultDatabaseURL        = "novelistan.db"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultUploadsDir         = "uploads"
	defaultStorageBackend     = BackendLocal
	defaultManuscriptMaxBytes = 20 * 1024 * 1024
	defaultImageMaxBytes      = 5 * 1024 * 1024
	defaultRemoteFetchTimeout = "15s"
	defaultUploadRate         = 30
	defaultJanitorSchedule    = "@every 15m"
	defaultPartialMaxAge      = "1h"
	defaultAvatarURL          = "https://www.gravatar.com/avatar/00000000000000000000000000000000?d=mp&f=y"
	defaultLogLevel           = "info"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type AppConfig struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	UploadsDir         string
	StorageBackend     string
	ManuscriptMaxBytes int64
	ImageMaxBytes      int64

	// BlobBaseURL is the public container the gateway falls back to when a file
	// is missing from local disk, e.g. https://acct.blob.core.windows.net/uploads.
	BlobBaseURL        string
	BlobPublicURL      string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	RemoteFetchTimeout time.Duration
	RedirectCategories []string

	CORSAllowedOrigins  []string
	UploadRatePerMinute int
	JanitorSchedule     string
	PartialMaxAge       time.Duration
	DefaultAvatarURL    string
	MetricsEnabled      bool

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the current process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	cfg.UploadsDir = strings.TrimSpace(getEnv("UPLOADS_DIR", defaultUploadsDir))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", defaultStorageBackend)))
	cfg.BlobBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BLOB_BASE_URL")), "/")
	cfg.BlobPublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BLOB_PUBLIC_URL")), "/")
	cfg.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	cfg.S3Region = strings.TrimSpace(getEnv("S3_REGION", "us-east-1"))
	cfg.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	cfg.S3AccessKeyID = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID"))
	cfg.S3SecretAccessKey = strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY"))
	cfg.RedirectCategories = splitList(os.Getenv("FILES_REDIRECT_CATEGORIES"))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.JanitorSchedule = strings.TrimSpace(getEnv("JANITOR_SCHEDULE", defaultJanitorSchedule))
	cfg.DefaultAvatarURL = strings.TrimSpace(getEnv("DEFAULT_AVATAR_URL", defaultAvatarURL))
	cfg.MetricsEnabled = parseBoolEnv("METRICS_ENABLED", "true")

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	cfg.LogCompress = parseBoolEnv("LOG_COMPRESS", "false")

	var err error
	if cfg.ManuscriptMaxBytes, err = parseInt64Env("MANUSCRIPT_MAX_BYTES", defaultManuscriptMaxBytes); err != nil {
		return nil, err
	}
	if cfg.ImageMaxBytes, err = parseInt64Env("IMAGE_MAX_BYTES", defaultImageMaxBytes); err != nil {
		return nil, err
	}
	if cfg.RemoteFetchTimeout, err = parseDurationEnv("REMOTE_FETCH_TIMEOUT", defaultRemoteFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.PartialMaxAge, err = parseDurationEnv("PARTIAL_MAX_AGE", defaultPartialMaxAge); err != nil {
		return nil, err
	}
	if cfg.UploadRatePerMinute, err = parseIntEnv("UPLOAD_RATE_PER_MINUTE", defaultUploadRate); err != nil {
		return nil, err
	}
	if cfg.LogMaxSizeMB, err = parseIntEnv("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.LogMaxBackups, err = parseIntEnv("LOG_MAX_BACKUPS", 3); err != nil {
		return nil, err
	}
	if cfg.LogMaxAgeDays, err = parseIntEnv("LOG_MAX_AGE_DAYS", 7); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether internal error details must be hidden from clients.
func (c *AppConfig) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.UploadsDir == "" {
		return fmt.Errorf("UPLOADS_DIR must not be empty")
	}
	if cfg.ManuscriptMaxBytes <= 0 {
		return fmt.Errorf("MANUSCRIPT_MAX_BYTES must be > 0")
	}
	if cfg.ImageMaxBytes <= 0 {
		return fmt.Errorf("IMAGE_MAX_BYTES must be > 0")
	}
	if cfg.RemoteFetchTimeout <= 0 {
		return fmt.Errorf("REMOTE_FETCH_TIMEOUT must be > 0")
	}
	if cfg.PartialMaxAge <= 0 {
		return fmt.Errorf("PARTIAL_MAX_AGE must be > 0")
	}
	if cfg.UploadRatePerMinute < 0 {
		return fmt.Errorf("UPLOAD_RATE_PER_MINUTE must be >= 0")
	}

	switch cfg.StorageBackend {
	case BackendLocal:
	case BackendS3:
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
		if (cfg.S3AccessKeyID == "") != (cfg.S3SecretAccessKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: local, s3")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseInt64Env(name string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseIntEnv(name string, fallback int) (int, error) {
	n, err := parseInt64Env(name, int64(fallback))
	return int(n), err
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
