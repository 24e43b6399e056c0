package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for listing images.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig is shared by the cache and the task queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds the event bus connection. An empty URL keeps realtime fan-out in-process.
type NATSConfig struct {
	URL string
}

// AuthConfig holds JWT and one-time token settings.
type AuthConfig struct {
	JWTSecret        string
	AccessTTL        time.Duration
	VerifyTokenTTL   time.Duration
	ResetTokenTTL    time.Duration
	BcryptCost       int
	AuthRateLimitMax int
}

// MinJWTSecretLen is the shortest HS256 key the API accepts.
const MinJWTSecretLen = 32

// ErrWeakJWTSecret is returned by Validate when JWT_SECRET is unset or too short.
var ErrWeakJWTSecret = errors.New("JWT_SECRET must be at least 32 bytes")

// Validate rejects settings that would let anyone mint tokens.
func (c AuthConfig) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLen {
		return ErrWeakJWTSecret
	}
	return nil
}

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SiteConfig holds public URLs used when building links in emails and notifications.
type SiteConfig struct {
	PublicURL    string
	AdminBaseURL string
}

// WorkerConfig holds background task settings.
type WorkerConfig struct {
	Concurrency    int
	TokenSweepCron string
	// MetricsPort serves /metrics from the worker. Empty disables it.
	MetricsPort string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	LogLevel       string
	Timezone       string
	Database       DatabaseConfig
	MinIO          MinIOConfig
	Redis          RedisConfig
	NATS           NATSConfig
	Auth           AuthConfig
	SMTP           SMTPConfig
	Site           SiteConfig
	Worker         WorkerConfig
	ListingTTL     time.Duration
	MaxImageBytes  int64
	ProfanityExtra []string
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TZ_NAME", "Asia/Yekaterinburg"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "listing-images"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			AccessTTL:        getEnvDuration("JWT_ACCESS_TTL", 24*time.Hour),
			VerifyTokenTTL:   getEnvDuration("VERIFY_TOKEN_TTL", 72*time.Hour),
			ResetTokenTTL:    getEnvDuration("RESET_TOKEN_TTL", 30*time.Minute),
			BcryptCost:       getEnvInt("BCRYPT_COST", 12),
			AuthRateLimitMax: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 20),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@sunny-ekb.ru"),
		},
		Site: SiteConfig{
			PublicURL:    strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
			AdminBaseURL: strings.TrimRight(getEnv("ADMIN_BASE_URL", "http://localhost:8080/admin"), "/"),
		},
		Worker: WorkerConfig{
			Concurrency:    getEnvInt("WORKER_CONCURRENCY", 5),
			TokenSweepCron: getEnv("TOKEN_SWEEP_CRON", "@every 1h"),
			MetricsPort:    getEnv("WORKER_METRICS_PORT", "9091"),
		},
		ListingTTL:     getEnvDuration("LISTING_CACHE_TTL", time.Hour),
		MaxImageBytes:  int64(getEnvInt("MAX_IMAGE_BYTES", 5<<20)),
		ProfanityExtra: getEnvList("PROFANITY_EXTRA_WORDS"),
	}
}

// Location resolves Timezone, falling back to UTC when the zone database lacks it.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
