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

// Config holds all process settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Cache strategy engine.
	UpstreamOrigin  string
	CacheVersion    string
	CachePrefix     string
	CacheBackend    string
	APIHostPatterns []string
	APIPathPrefixes []string
	FetchTimeout    time.Duration

	RedisAddr string
	RedisPass string
	RedisDB   int

	// Notifications and offline replay.
	NotificationMaxAge        time.Duration
	NotificationSweepSchedule string
	SyncRetryInterval         time.Duration
	SessionTTL                time.Duration

	// Backend collaborators. Empty credentials disable the integration.
	FirebaseCredentials string
	FirebaseProjectID   string
	MapsAPIKey          string
	GeocodeCacheSize    int

	KafkaBrokers   []string
	KafkaPushTopic string
	KafkaGroupID   string
}

// Load reads configuration from the environment, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	maxAge, err := parseDuration("NOTIFICATION_MAX_AGE", "24h")
	if err != nil {
		return nil, err
	}
	retry, err := parseDuration("SYNC_RETRY_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration("SESSION_TTL", "10m")
	if err != nil {
		return nil, err
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("invalid REDIS_DB")
		}
		redisDB = n
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		UpstreamOrigin:  strings.TrimRight(envOrDefault("UPSTREAM_ORIGIN", "http://localhost:3000"), "/"),
		CacheVersion:    envOrDefault("CACHE_VERSION", "v1.0"),
		CachePrefix:     envOrDefault("CACHE_PREFIX", "emergency-response"),
		CacheBackend:    strings.ToLower(envOrDefault("CACHE_BACKEND", "memory")),
		APIHostPatterns: splitList(envOrDefault("API_HOST_PATTERNS", "firebase,googleapis,africastalking")),
		APIPathPrefixes: splitList(envOrDefault("API_PATH_PREFIXES", "/api/,/auth/")),
		FetchTimeout:    fetchTimeout,

		RedisAddr: envOrDefault("REDIS_HOST", "127.0.0.1") + ":" + envOrDefault("REDIS_PORT", "6379"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   redisDB,

		NotificationMaxAge:        maxAge,
		NotificationSweepSchedule: envOrDefault("NOTIFICATION_SWEEP_SCHEDULE", "@every 1h"),
		SyncRetryInterval:         retry,
		SessionTTL:                sessionTTL,

		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS"),
		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		MapsAPIKey:          os.Getenv("MAPS_CREDENTIALS"),
		GeocodeCacheSize:    parsePositiveInt("GEOCODE_CACHE_SIZE", 1000),

		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaPushTopic: envOrDefault("KAFKA_PUSH_TOPIC", "push-payloads"),
		KafkaGroupID:   envOrDefault("KAFKA_GROUP_ID", "go-lifeline"),
	}

	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if cfg.CacheVersion == "" {
		return nil, errors.New("CACHE_VERSION is required")
	}
	if !strings.HasPrefix(cfg.UpstreamOrigin, "http://") && !strings.HasPrefix(cfg.UpstreamOrigin, "https://") {
		return nil, fmt.Errorf("invalid UPSTREAM_ORIGIN %q", cfg.UpstreamOrigin)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaPushTopic == "" {
		return nil, errors.New("KAFKA_PUSH_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// FirestoreEnabled reports whether backend credentials were supplied.
func (c *Config) FirestoreEnabled() bool { return c.FirebaseCredentials != "" }

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
