package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:3000", cfg.UpstreamOrigin)
	assert.Equal(t, "v1.0", cfg.CacheVersion)
	assert.Equal(t, "emergency-response", cfg.CachePrefix)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, []string{"firebase", "googleapis", "africastalking"}, cfg.APIHostPatterns)
	assert.Equal(t, []string{"/api/", "/auth/"}, cfg.APIPathPrefixes)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 24*time.Hour, cfg.NotificationMaxAge)
	assert.Equal(t, "@every 1h", cfg.NotificationSweepSchedule)
	assert.Equal(t, 30*time.Second, cfg.SyncRetryInterval)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 1000, cfg.GeocodeCacheSize)
	assert.False(t, cfg.FirestoreEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("UPSTREAM_ORIGIN", "https://app.example.org/")
	t.Setenv("CACHE_VERSION", "v2.1")
	t.Setenv("CACHE_BACKEND", "REDIS")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("API_HOST_PATTERNS", "firebase, example-api ,")
	t.Setenv("NOTIFICATION_MAX_AGE", "12h")
	t.Setenv("SYNC_RETRY_INTERVAL", "5s")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("FIREBASE_CREDENTIALS", "e30=")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "https://app.example.org", cfg.UpstreamOrigin)
	assert.Equal(t, "v2.1", cfg.CacheVersion)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"firebase", "example-api"}, cfg.APIHostPatterns)
	assert.Equal(t, 12*time.Hour, cfg.NotificationMaxAge)
	assert.Equal(t, 5*time.Second, cfg.SyncRetryInterval)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.FirestoreEnabled())
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"SHUTDOWN_TIMEOUT", "FETCH_TIMEOUT", "NOTIFICATION_MAX_AGE", "SYNC_RETRY_INTERVAL", "SESSION_TTL"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "-1s")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}

func TestLoad_InvalidUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_ORIGIN", "localhost:3000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_ORIGIN")
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}
