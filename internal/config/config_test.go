package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "")
	t.Setenv("PG_DSN", "")
	t.Setenv("MIGRATE", "")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, AuthStatic, cfg.AuthMode)
	assert.Equal(t, 10.0, cfg.DefaultRadiusKm)
	assert.Equal(t, 3*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AUTH_MODE", "Firebase")
	t.Setenv("FIREBASE_PROJECT_ID", "roadside-dev")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("NOTIFY_TIMEOUT", "750ms")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, AuthFirebase, cfg.AuthMode)
	assert.Equal(t, "roadside-dev", cfg.FirebaseProjectID)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 750*time.Millisecond, cfg.NotifyTimeout)
}

func TestLoadServerConfigReportsEveryProblem(t *testing.T) {
	t.Setenv("HTTP_WRITE_TIMEOUT", "soon")
	t.Setenv("DEFAULT_RADIUS_KM", "-1")
	t.Setenv("AUTH_MODE", "ldap")
	t.Setenv("MIGRATE", "true")
	t.Setenv("PG_DSN", "")

	_, err := LoadServerConfig()
	require.Error(t, err)
	for _, want := range []string{"HTTP_WRITE_TIMEOUT", "DEFAULT_RADIUS_KM", "AUTH_MODE", "MIGRATE"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_GROUP", "inbox-test")
	t.Setenv("INBOX_SIZE", "20")

	cfg, err := LoadConsumerConfig()
	require.NoError(t, err)
	assert.Equal(t, "inbox-test", cfg.KafkaGroup)
	assert.Equal(t, 20, cfg.InboxSize)

	t.Setenv("INBOX_SIZE", "0")
	_, err = LoadConsumerConfig()
	assert.ErrorContains(t, err, "INBOX_SIZE")
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("ROADSIDE_ROLE", "Provider")
	t.Setenv("CACHE_MAX_STALE", "15m")
	t.Setenv("ROADSIDE_API_URL", "https://api.example.com")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "provider", cfg.Role)
	assert.Equal(t, 15*time.Minute, cfg.MaxStale)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)

	t.Setenv("ROADSIDE_ROLE", "mechanic")
	_, err = LoadClientConfig()
	assert.ErrorContains(t, err, "ROADSIDE_ROLE")
}
