package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("ADMIN_BASE_URL", "https://sunny-ekb.ru/admin/")
	t.Setenv("PROFANITY_EXTRA_WORDS", "spam, , scam")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, "https://sunny-ekb.ru/admin", cfg.Site.AdminBaseURL)
	assert.Equal(t, []string{"spam", "scam"}, cfg.ProfanityExtra)
	assert.Equal(t, "", cfg.NATS.URL)
}

func TestLocation(t *testing.T) {
	cfg := &AppConfig{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "value")

	assert.Equal(t, "value", getEnv("TEST_ENV_VAR", "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	t.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	t.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	t.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	t.Setenv(key, "")
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	t.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	t.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"

	t.Setenv(key, "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration(key, time.Minute))

	t.Setenv(key, "-5s")
	assert.Equal(t, time.Minute, getEnvDuration(key, time.Minute))

	t.Setenv(key, "soon")
	assert.Equal(t, time.Minute, getEnvDuration(key, time.Minute))
}

func TestAuthConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, AuthConfig{}.Validate(), ErrWeakJWTSecret)
	assert.ErrorIs(t, AuthConfig{JWTSecret: "short"}.Validate(), ErrWeakJWTSecret)
	assert.NoError(t, AuthConfig{JWTSecret: strings.Repeat("k", MinJWTSecretLen)}.Validate())
}
