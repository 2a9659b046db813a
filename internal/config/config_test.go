package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.False(t, cfg.BookingAllowPartial)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")

	_, err := Load()
	assert.EqualError(t, err, "DB_DSN is required but not set")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET is required but not set")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("BOOKING_ALLOW_PARTIAL", "true")
	t.Setenv("RECONCILE_INTERVAL", "1m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("TIMEZONE", "Europe/Moscow")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.BookingAllowPartial)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone.String())
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("BCRYPT_COST", "ten")

	_, err := Load()
	assert.Error(t, err)
}
