package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := append(append([]string{}, REQUIRED_ENV...), POSTGRES_ENV...)
	keys = append(keys, "DATABASE_URL", "UPLOAD_DIR", "CORS_ORIGINS", "INATURALIST_URL",
		"TAXON_NAME", "SESSION_SECURE", "LOG_LEVEL", "APP_ENV", "MAPS_API_KEY", "METRICS_ADDR")
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"ADDR", "REDIS_HOST", "REDIS_PORT", "POSTGRES_HOST", "POSTGRES_DB"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoad_DatabaseURLReplacesPostgresParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":8080")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/fireflies")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/fireflies", cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, "Lampyridae", cfg.TaxonName)
	assert.Equal(t, "https://api.inaturalist.org/v1", cfg.INaturalistURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.SessionSecure)
	assert.False(t, cfg.Production())
	assert.Empty(t, cfg.MetricsAddr, "metrics share the main listener by default")
}

func TestLoad_BuildsPostgresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":8080")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("POSTGRES_USER", "firefly")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("POSTGRES_DB", "fireflies")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("INATURALIST_URL", "http://feed.test/v1/")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.DatabaseURL, "postgres://firefly:s3cret@db:5432/fireflies")
	assert.Contains(t, cfg.DatabaseURL, "sslmode=disable")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "http://feed.test/v1", cfg.INaturalistURL)
	assert.True(t, cfg.Production())

	assert.NotContains(t, cfg.String(), "s3cret")
}
