package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/cap_test")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("FT_CLIENT_ID", "ft-id")
	t.Setenv("FT_CLIENT_SECRET", "ft-secret")
	t.Setenv("ADZUNA_APP_ID", "adz-id")
	t.Setenv("ADZUNA_APP_KEY", "adz-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "fr", cfg.AdzunaCountry)
	assert.Equal(t, "fra", cfg.OCRLanguage)
	assert.Equal(t, "Paris", cfg.DefaultLocation)
	assert.Equal(t, 1, cfg.RefreshIntervalHours)
	assert.False(t, cfg.ClassifyRetryOther)
}

func TestLoad_MissingRequiredVariable(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("REFRESH_INTERVAL_HOURS", "6")
	t.Setenv("CLASSIFY_RETRY_OTHER", "true")
	t.Setenv("DEFAULT_LOCATION", "Lyon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 6, cfg.RefreshIntervalHours)
	assert.True(t, cfg.ClassifyRetryOther)
	assert.Equal(t, "Lyon", cfg.DefaultLocation)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
}

func TestValidate_BadPort(t *testing.T) {
	cfg := &Config{Port: -1, RefreshIntervalHours: 1}
	assert.Error(t, cfg.Validate())
}
