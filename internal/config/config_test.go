package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("NATS_URL", "")

	cfg := Load()
	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "EDTUBE_MESSAGES", cfg.NATSStream)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("RATE_LIMIT_REQUESTS", "7")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("VIDEO_STEP_DELAY", "0s")
	t.Setenv("ALLOWED_ORIGINS", "http://a, http://b ,")

	cfg := Load()
	assert.Equal(t, "9001", cfg.ServerPort)
	assert.Equal(t, 7, cfg.RateLimitRequests)
	assert.True(t, cfg.TracingEnabled)
	assert.Zero(t, cfg.VideoStepDelay)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "many")
	t.Setenv("SERVER_READ_TIMEOUT", "forever")

	cfg := Load()
	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.Equal(t, 30*time.Second, cfg.ServerReadTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("DEFAULT_LLM", "")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.RateLimitRequests = 0
	cfg.DefaultLLM = "gemini"
	cfg.JWTSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_REQUESTS")
	assert.Contains(t, err.Error(), "DEFAULT_LLM")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
