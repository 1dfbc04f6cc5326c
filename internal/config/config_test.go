package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.FallbackEnabled)
	assert.Equal(t, int64(5242880), cfg.MaxImageBytes)
	assert.Equal(t, StoreMemory, cfg.ResultStore)
	assert.Equal(t, 15*time.Minute, cfg.ResultTTL)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.VisionModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.TextModel)
	assert.Equal(t, int64(500), cfg.OpenAI.MaxTokens)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FALLBACK_ENABLED", "false")
	t.Setenv("PROVIDER_TIMEOUT", "15s")
	t.Setenv("RESULT_STORE", " Redis ")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("OPENAI_MAX_TOKENS", "800")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, StoreRedis, cfg.ResultStore)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "g-key", cfg.Gemini.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, int64(800), cfg.OpenAI.MaxTokens)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.VisionModel, "unset fields keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_ParseError(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "PORT"},
		{"bad image limit", func(c *Config) { c.MaxImageBytes = -1 }, "MAX_IMAGE_BYTES"},
		{"bad timeout", func(c *Config) { c.ProviderTimeout = 0 }, "PROVIDER_TIMEOUT"},
		{"bad ttl", func(c *Config) { c.ResultTTL = 0 }, "RESULT_TTL"},
		{"bad tokens", func(c *Config) { c.OpenAI.MaxTokens = 0 }, "OPENAI_MAX_TOKENS"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"unknown store", func(c *Config) { c.ResultStore = "postgres" }, "RESULT_STORE"},
		{"dynamo without table", func(c *Config) { c.ResultStore = StoreDynamoDB }, "RESULT_TABLE_NAME"},
		{"redis without addr", func(c *Config) { c.ResultStore = StoreRedis; c.Redis.Addr = "" }, "REDIS_ADDR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_MissingKeysAreAllowed(t *testing.T) {
	cfg := Defaults()
	cfg.Gemini.APIKey = ""
	cfg.OpenAI.APIKey = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PE_DOTENV_CHECK", "")
	os.Unsetenv("PE_DOTENV_CHECK")

	valid := filepath.Join(dir, "valid.env")
	require.NoError(t, os.WriteFile(valid, []byte("PE_DOTENV_CHECK=from-file\n"), 0o600))
	assert.True(t, loadDotEnv(valid))
	assert.Equal(t, "from-file", os.Getenv("PE_DOTENV_CHECK"))

	assert.False(t, loadDotEnv(filepath.Join(dir, "missing.env")), "missing file is skipped")

	malformed := filepath.Join(dir, "malformed.env")
	require.NoError(t, os.WriteFile(malformed, []byte("BAD-KEY=1\n"), 0o600))
	assert.False(t, loadDotEnv(malformed), "unparseable file is skipped")
}
