package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecrets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("PERPLEXITY_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/sonarhub.db", cfg.DBPath)
	assert.Equal(t, 60*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.Chat.RateLimit)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.ChatEnabled())
}

func TestLoad_SecretsFileAndEnvOverride(t *testing.T) {
	path := writeSecrets(t, `
[perplexity_api]
api_key = "pplx-file"

[sonar_data_api]
base_url = "https://sonar.example.com"
api_key = "data-key"
`)
	t.Setenv("SECRETS_FILE", path)
	t.Setenv("PERPLEXITY_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pplx-file", cfg.Perplexity.APIKey)
	assert.Equal(t, "https://sonar.example.com", cfg.SonarDataAPI.BaseURL)
	assert.True(t, cfg.ChatEnabled())

	t.Setenv("PERPLEXITY_API_KEY", "pplx-env")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "pplx-env", cfg.Perplexity.APIKey)
}

func TestLoadSecrets_MissingSectionIsEmpty(t *testing.T) {
	path := writeSecrets(t, "[other]\nvalue = 1\n")
	s, err := LoadSecrets(path)
	require.NoError(t, err)
	assert.Empty(t, s.PerplexityAPIKey)
}

func TestLoadSecrets_Malformed(t *testing.T) {
	path := writeSecrets(t, "[perplexity_api\napi_key = ")
	_, err := LoadSecrets(path)
	assert.Error(t, err)
}

func TestLoad_EnvParsing(t *testing.T) {
	t.Setenv("SECRETS_FILE", "")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("CHAT_RATE_LIMIT", "not-a-number")
	t.Setenv("CONVERSATION_LOG_ENABLED", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10, cfg.Chat.RateLimit)
	assert.True(t, cfg.ConversationLog.Enabled)
}

func TestValidate(t *testing.T) {
	t.Setenv("SECRETS_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.GRPCPort = bad.Port
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Chat.Timeout = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.DBPath = ""
	assert.Error(t, bad.Validate())
}

func TestIsDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg := &Config{FrontendURL: "http://localhost:5173"}
	assert.True(t, cfg.IsDevelopment())

	cfg.FrontendURL = "https://sonar.example.com"
	assert.False(t, cfg.IsDevelopment())

	t.Setenv("APP_ENV", "development")
	assert.True(t, cfg.IsDevelopment())
}
