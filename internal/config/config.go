// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	GRPCPort       string
	FrontendURL    string
	DBPath         string
	SessionTTL     time.Duration
	RenderCacheTTL time.Duration
	MaxUploadBytes int64

	Chat            ChatConfig
	Perplexity      PerplexityConfig
	SonarDataAPI    SonarDataAPIConfig
	ConversationLog ConversationLogConfig
}

// ChatConfig controls chat throttling and timeouts.
type ChatConfig struct {
	RateLimit  int
	RateWindow time.Duration
	Timeout    time.Duration
}

// PerplexityConfig holds completion API settings. An empty APIKey disables
// chat.
type PerplexityConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// SonarDataAPIConfig is a placeholder for an external scan data source. It is
// read and reported but not called.
type SonarDataAPIConfig struct {
	BaseURL string
	APIKey  string
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables and the secrets file.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", ""),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/sonarhub.db"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 60*time.Minute),
		RenderCacheTTL: getEnvDuration("RENDER_CACHE_TTL", 10*time.Minute),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		Chat: ChatConfig{
			RateLimit:  getEnvInt("CHAT_RATE_LIMIT", 10),
			RateWindow: getEnvDuration("CHAT_RATE_WINDOW", time.Minute),
			Timeout:    getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		},
		Perplexity: PerplexityConfig{
			BaseURL: getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
			Model:   getEnv("PERPLEXITY_MODEL", "sonar-pro"),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	secrets, err := LoadSecrets(getEnv("SECRETS_FILE", "secrets.toml"))
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	cfg.Perplexity.APIKey = secrets.PerplexityAPIKey
	cfg.SonarDataAPI = SonarDataAPIConfig{BaseURL: secrets.SonarDataBaseURL, APIKey: secrets.SonarDataAPIKey}
	if key, ok := os.LookupEnv("PERPLEXITY_API_KEY"); ok && strings.TrimSpace(key) != "" {
		cfg.Perplexity.APIKey = strings.TrimSpace(key)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Secrets holds values from the secrets file.
type Secrets struct {
	PerplexityAPIKey string
	SonarDataBaseURL string
	SonarDataAPIKey  string
}

// LoadSecrets reads a TOML secrets file with [perplexity_api] and
// [sonar_data_api] sections. A missing file yields empty secrets.
func LoadSecrets(path string) (Secrets, error) {
	if path == "" {
		return Secrets{}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("No secrets file found, relying on environment", "path", path)
			return Secrets{}, nil
		}
		return Secrets{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Secrets{
		PerplexityAPIKey: strings.TrimSpace(v.GetString("perplexity_api.api_key")),
		SonarDataBaseURL: strings.TrimSpace(v.GetString("sonar_data_api.base_url")),
		SonarDataAPIKey:  strings.TrimSpace(v.GetString("sonar_data_api.api_key")),
	}, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.GRPCPort != "" && c.GRPCPort == c.Port {
		return fmt.Errorf("GRPC_PORT must differ from PORT")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.Chat.RateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	if c.Chat.RateWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_WINDOW must be > 0")
	}
	if c.Chat.Timeout <= 0 {
		return fmt.Errorf("CHAT_TIMEOUT must be > 0")
	}
	if c.Perplexity.BaseURL == "" {
		return fmt.Errorf("PERPLEXITY_BASE_URL cannot be empty")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// ChatEnabled reports whether a completion API key is configured.
func (c *Config) ChatEnabled() bool {
	return c.Perplexity.APIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
