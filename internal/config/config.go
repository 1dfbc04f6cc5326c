// Package config loads runtime configuration from the environment.
//
// Values start from Defaults, are overlaid by a .env file (if present) and
// the process environment, and finally by command-line flags set by the
// caller. Provider API keys are read here too, but an empty key is valid:
// the matching provider then answers with a configuration error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Result store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDynamoDB = "dynamodb"
)

// Config is the full runtime configuration shared by the server, the CLI and
// the Lambda.
type Config struct {
	Port            int           `env:"PORT"`
	LogLevel        string        `env:"LOG_LEVEL"`
	LogFormat       string        `env:"LOG_FORMAT"`        // console|json
	FallbackEnabled bool          `env:"FALLBACK_ENABLED"`  // default policy when a request does not say
	MaxImageBytes   int64         `env:"MAX_IMAGE_BYTES"`   // decoded image size limit
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT"`  // transport timeout for one provider call
	ResultStore     string        `env:"RESULT_STORE"`      // memory|redis|dynamodb
	ResultTTL       time.Duration `env:"RESULT_TTL"`        // how long the result page can be loaded
	ResultTable     string        `env:"RESULT_TABLE_NAME"` // DynamoDB table for the dynamodb backend

	Gemini GeminiConfig
	OpenAI OpenAIConfig
	Redis  RedisConfig
	SSM    SSMConfig
}

// GeminiConfig configures the Primary provider.
type GeminiConfig struct {
	APIKey      string `env:"GEMINI_API_KEY"`
	TextModel   string `env:"GEMINI_TEXT_MODEL"`
	VisionModel string `env:"GEMINI_VISION_MODEL"`
	BaseURL     string `env:"GEMINI_BASE_URL"`
}

// OpenAIConfig configures the Secondary provider.
type OpenAIConfig struct {
	APIKey      string `env:"OPENAI_API_KEY"`
	TextModel   string `env:"OPENAI_TEXT_MODEL"`
	VisionModel string `env:"OPENAI_VISION_MODEL"`
	BaseURL     string `env:"OPENAI_BASE_URL"`
	MaxTokens   int64  `env:"OPENAI_MAX_TOKENS"`
}

// RedisConfig configures the redis result store backend.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

// SSMConfig names the Parameter Store entries holding provider keys on Lambda.
type SSMConfig struct {
	GeminiKeyParam string `env:"SSM_GEMINI_KEY_PARAM"`
	OpenAIKeyParam string `env:"SSM_OPENAI_KEY_PARAM"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:            8080,
		LogLevel:        "info",
		LogFormat:       "console",
		FallbackEnabled: true,
		MaxImageBytes:   5 << 20,
		ProviderTimeout: 60 * time.Second,
		ResultStore:     StoreMemory,
		ResultTTL:       15 * time.Minute,
		Gemini: GeminiConfig{
			TextModel:   "gemini-2.5-flash-lite",
			VisionModel: "gemini-2.5-flash",
		},
		OpenAI: OpenAIConfig{
			TextModel:   "gpt-4o-mini",
			VisionModel: "gpt-4o",
			MaxTokens:   500,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		SSM: SSMConfig{
			GeminiKeyParam: "/prompt-enhancer/prod/gemini-api-key",
			OpenAIKeyParam: "/prompt-enhancer/prod/openai-api-key",
		},
	}
}

// Load reads .env (if present) and the environment over Defaults.
func Load() (*Config, error) {
	loadDotEnv(".env")
	return FromEnv()
}

// loadDotEnv applies the file at path to the environment. A missing file is
// normal; a file that cannot be parsed is logged and skipped. It reports
// whether the file was applied.
func loadDotEnv(path string) bool {
	err := godotenv.Load(path)
	switch {
	case err == nil:
		return true
	case errors.Is(err, fs.ErrNotExist):
		return false
	default:
		log.Debug().Err(err).Str("file", path).Msg("Ignoring unreadable .env file")
		return false
	}
}

// FromEnv overlays the process environment on Defaults without touching .env.
func FromEnv() (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.ResultStore = strings.ToLower(strings.TrimSpace(cfg.ResultStore))
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.MaxImageBytes))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout))
	}
	if c.ResultTTL <= 0 {
		errs = append(errs, fmt.Errorf("RESULT_TTL must be positive, got %s", c.ResultTTL))
	}
	if c.OpenAI.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", c.OpenAI.MaxTokens))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}
	switch c.ResultStore {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RESULT_STORE=redis"))
		}
	case StoreDynamoDB:
		if c.ResultTable == "" {
			errs = append(errs, errors.New("RESULT_TABLE_NAME is required when RESULT_STORE=dynamodb"))
		}
	default:
		errs = append(errs, fmt.Errorf("RESULT_STORE must be memory, redis or dynamodb, got %q", c.ResultStore))
	}
	return errors.Join(errs...)
}
