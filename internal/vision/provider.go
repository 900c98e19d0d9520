package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMistral   = "mistral"
)

// ErrMissingAPIKey is returned when a hosted provider has no key.
var ErrMissingAPIKey = errors.New("API key is not set")

// Config selects and tunes the vision model.
type Config struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model       string  `mapstructure:"model" yaml:"model" json:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	EnvFile     string  `mapstructure:"env_file" yaml:"env_file" json:"env_file"`
}

// DefaultConfig returns the OpenAI defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o",
		MaxTokens:   1500,
		Temperature: 0.1,
		EnvFile:     ".env",
	}
}

// Validate checks the provider name and limits.
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderMistral:
	default:
		return fmt.Errorf("unsupported vision provider: %q", c.Provider)
	}
	if c.Model == "" {
		return errors.New("vision model name is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %v", c.Temperature)
	}
	return nil
}

// LoadEnv reads API keys from an env file when it exists. Variables already
// set in the environment win.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

// NewFromConfig builds an Oracle for the configured provider. Keys come
// from OPENAI_API_KEY, ANTHROPIC_API_KEY or MISTRAL_API_KEY; Ollama uses
// OLLAMA_HOST or BaseURL.
func NewFromConfig(cfg Config) (*Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := LoadEnv(cfg.EnvFile); err != nil {
		return nil, err
	}
	provider := strings.ToLower(cfg.Provider)
	slog.Info("Creating vision model client", "provider", provider, "model", cfg.Model)

	var (
		model llms.Model
		err   error
	)
	switch provider {
	case ProviderOpenAI:
		model, err = newOpenAI(cfg)
	case ProviderAnthropic:
		model, err = newAnthropic(cfg)
	case ProviderOllama:
		model, err = newOllama(cfg)
	case ProviderMistral:
		model, err = newMistral(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}
	return New(model,
		WithProvider(provider),
		WithModelName(cfg.Model),
		WithMaxTokens(cfg.MaxTokens),
		WithTemperature(cfg.Temperature),
	), nil
}

func apiKey(name string) (string, error) {
	key := os.Getenv(name)
	if key == "" {
		return "", fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
	}
	return key, nil
}

func newOpenAI(cfg Config) (llms.Model, error) {
	key, err := apiKey("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(key)}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg Config) (llms.Model, error) {
	key, err := apiKey("ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	return anthropic.New(anthropic.WithModel(cfg.Model), anthropic.WithToken(key))
}

func newMistral(cfg Config) (llms.Model, error) {
	key, err := apiKey("MISTRAL_API_KEY")
	if err != nil {
		return nil, err
	}
	return mistral.New(mistral.WithModel(cfg.Model), mistral.WithAPIKey(key))
}

func newOllama(cfg Config) (llms.Model, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(host))
}
