package llm

import "log/slog"

// Supported models.
const (
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGPT4o     = "gpt-4o"
)

// Config holds the settings for the language-model stage.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the OpenAI endpoint. Used by tests.
	BaseURL string

	Logger *slog.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Config) { c.BaseURL = u }
}

// WithLogger sets the logger used by the stage.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{Model: ModelGPT4oMini}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}
