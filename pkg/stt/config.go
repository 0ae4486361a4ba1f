package stt

import (
	"log/slog"
	"time"
)

// Supported Deepgram models.
const (
	ModelNova2 = "nova-2"
	ModelNova3 = "nova-3"
)

const (
	defaultListenURL  = "wss://api.deepgram.com/v1/listen"
	defaultSampleRate = 16000
	defaultEncoding   = "linear16"

	// Endpointing is how long Deepgram waits after speech stops before
	// marking a transcript segment final.
	defaultEndpointingMs = 300

	defaultKeepAliveInterval = 5 * time.Second
)

// Config holds the settings for a streaming transcription session.
type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Encoding   string

	// InterimResults asks Deepgram for partial transcripts while the user
	// is still speaking.
	InterimResults bool

	// VADEvents asks Deepgram for SpeechStarted events, which drive
	// barge-in interruption.
	VADEvents bool

	EndpointingMs     int
	KeepAliveInterval time.Duration

	// ListenURL overrides the Deepgram endpoint. Used by tests.
	ListenURL string

	Logger *slog.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithAPIKey sets the Deepgram API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the transcription language.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithSampleRate sets the input audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithListenURL overrides the websocket endpoint.
func WithListenURL(u string) Option {
	return func(c *Config) { c.ListenURL = u }
}

// WithLogger sets the logger used by the stage.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Model:             ModelNova2,
		Language:          "en-US",
		SampleRate:        defaultSampleRate,
		Encoding:          defaultEncoding,
		InterimResults:    true,
		VADEvents:         true,
		EndpointingMs:     defaultEndpointingMs,
		KeepAliveInterval: defaultKeepAliveInterval,
		ListenURL:         defaultListenURL,
	}
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
	if c.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	return nil
}
