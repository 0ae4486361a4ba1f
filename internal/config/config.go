// Package config provides environment-based configuration for go-voicebot.
package config

import (
	"os"
	"strconv"
)

// Defaults for the demo server.
const (
	DefaultPort      = 7860
	DefaultStaticDir = "./frontend/dist"
	DefaultLogLevel  = "info"
)

// Env var names for vendor credentials.
const (
	EnvDailyAPIKey    = "DAILY_API_KEY"
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvCambAPIKey     = "CAMB_API_KEY"
)

// Port returns the HTTP port from the PORT env var, or the default.
func Port() int {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			return p
		}
	}
	return DefaultPort
}

// LogLevel returns the log level from LOG_LEVEL, or "info".
func LogLevel() string {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	return DefaultLogLevel
}

// StaticDir returns the frontend directory from STATIC_DIR, or the default.
func StaticDir() string {
	if v := os.Getenv("STATIC_DIR"); v != "" {
		return v
	}
	return DefaultStaticDir
}

// DailyAPIKey returns the Daily REST API key. Empty if unset; the server
// still starts but /api/connect reports the missing configuration.
func DailyAPIKey() string {
	return os.Getenv(EnvDailyAPIKey)
}

// DeepgramAPIKey returns the Deepgram API key.
func DeepgramAPIKey() string {
	return os.Getenv(EnvDeepgramAPIKey)
}

// OpenAIAPIKey returns the OpenAI API key.
func OpenAIAPIKey() string {
	return os.Getenv(EnvOpenAIAPIKey)
}

// CambAPIKey returns the Camb AI API key.
func CambAPIKey() string {
	return os.Getenv(EnvCambAPIKey)
}
