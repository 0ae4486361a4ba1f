package stt

import "errors"

var (
	// ErrNoAPIKey indicates the Deepgram API key is missing.
	ErrNoAPIKey = errors.New("stt: API key is required")

	// ErrInvalidSampleRate indicates a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("stt: sample rate must be positive")

	// ErrNotConnected indicates audio was sent before the websocket
	// connection was established.
	ErrNotConnected = errors.New("stt: not connected")
)
