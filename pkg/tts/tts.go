// Package tts provides text-to-speech for the voice bot.
//
// Providers implement the Provider interface; the bundled implementation
// talks to Camb AI's MARS models. A pipeline Stage (stage.go) wraps a
// Provider and turns streamed LLM text into synthesized audio frames.
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with streaming output for lowest
	// latency. Chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk, or nil when the stream is
	// complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats.
	BitDepth int
}

// PCM24kMono is the format produced by the Camb streaming endpoint.
var PCM24kMono = AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16}

// EstimateDuration estimates PCM playback time from a byte count.
func (f AudioFormat) EstimateDuration(byteLen int) time.Duration {
	bytesPerSample := f.BitDepth / 8 * f.Channels
	if bytesPerSample == 0 || f.SampleRate == 0 {
		return 0
	}
	samples := byteLen / bytesPerSample
	return time.Duration(float64(samples) / float64(f.SampleRate) * float64(time.Second))
}
