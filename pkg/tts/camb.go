package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	cambBaseURL  = "https://client.camb.ai/apis"
	providerCamb = "camb"
)

// Camb implements Provider for Camb AI's MARS text-to-speech API.
type Camb struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewCamb creates a new Camb AI TTS provider.
func NewCamb(opts ...Option) (*Camb, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cambBaseURL
	}

	return &Camb{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "tts.camb"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (c *Camb) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := c.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var buf bytes.Buffer
	var latency int64
	for {
		chunk, err := stream.Read()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		if latency == 0 {
			latency = time.Since(start).Milliseconds()
		}
		buf.Write(chunk)
	}

	audio := buf.Bytes()
	c.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", c.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    PCM24kMono,
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  PCM24kMono.EstimateDuration(len(audio)),
	}, nil
}

// Stream converts text to audio with streaming output.
func (c *Camb) Stream(ctx context.Context, text string) (AudioStream, error) {
	payload := map[string]any{
		"text":     text,
		"voice_id": c.voiceID(),
		"language": c.config.Language,
	}
	if c.config.ModelID != "" {
		payload["model"] = c.config.ModelID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerCamb, fmt.Errorf("marshal payload: %w", err))
	}

	// Use stream timeout for streaming requests
	client := &http.Client{Timeout: c.config.StreamTimeout}

	resp, err := c.doWithRetry(ctx, client, c.baseURL+"/tts-stream", body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.parseError(resp)
	}

	return &httpStream{body: resp.Body, format: PCM24kMono}, nil
}

// Health checks API connectivity and API key validity.
func (c *Camb) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/list-voices", nil)
	if err != nil {
		return WrapError(providerCamb, err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return WrapError(providerCamb, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (c *Camb) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice ID.
func (c *Camb) VoiceID() string {
	return c.config.VoiceID
}

// voiceID converts the configured voice to the numeric form Camb expects,
// falling back to the raw string when it is not numeric.
func (c *Camb) voiceID() any {
	if n, err := strconv.Atoi(c.config.VoiceID); err == nil {
		return n
	}
	return c.config.VoiceID
}

// doWithRetry posts the payload, retrying 429/5xx responses.
func (c *Camb) doWithRetry(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerCamb, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = WrapError(providerCamb, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp)
			resp.Body.Close()
			c.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *Camb) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			message = errResp.Message
		} else if errResp.Detail != "" {
			message = errResp.Detail
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerCamb,
	}
}

// httpStream wraps an HTTP response body as AudioStream.
type httpStream struct {
	body   io.ReadCloser
	format AudioFormat
	buf    [4096]byte
}

// Read returns the next audio chunk.
func (s *httpStream) Read() ([]byte, error) {
	n, err := s.body.Read(s.buf[:])
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte{}, nil
}

// Close stops the stream.
func (s *httpStream) Close() error {
	return s.body.Close()
}

// Format returns the audio format.
func (s *httpStream) Format() AudioFormat {
	return s.format
}

// Verify Camb implements Provider at compile time.
var _ Provider = (*Camb)(nil)
