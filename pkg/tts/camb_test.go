package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{
			name: "valid",
			opts: []Option{WithAPIKey("key")},
		},
		{
			name:    "missing api key",
			opts:    nil,
			wantErr: ErrNoAPIKey,
		},
		{
			name:    "missing voice",
			opts:    []Option{WithAPIKey("key"), WithVoice("")},
			wantErr: ErrNoVoiceID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCamb(tt.opts...)
			if err != tt.wantErr {
				t.Errorf("NewCamb() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelID != ModelMarsFlash {
		t.Errorf("default model = %q, want %q", cfg.ModelID, ModelMarsFlash)
	}
	if cfg.VoiceID != DefaultVoiceID {
		t.Errorf("default voice = %q, want %q", cfg.VoiceID, DefaultVoiceID)
	}
	if cfg.Timeout <= 0 || cfg.StreamTimeout <= 0 {
		t.Error("default timeouts not set")
	}
}

func TestCambSynthesize(t *testing.T) {
	audio := []byte("fake-pcm-audio-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts-stream" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-api-key"))
		}

		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["text"] != "hello" {
			t.Errorf("payload text = %v", payload["text"])
		}
		if v, ok := payload["voice_id"].(float64); !ok || int(v) != 156549 {
			t.Errorf("payload voice_id = %v, want numeric 156549", payload["voice_id"])
		}
		if payload["model"] != ModelMarsFlash {
			t.Errorf("payload model = %v", payload["model"])
		}

		w.Write(audio)
	}))
	defer srv.Close()

	provider, err := NewCamb(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	if string(result.Audio) != string(audio) {
		t.Errorf("audio = %q", result.Audio)
	}
	if result.CharCount != 5 {
		t.Errorf("char count = %d, want 5", result.CharCount)
	}
	if result.Format.SampleRate != 24000 {
		t.Errorf("sample rate = %d", result.Format.SampleRate)
	}
}

func TestCambStreamChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 10000))
	}))
	defer srv.Close()

	provider, _ := NewCamb(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	defer provider.Close()

	stream, err := provider.Stream(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	var total int
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if chunk == nil {
			break
		}
		total += len(chunk)
	}
	if total != 10000 {
		t.Errorf("streamed %d bytes, want 10000", total)
	}
}

func TestCambAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	}))
	defer srv.Close()

	provider, _ := NewCamb(WithAPIKey("bad-key"), WithBaseURL(srv.URL))
	defer provider.Close()

	_, err := provider.Stream(context.Background(), "hello")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("expected unauthorized, got status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCambRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	provider, _ := NewCamb(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithRetry(2, time.Millisecond),
	)
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("synthesize after retry: %v", err)
	}
	if string(result.Audio) != "audio" {
		t.Errorf("audio = %q", result.Audio)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestEstimateDuration(t *testing.T) {
	// 48000 bytes of 24kHz mono PCM16 is exactly one second.
	d := PCM24kMono.EstimateDuration(48000)
	if d != time.Second {
		t.Errorf("duration = %v, want 1s", d)
	}
}
