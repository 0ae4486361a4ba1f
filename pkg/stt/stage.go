// Package stt streams user audio to Deepgram and turns the live
// transcription responses into pipeline frames.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	logx "github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// Stage is the speech-to-text stage of the pipeline. It consumes
// InputAudio frames, forwards the audio to a Deepgram live websocket, and
// injects InterimTranscription, Transcription and StartInterruption frames
// as responses arrive.
type Stage struct {
	cfg    Config
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	inject pipeline.Emit

	// Transcript segment state, touched only by the read loop goroutine.
	accumulated    string
	unendedSegment bool

	readDone chan struct{}
}

var (
	_ pipeline.Processor = (*Stage)(nil)
	_ pipeline.Source    = (*Stage)(nil)
)

// New creates a Deepgram transcription stage.
func New(opts ...Option) (*Stage, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logx.Component("stt")
	}

	return &Stage{
		cfg:      cfg,
		logger:   logger,
		readDone: make(chan struct{}),
	}, nil
}

// Name implements pipeline.Processor.
func (s *Stage) Name() string { return "deepgram-stt" }

// Start dials the Deepgram live endpoint and begins reading responses.
// It implements pipeline.Source.
func (s *Stage) Start(ctx context.Context, inject pipeline.Emit) error {
	listenURL, err := s.listenURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL,
		http.Header{"Authorization": {"Token " + s.cfg.APIKey}})
	if err != nil {
		return fmt.Errorf("stt: failed to open deepgram websocket: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.inject = inject
	s.connMu.Unlock()

	go s.readLoop(conn)
	go s.keepAlive(ctx)

	s.logger.Info("deepgram stream opened", "model", s.cfg.Model, "sample_rate", s.cfg.SampleRate)
	return nil
}

// Stop flushes the Deepgram buffer and closes the websocket. It
// implements pipeline.Source.
func (s *Stage) Stop() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	// CloseStream tells Deepgram to finalize whatever is buffered before
	// the connection goes away.
	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		s.logger.Warn("failed to close deepgram stream", "error", err)
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Process forwards InputAudio frames to Deepgram and passes everything
// else through. It implements pipeline.Processor.
func (s *Stage) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	if audio, ok := f.(frames.InputAudio); ok {
		if err := s.sendAudio(audio.Audio); err != nil {
			s.logger.Warn("failed to send audio chunk", "error", err)
		}
		return nil
	}
	return out(f, d)
}

func (s *Stage) sendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("stt: failed to write to deepgram: %w", err)
	}
	return nil
}

func (s *Stage) listenURL() (string, error) {
	u, err := url.Parse(s.cfg.ListenURL)
	if err != nil {
		return "", fmt.Errorf("stt: invalid listen URL: %w", err)
	}

	q := u.Query()
	q.Set("encoding", s.cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("model", s.cfg.Model)
	q.Set("language", s.cfg.Language)
	q.Set("smart_format", "true")
	q.Set("endpointing", strconv.Itoa(s.cfg.EndpointingMs))
	if s.cfg.InterimResults {
		q.Set("interim_results", "true")
	}
	if s.cfg.VADEvents {
		q.Set("vad_events", "true")
		q.Set("utterance_end_ms", "1000")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Stage) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.readDone:
			return
		case <-ticker.C:
			s.sendKeepAlive()
		}
	}
}

func (s *Stage) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		s.logger.Warn("failed to send keepalive", "error", err)
	}
}

func (s *Stage) readLoop(conn *websocket.Conn) {
	defer close(s.readDone)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Warn("deepgram read failed", "error", err)
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		s.handleMessage(msg)
	}
}

func (s *Stage) handleMessage(msg []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		s.logger.Warn("failed to parse deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(envelope.Type) {
	case api.TypeMessageResponse:
		var resp api.MessageResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			s.logger.Warn("failed to parse transcript message", "error", err)
			return
		}
		s.handleTranscript(resp)

	case api.TypeUtteranceEndResponse:
		// Deepgram saw silence after a segment that never got a
		// speech_final transcript. Flush whatever is accumulated.
		if s.unendedSegment {
			s.finishSegment()
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		s.emit(frames.StartInterruption{})
	}
}

func (s *Stage) handleTranscript(resp api.MessageResponse) {
	var transcript string
	if len(resp.Channel.Alternatives) > 0 {
		transcript = strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
	}

	if resp.IsFinal {
		if transcript != "" {
			s.accumulated = strings.TrimSpace(s.accumulated + " " + transcript)
		}
		if resp.SpeechFinal {
			s.finishSegment()
		}
		return
	}

	if transcript != "" {
		s.emit(frames.InterimTranscription{
			Text: strings.TrimSpace(s.accumulated + " " + transcript),
		})
	}
}

func (s *Stage) finishSegment() {
	full := strings.TrimSpace(s.accumulated)
	s.accumulated = ""
	s.unendedSegment = false
	if full != "" {
		s.emit(frames.Transcription{Text: full})
	}
}

func (s *Stage) emit(f frames.Frame) {
	s.connMu.Lock()
	inject := s.inject
	s.connMu.Unlock()

	if inject == nil {
		return
	}
	if err := inject(f, pipeline.Downstream); err != nil {
		s.logger.Warn("failed to inject frame", "frame", f.Name(), "error", err)
	}
}
