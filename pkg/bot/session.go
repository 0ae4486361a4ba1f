// Package bot assembles the voice-agent pipeline and manages the
// lifetime of one conversation session.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	logx "github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/hub"
	"github.com/teslashibe/go-voicebot/pkg/llm"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
	"github.com/teslashibe/go-voicebot/pkg/stt"
	"github.com/teslashibe/go-voicebot/pkg/tracker"
	"github.com/teslashibe/go-voicebot/pkg/transport"
	"github.com/teslashibe/go-voicebot/pkg/tts"
)

// Config holds everything a session needs to run.
type Config struct {
	RoomURL string
	Token   string

	TTSModel string

	DeepgramAPIKey string
	OpenAIAPIKey   string
	CambAPIKey     string

	// Endpoint overrides, used by tests and self-hosted gateways.
	DeepgramURL   string
	OpenAIBaseURL string
	CambBaseURL   string

	Logger *slog.Logger
}

// Session is one live conversation: a pipeline task, its stages, and the
// event hub browsers subscribe to.
type Session struct {
	ID      string
	RoomURL string

	events *hub.Hub
	input  *transport.Input
	convo  *llm.Context
	task   *pipeline.Task
	logger *slog.Logger

	stopOnce sync.Once
	runErr   error
	runMu    sync.Mutex
}

// New builds a session from the given config. The pipeline mirrors the
// conversation flow: user audio in, transcription, completion, synthesis,
// events out.
func New(cfg Config) (*Session, error) {
	if cfg.RoomURL == "" {
		return nil, errors.New("bot: room URL is required")
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = tts.ModelMarsFlash
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = logx.Component("bot")
	}
	logger = logger.With("session", id)

	events := hub.New(id)
	convo := llm.NewContext(llm.SystemPrompt)

	sttOpts := []stt.Option{stt.WithAPIKey(cfg.DeepgramAPIKey)}
	if cfg.DeepgramURL != "" {
		sttOpts = append(sttOpts, stt.WithListenURL(cfg.DeepgramURL))
	}
	sttStage, err := stt.New(sttOpts...)
	if err != nil {
		return nil, fmt.Errorf("bot: stt stage: %w", err)
	}

	llmOpts := []llm.Option{llm.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llmStage, err := llm.New(convo, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("bot: llm stage: %w", err)
	}

	ttsOpts := []tts.Option{tts.WithAPIKey(cfg.CambAPIKey), tts.WithModel(cfg.TTSModel)}
	if cfg.CambBaseURL != "" {
		ttsOpts = append(ttsOpts, tts.WithBaseURL(cfg.CambBaseURL))
	}
	ttsProvider, err := tts.NewCamb(ttsOpts...)
	if err != nil {
		return nil, fmt.Errorf("bot: tts provider: %w", err)
	}

	input := transport.NewInput()
	output := transport.NewOutput(events)

	p := pipeline.New(
		input,
		sttStage,
		tracker.NewSTTProgress(),
		NewUserAggregator(convo),
		llmStage,
		tracker.NewLLMProgress(),
		tts.NewStage(ttsProvider),
		tracker.NewTTSStatus(),
		output,
		NewAssistantAggregator(convo),
	).WithLogger(logger)

	s := &Session{
		ID:      id,
		RoomURL: cfg.RoomURL,
		events:  events,
		input:   input,
		convo:   convo,
		task:    pipeline.NewTask(p),
		logger:  logger,
	}

	// The first participant to join gets the greeting; the context is
	// seeded with the greeting prompt so the model opens the conversation.
	input.OnFirstJoin = func() {
		convo.AddUserMessage(llm.GreetingPrompt)
		s.task.Queue(frames.LLMRun{})
	}
	input.OnLeave = func(participantID string) {
		s.logger.Info("participant left, stopping session")
		s.Stop()
	}

	return s, nil
}

// Events returns the hub browsers subscribe to for this session.
func (s *Session) Events() *hub.Hub { return s.events }

// Input returns the transport input, which the server uses to deliver
// participant lifecycle notifications.
func (s *Session) Input() *transport.Input { return s.input }

// Run executes the pipeline until the session is stopped. It blocks, so
// callers usually run it in a goroutine. The event hub is closed when the
// pipeline exits.
func (s *Session) Run(ctx context.Context) error {
	go s.events.Run()
	defer s.events.Close()

	s.logger.Info("session starting", "room", s.RoomURL)
	err := s.task.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("session pipeline failed", "error", err)
	} else {
		s.logger.Info("session finished")
		err = nil
	}

	s.runMu.Lock()
	s.runErr = err
	s.runMu.Unlock()
	return err
}

// Stop requests an orderly shutdown: frames already queued are still
// processed. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(s.task.StopWhenDone)
}

// Cancel tears the session down immediately.
func (s *Session) Cancel() {
	s.task.Cancel()
}

// Done is closed when the pipeline task has exited.
func (s *Session) Done() <-chan struct{} { return s.task.Done() }

// Err returns the terminal pipeline error, if any. Valid after Done is
// closed.
func (s *Session) Err() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.runErr
}
