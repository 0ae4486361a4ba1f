// Package llm runs streaming chat completions against OpenAI and feeds
// the response text into the pipeline one delta at a time.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	logx "github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// Stage is the language-model stage of the pipeline. An LLMRun frame
// starts a streaming completion over the conversation context; the
// response is injected as an LLMFullResponseStart frame, a series of
// LLMText deltas, and an LLMFullResponseEnd frame. A StartInterruption
// frame cancels the in-flight completion.
type Stage struct {
	cfg    Config
	logger *slog.Logger
	client openai.Client
	convo  *Context

	mu        sync.Mutex
	baseCtx   context.Context
	inject    pipeline.Emit
	cancelRun context.CancelFunc
}

var (
	_ pipeline.Processor = (*Stage)(nil)
	_ pipeline.Source    = (*Stage)(nil)
)

// New creates an OpenAI completion stage that reads its history from the
// given conversation context.
func New(convo *Context, opts ...Option) (*Stage, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logx.Component("llm")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Stage{
		cfg:    cfg,
		logger: logger,
		client: openai.NewClient(clientOpts...),
		convo:  convo,
	}, nil
}

// Name implements pipeline.Processor.
func (s *Stage) Name() string { return "openai-llm" }

// Start implements pipeline.Source.
func (s *Stage) Start(ctx context.Context, inject pipeline.Emit) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.inject = inject
	s.mu.Unlock()
	return nil
}

// Stop cancels any in-flight completion. It implements pipeline.Source.
func (s *Stage) Stop() error {
	s.cancelActive()
	return nil
}

// Process implements pipeline.Processor.
func (s *Stage) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	switch f.(type) {
	case frames.LLMRun:
		s.startRun()
		return nil
	case frames.StartInterruption:
		s.cancelActive()
		return out(f, d)
	default:
		return out(f, d)
	}
}

func (s *Stage) startRun() {
	s.mu.Lock()
	if s.baseCtx == nil {
		s.mu.Unlock()
		s.logger.Warn("run requested before stage was started")
		return
	}
	if s.cancelRun != nil {
		s.cancelRun()
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancelRun = cancel
	inject := s.inject
	s.mu.Unlock()

	go s.run(ctx, inject)
}

func (s *Stage) cancelActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
}

func (s *Stage) run(ctx context.Context, inject pipeline.Emit) {
	s.emit(inject, frames.LLMFullResponseStart{})
	defer s.emit(inject, frames.LLMFullResponseEnd{})

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.cfg.Model),
		Messages: s.convo.Messages(),
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.emit(inject, frames.LLMText{Text: delta})
		}
	}

	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("completion stream failed", "model", s.cfg.Model, "error", err)
	}
}

func (s *Stage) emit(inject pipeline.Emit, f frames.Frame) {
	if err := inject(f, pipeline.Downstream); err != nil {
		s.logger.Warn("failed to inject frame", "frame", f.Name(), "error", err)
	}
}
