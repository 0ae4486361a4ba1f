package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// Stage is the pipeline speech-synthesis stage. It collects streamed LLM
// text into sentences, synthesizes each through a Provider on a worker
// goroutine, and injects TTSStarted/TTSAudio/TTSStopped frames downstream.
// A StartInterruption frame cancels in-flight synthesis and drops any
// queued sentences.
type Stage struct {
	provider Provider
	logger   *slog.Logger

	// pending accumulates partial sentence text. Only touched from the
	// pipeline task goroutine.
	pending strings.Builder

	queue chan utterance
	gen   atomic.Int64

	synthMu     sync.Mutex
	synthCancel context.CancelFunc

	stopOnce sync.Once
	stopped  chan struct{}
}

type utterance struct {
	text string
	gen  int64
}

// NewStage creates a TTS stage around a provider.
func NewStage(provider Provider) *Stage {
	return &Stage{
		provider: provider,
		logger:   slog.Default().With("component", "tts.stage"),
		queue:    make(chan utterance, 32),
		stopped:  make(chan struct{}),
	}
}

// WithLogger sets the stage logger.
func (s *Stage) WithLogger(logger *slog.Logger) *Stage {
	s.logger = logger.With("component", "tts.stage")
	return s
}

// Name identifies the stage in logs.
func (s *Stage) Name() string { return "tts" }

// Process implements pipeline.Processor.
func (s *Stage) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	switch fr := f.(type) {
	case frames.LLMFullResponseStart:
		s.pending.Reset()

	case frames.LLMText:
		s.pending.WriteString(fr.Text)
		complete, rest := splitSentences(s.pending.String())
		s.pending.Reset()
		s.pending.WriteString(rest)
		for _, sentence := range complete {
			s.enqueue(sentence)
		}

	case frames.LLMFullResponseEnd:
		if rest := strings.TrimSpace(s.pending.String()); rest != "" {
			s.enqueue(rest)
		}
		s.pending.Reset()

	case frames.TTSSpeak:
		if text := strings.TrimSpace(fr.Text); text != "" {
			s.enqueue(text)
		}

	case frames.StartInterruption:
		s.interrupt()
	}

	return out(f, d)
}

// Start implements pipeline.Source: it runs the synthesis worker.
func (s *Stage) Start(ctx context.Context, inject pipeline.Emit) error {
	go s.worker(ctx, inject)
	return nil
}

// Stop implements pipeline.Source.
func (s *Stage) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	return nil
}

func (s *Stage) enqueue(text string) {
	u := utterance{text: text, gen: s.gen.Load()}
	select {
	case s.queue <- u:
	default:
		// Queue full: the response is running far ahead of synthesis.
		// Dropping the oldest pending sentence keeps latency bounded.
		select {
		case <-s.queue:
		default:
		}
		s.queue <- u
		s.logger.Warn("synthesis queue full, dropped oldest sentence")
	}
}

// interrupt invalidates queued and in-flight synthesis.
func (s *Stage) interrupt() {
	s.gen.Add(1)
	s.pending.Reset()

	s.synthMu.Lock()
	if s.synthCancel != nil {
		s.synthCancel()
	}
	s.synthMu.Unlock()

	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

func (s *Stage) worker(ctx context.Context, inject pipeline.Emit) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case u := <-s.queue:
			if u.gen != s.gen.Load() {
				continue
			}
			s.speak(ctx, u, inject)
		}
	}
}

// speak synthesizes one utterance and streams its audio downstream.
func (s *Stage) speak(ctx context.Context, u utterance, inject pipeline.Emit) {
	sctx, cancel := context.WithCancel(ctx)
	s.synthMu.Lock()
	s.synthCancel = cancel
	s.synthMu.Unlock()
	defer cancel()

	stream, err := s.provider.Stream(sctx, u.text)
	if err != nil {
		s.logger.Error("synthesis failed", "error", err, "chars", len(u.text))
		return
	}
	defer stream.Close()

	if u.gen != s.gen.Load() {
		return
	}
	if err := inject(frames.TTSStarted{}, pipeline.Downstream); err != nil {
		return
	}

	format := stream.Format()
	for {
		chunk, err := stream.Read()
		if err != nil {
			if sctx.Err() == nil {
				s.logger.Error("audio stream failed", "error", err)
			}
			break
		}
		if chunk == nil {
			break
		}
		if u.gen != s.gen.Load() {
			break
		}
		if err := inject(frames.TTSAudio{Audio: chunk, SampleRate: format.SampleRate}, pipeline.Downstream); err != nil {
			return
		}
	}

	inject(frames.TTSStopped{}, pipeline.Downstream)
}

// splitSentences returns the complete sentences in text and the unfinished
// remainder. A sentence ends at '.', '!' or '?' followed by whitespace, so
// decimals like "3.14" stay intact until more text arrives.
func splitSentences(text string) (sentences []string, rest string) {
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(runes[i+1]) {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	return sentences, strings.TrimLeft(string(runes[start:]), " \t\n")
}

// Verify Stage satisfies the pipeline contracts at compile time.
var (
	_ pipeline.Processor = (*Stage)(nil)
	_ pipeline.Source    = (*Stage)(nil)
)
