// Package transport provides the pipeline endpoints that face the
// outside world. Input injects user-side frames into the head of the
// pipeline; Output delivers bot-side frames to the browser through the
// session's event hub. The audio media plane itself rides on Daily's
// WebRTC infrastructure and never passes through this process.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	logx "github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/hub"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// Input is the user-facing head of the pipeline. The session feeds it
// participant lifecycle events and, when a local media plane is attached,
// raw audio chunks.
type Input struct {
	logger *slog.Logger

	mu     sync.Mutex
	inject pipeline.Emit

	// OnFirstJoin is called once, when the first participant joins.
	OnFirstJoin func()

	// OnLeave is called when a participant leaves.
	OnLeave func(participantID string)

	joined map[string]bool
}

var (
	_ pipeline.Processor = (*Input)(nil)
	_ pipeline.Source    = (*Input)(nil)
)

// NewInput creates the input endpoint.
func NewInput() *Input {
	return &Input{
		logger: logx.Component("transport"),
		joined: make(map[string]bool),
	}
}

// Name implements pipeline.Processor.
func (in *Input) Name() string { return "transport-input" }

// Start implements pipeline.Source.
func (in *Input) Start(_ context.Context, inject pipeline.Emit) error {
	in.mu.Lock()
	in.inject = inject
	in.mu.Unlock()
	return nil
}

// Stop implements pipeline.Source.
func (in *Input) Stop() error { return nil }

// Process implements pipeline.Processor. Upstream frames terminate here.
func (in *Input) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	if d == pipeline.Upstream {
		return nil
	}
	return out(f, d)
}

// PushAudio injects a chunk of user audio into the pipeline.
func (in *Input) PushAudio(audio []byte, sampleRate int) error {
	in.mu.Lock()
	inject := in.inject
	in.mu.Unlock()
	if inject == nil {
		return nil
	}
	return inject(frames.InputAudio{Audio: audio, SampleRate: sampleRate}, pipeline.Downstream)
}

// ParticipantJoined records a participant. The first join fires
// OnFirstJoin, which the session uses to greet the user.
func (in *Input) ParticipantJoined(participantID string) {
	in.mu.Lock()
	first := len(in.joined) == 0
	in.joined[participantID] = true
	onFirst := in.OnFirstJoin
	in.mu.Unlock()

	in.logger.Info("participant joined", "participant", participantID, "first", first)
	if first && onFirst != nil {
		onFirst()
	}
}

// ParticipantLeft removes a participant and fires OnLeave.
func (in *Input) ParticipantLeft(participantID string) {
	in.mu.Lock()
	delete(in.joined, participantID)
	onLeave := in.OnLeave
	in.mu.Unlock()

	in.logger.Info("participant left", "participant", participantID)
	if onLeave != nil {
		onLeave(participantID)
	}
}

// Output is the bot-facing tail of the pipeline. TransportMessage frames
// are JSON-encoded and broadcast to the session's event hub; synthesized
// audio is accounted for and dropped, since playback happens in the
// Daily room rather than in this process.
type Output struct {
	logger *slog.Logger
	events *hub.Hub

	mu         sync.Mutex
	audioBytes int64
}

var _ pipeline.Processor = (*Output)(nil)

// NewOutput creates the output endpoint backed by the given hub.
func NewOutput(events *hub.Hub) *Output {
	return &Output{
		logger: logx.Component("transport"),
		events: events,
	}
}

// Name implements pipeline.Processor.
func (out *Output) Name() string { return "transport-output" }

// Process implements pipeline.Processor. Downstream frames terminate
// here; anything else keeps flowing so the aggregators behind the output
// still see the response text.
func (out *Output) Process(_ context.Context, f frames.Frame, d pipeline.Direction, next pipeline.Emit) error {
	switch fr := f.(type) {
	case frames.TransportMessage:
		data, err := json.Marshal(fr.Payload)
		if err != nil {
			out.logger.Error("failed to encode event", "error", err)
			return nil
		}
		out.events.Broadcast(data)
		return nil

	case frames.TTSAudio:
		out.mu.Lock()
		out.audioBytes += int64(len(fr.Audio))
		out.mu.Unlock()
		return nil

	default:
		return next(f, d)
	}
}

// AudioBytes returns the total synthesized audio accounted for so far.
func (out *Output) AudioBytes() int64 {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.audioBytes
}
