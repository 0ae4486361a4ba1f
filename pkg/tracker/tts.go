package tracker

import (
	"context"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// TTSStatus toggles the client between "tts" and "idle" as synthesized
// speech starts and stops. The speaking flag guards against emitting the
// same status twice in a row, including when an interruption and a TTS stop
// arrive for the same response.
type TTSStatus struct {
	speaking bool
}

// NewTTSStatus creates the TTS status processor.
func NewTTSStatus() *TTSStatus {
	return &TTSStatus{}
}

// Name identifies the processor in logs.
func (p *TTSStatus) Name() string { return "tts-status" }

// Process implements pipeline.Processor.
func (p *TTSStatus) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	switch f.(type) {
	case frames.StartInterruption:
		if p.speaking {
			p.speaking = false
			if err := out(statusFrame(StatusIdle, ""), pipeline.Downstream); err != nil {
				return err
			}
		}

	case frames.TTSStarted, frames.TTSSpeak:
		if !p.speaking {
			p.speaking = true
			if err := out(statusFrame(StatusTTS, ""), pipeline.Downstream); err != nil {
				return err
			}
		}

	case frames.TTSStopped:
		if p.speaking {
			p.speaking = false
			if err := out(statusFrame(StatusIdle, ""), pipeline.Downstream); err != nil {
				return err
			}
		}
	}

	return out(f, d)
}
