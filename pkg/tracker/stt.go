package tracker

import (
	"context"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// STTProgress reports transcription progress. Interim results surface as a
// "listening" status with the partial text; a final transcription emits the
// user's transcript line and hands the conversation off to the LLM stage.
type STTProgress struct {
	userMessageID int
}

// NewSTTProgress creates the STT progress processor.
func NewSTTProgress() *STTProgress {
	return &STTProgress{}
}

// Name identifies the processor in logs.
func (p *STTProgress) Name() string { return "stt-progress" }

// Process implements pipeline.Processor.
func (p *STTProgress) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	switch fr := f.(type) {
	case frames.InterimTranscription:
		if err := out(statusFrame(StatusListening, fr.Text), pipeline.Downstream); err != nil {
			return err
		}

	case frames.Transcription:
		p.userMessageID++
		if err := out(statusFrame(StatusSTT, fr.Text), pipeline.Downstream); err != nil {
			return err
		}
		if err := out(transcriptFrame(RoleUser, fr.Text, true, p.userMessageID), pipeline.Downstream); err != nil {
			return err
		}
		if err := out(statusFrame(StatusLLM, ""), pipeline.Downstream); err != nil {
			return err
		}
	}

	return out(f, d)
}
