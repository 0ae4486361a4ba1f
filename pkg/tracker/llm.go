package tracker

import (
	"context"
	"strings"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// LLMProgress streams the assistant's response to the client. Each response
// gets a fresh message id; every delta re-sends the full accumulated text as
// a non-final transcript so the client can render it in place, and the
// response end promotes it to final.
type LLMProgress struct {
	assistantText      strings.Builder
	assistantMessageID int
}

// NewLLMProgress creates the LLM progress processor.
func NewLLMProgress() *LLMProgress {
	return &LLMProgress{}
}

// Name identifies the processor in logs.
func (p *LLMProgress) Name() string { return "llm-progress" }

// Process implements pipeline.Processor.
func (p *LLMProgress) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	switch fr := f.(type) {
	case frames.LLMFullResponseStart:
		p.assistantText.Reset()
		p.assistantMessageID++

	case frames.LLMText:
		p.assistantText.WriteString(fr.Text)
		msg := transcriptFrame(RoleAssistant, p.assistantText.String(), false, p.assistantMessageID)
		if err := out(msg, pipeline.Downstream); err != nil {
			return err
		}

	case frames.LLMFullResponseEnd:
		// An empty response emits no transcript at all.
		if p.assistantText.Len() > 0 {
			msg := transcriptFrame(RoleAssistant, p.assistantText.String(), true, p.assistantMessageID)
			if err := out(msg, pipeline.Downstream); err != nil {
				return err
			}
			p.assistantText.Reset()
		}
	}

	return out(f, d)
}
