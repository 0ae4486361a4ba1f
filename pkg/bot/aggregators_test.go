package bot

import (
	"context"
	"testing"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/llm"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

type capture struct {
	frames []frames.Frame
}

func (c *capture) emit(f frames.Frame, _ pipeline.Direction) error {
	c.frames = append(c.frames, f)
	return nil
}

func TestUserAggregatorTriggersRun(t *testing.T) {
	convo := llm.NewContext(llm.SystemPrompt)
	agg := NewUserAggregator(convo)
	out := &capture{}

	if err := agg.Process(context.Background(), frames.Transcription{Text: "what is the weather"}, pipeline.Downstream, out.emit); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if convo.Len() != 2 {
		t.Errorf("context length = %d, want 2", convo.Len())
	}
	if len(out.frames) != 2 {
		t.Fatalf("emitted %d frames, want 2", len(out.frames))
	}
	if _, ok := out.frames[0].(frames.Transcription); !ok {
		t.Errorf("frame 0 = %T, want Transcription", out.frames[0])
	}
	if _, ok := out.frames[1].(frames.LLMRun); !ok {
		t.Errorf("frame 1 = %T, want LLMRun", out.frames[1])
	}
}

func TestUserAggregatorIgnoresInterim(t *testing.T) {
	convo := llm.NewContext(llm.SystemPrompt)
	agg := NewUserAggregator(convo)
	out := &capture{}

	agg.Process(context.Background(), frames.InterimTranscription{Text: "what is"}, pipeline.Downstream, out.emit)

	if convo.Len() != 1 {
		t.Errorf("context length = %d, want 1", convo.Len())
	}
	if len(out.frames) != 1 {
		t.Errorf("emitted %d frames, want 1 (pass-through)", len(out.frames))
	}
}

func TestAssistantAggregatorCommitsResponse(t *testing.T) {
	convo := llm.NewContext(llm.SystemPrompt)
	agg := NewAssistantAggregator(convo)
	out := &capture{}

	ctx := context.Background()
	agg.Process(ctx, frames.LLMFullResponseStart{}, pipeline.Downstream, out.emit)
	agg.Process(ctx, frames.LLMText{Text: "Hi "}, pipeline.Downstream, out.emit)
	agg.Process(ctx, frames.LLMText{Text: "there!"}, pipeline.Downstream, out.emit)
	agg.Process(ctx, frames.LLMFullResponseEnd{}, pipeline.Downstream, out.emit)

	if convo.Len() != 2 {
		t.Fatalf("context length = %d, want 2", convo.Len())
	}
}

func TestAssistantAggregatorCommitsPartialOnInterruption(t *testing.T) {
	convo := llm.NewContext(llm.SystemPrompt)
	agg := NewAssistantAggregator(convo)
	out := &capture{}

	ctx := context.Background()
	agg.Process(ctx, frames.LLMFullResponseStart{}, pipeline.Downstream, out.emit)
	agg.Process(ctx, frames.LLMText{Text: "Once upon a"}, pipeline.Downstream, out.emit)
	agg.Process(ctx, frames.StartInterruption{}, pipeline.Downstream, out.emit)
	// End of the canceled run arrives afterwards with nothing new.
	agg.Process(ctx, frames.LLMFullResponseEnd{}, pipeline.Downstream, out.emit)

	if convo.Len() != 2 {
		t.Errorf("context length = %d, want 2 (partial committed once)", convo.Len())
	}
}

func TestAssistantAggregatorSkipsEmptyResponse(t *testing.T) {
	convo := llm.NewContext(llm.SystemPrompt)
	agg := NewAssistantAggregator(convo)
	out := &capture{}

	ctx := context.Background()
	agg.Process(ctx, frames.LLMFullResponseStart{}, pipeline.Downstream, out.emit)
	agg.Process(ctx, frames.LLMFullResponseEnd{}, pipeline.Downstream, out.emit)

	if convo.Len() != 1 {
		t.Errorf("context length = %d, want 1", convo.Len())
	}
}
