package bot

import (
	"context"
	"strings"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/llm"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

// UserAggregator sits between the transcriber and the language model. A
// final transcription becomes a user turn in the conversation context and
// triggers a completion run.
type UserAggregator struct {
	convo *llm.Context
}

var _ pipeline.Processor = (*UserAggregator)(nil)

// NewUserAggregator creates the user-side context aggregator.
func NewUserAggregator(convo *llm.Context) *UserAggregator {
	return &UserAggregator{convo: convo}
}

// Name implements pipeline.Processor.
func (a *UserAggregator) Name() string { return "user-aggregator" }

// Process implements pipeline.Processor.
func (a *UserAggregator) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	if tr, ok := f.(frames.Transcription); ok {
		a.convo.AddUserMessage(tr.Text)
		if err := out(f, d); err != nil {
			return err
		}
		return out(frames.LLMRun{}, pipeline.Downstream)
	}
	return out(f, d)
}

// AssistantAggregator sits at the tail of the pipeline and folds the
// streamed response back into the conversation context once it completes.
// An interrupted response is committed as far as it got, so the model
// knows what the user actually heard.
type AssistantAggregator struct {
	convo    *llm.Context
	response strings.Builder
}

var _ pipeline.Processor = (*AssistantAggregator)(nil)

// NewAssistantAggregator creates the assistant-side context aggregator.
func NewAssistantAggregator(convo *llm.Context) *AssistantAggregator {
	return &AssistantAggregator{convo: convo}
}

// Name implements pipeline.Processor.
func (a *AssistantAggregator) Name() string { return "assistant-aggregator" }

// Process implements pipeline.Processor.
func (a *AssistantAggregator) Process(_ context.Context, f frames.Frame, d pipeline.Direction, out pipeline.Emit) error {
	switch fr := f.(type) {
	case frames.LLMFullResponseStart:
		a.response.Reset()
	case frames.LLMText:
		a.response.WriteString(fr.Text)
	case frames.LLMFullResponseEnd:
		a.commit()
	case frames.StartInterruption:
		a.commit()
	}
	return out(f, d)
}

func (a *AssistantAggregator) commit() {
	text := strings.TrimSpace(a.response.String())
	a.response.Reset()
	if text != "" {
		a.convo.AddAssistantMessage(text)
	}
}
