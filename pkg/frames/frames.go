// Package frames defines the typed events that flow through a bot pipeline.
//
// A frame is a discrete unit of pipeline data: a transcription result, an
// LLM token, a speech-synthesis boundary marker, or a control signal.
// Processors dispatch on the concrete frame type and forward frames they do
// not handle unchanged.
package frames

import "fmt"

// Frame is implemented by every pipeline event type.
type Frame interface {
	// Name returns a short identifier for logging.
	Name() string
}

// InputAudio carries one chunk of user audio from the transport.
type InputAudio struct {
	Audio      []byte
	SampleRate int
}

func (f InputAudio) Name() string { return fmt.Sprintf("input-audio(%dB)", len(f.Audio)) }

// InterimTranscription carries a partial, still-changing transcription of
// the user's in-progress speech.
type InterimTranscription struct {
	Text string
}

func (InterimTranscription) Name() string { return "interim-transcription" }

// Transcription carries a finalized transcription of a completed user turn.
type Transcription struct {
	Text string
}

func (Transcription) Name() string { return "transcription" }

// LLMRun requests a completion from the LLM stage using the current
// conversation context.
type LLMRun struct{}

func (LLMRun) Name() string { return "llm-run" }

// LLMFullResponseStart marks the beginning of a streamed LLM response.
type LLMFullResponseStart struct{}

func (LLMFullResponseStart) Name() string { return "llm-response-start" }

// LLMText carries one streamed text delta of an LLM response.
type LLMText struct {
	Text string
}

func (LLMText) Name() string { return "llm-text" }

// LLMFullResponseEnd marks the end of a streamed LLM response.
type LLMFullResponseEnd struct{}

func (LLMFullResponseEnd) Name() string { return "llm-response-end" }

// TTSStarted marks the start of speech synthesis output.
type TTSStarted struct{}

func (TTSStarted) Name() string { return "tts-started" }

// TTSStopped marks the end of speech synthesis output.
type TTSStopped struct{}

func (TTSStopped) Name() string { return "tts-stopped" }

// TTSSpeak requests direct synthesis of a literal string, bypassing the LLM.
type TTSSpeak struct {
	Text string
}

func (TTSSpeak) Name() string { return "tts-speak" }

// TTSAudio carries one chunk of synthesized audio.
type TTSAudio struct {
	Audio      []byte
	SampleRate int
}

func (f TTSAudio) Name() string { return fmt.Sprintf("tts-audio(%dB)", len(f.Audio)) }

// StartInterruption signals that the user started speaking while the bot
// was responding. Downstream stages cancel in-flight output.
type StartInterruption struct{}

func (StartInterruption) Name() string { return "start-interruption" }

// TransportMessage carries an application message bound for the client.
// The payload is JSON-encoded by the transport output.
type TransportMessage struct {
	Payload any
}

func (TransportMessage) Name() string { return "transport-message" }

// End requests an orderly pipeline shutdown. The task stops once the frame
// has traversed the full pipeline.
type End struct{}

func (End) Name() string { return "end" }
