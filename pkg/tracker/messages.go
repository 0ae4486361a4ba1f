// Package tracker implements the pipeline status processors that keep the
// browser client informed of conversation progress.
//
// Three processors watch frames flowing through the bot pipeline and emit
// client-bound messages: STTProgress (user speech and transcription),
// LLMProgress (streamed assistant responses), and TTSStatus (speech
// synthesis activity). Every processor passes all frames through unchanged;
// the emitted messages travel downstream as transport message frames.
package tracker

import (
	"time"

	"github.com/teslashibe/go-voicebot/pkg/frames"
)

// Pipeline stage identifiers reported to the client.
const (
	StatusListening = "listening" // user is speaking, interim transcript available
	StatusSTT       = "stt"       // final transcription produced
	StatusLLM       = "llm"       // waiting on the language model
	StatusTTS       = "tts"       // bot audio is playing
	StatusIdle      = "idle"      // nothing in flight
)

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StatusMessage tells the client which pipeline stage is active.
type StatusMessage struct {
	Type   string `json:"type"` // always "status"
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

// TranscriptMessage carries incremental or final text for one conversation
// turn. MessageID groups the incremental updates of a single turn so the
// client can update bubbles in place.
type TranscriptMessage struct {
	Type      string `json:"type"` // always "transcript"
	Role      string `json:"role"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
	MessageID int    `json:"messageId,omitempty"`
}

func statusFrame(status, text string) frames.TransportMessage {
	return frames.TransportMessage{Payload: StatusMessage{
		Type:   "status",
		Status: status,
		Text:   text,
	}}
}

func transcriptFrame(role, text string, final bool, messageID int) frames.TransportMessage {
	return frames.TransportMessage{Payload: TranscriptMessage{
		Type:      "transcript",
		Role:      role,
		Text:      text,
		Final:     final,
		Timestamp: time.Now().UnixMilli(),
		MessageID: messageID,
	}}
}
