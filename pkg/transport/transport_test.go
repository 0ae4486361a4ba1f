package transport

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/hub"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

func TestInputFirstJoinFiresOnce(t *testing.T) {
	in := NewInput()

	var firstJoins int
	in.OnFirstJoin = func() { firstJoins++ }

	in.ParticipantJoined("alice")
	in.ParticipantJoined("bob")
	if firstJoins != 1 {
		t.Errorf("OnFirstJoin fired %d times, want 1", firstJoins)
	}
}

func TestInputLeaveCallback(t *testing.T) {
	in := NewInput()

	var left []string
	in.OnLeave = func(id string) { left = append(left, id) }

	in.ParticipantJoined("alice")
	in.ParticipantLeft("alice")
	if len(left) != 1 || left[0] != "alice" {
		t.Errorf("OnLeave = %v, want [alice]", left)
	}
}

func TestInputPushAudioInjects(t *testing.T) {
	in := NewInput()

	var injected []frames.Frame
	inject := func(f frames.Frame, d pipeline.Direction) error {
		if d != pipeline.Downstream {
			t.Errorf("direction = %v, want Downstream", d)
		}
		injected = append(injected, f)
		return nil
	}
	if err := in.Start(context.Background(), inject); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := in.PushAudio([]byte{1, 2, 3}, 16000); err != nil {
		t.Fatalf("PushAudio() error = %v", err)
	}
	if len(injected) != 1 {
		t.Fatalf("injected %d frames, want 1", len(injected))
	}
	audio, ok := injected[0].(frames.InputAudio)
	if !ok {
		t.Fatalf("frame = %T, want InputAudio", injected[0])
	}
	if audio.SampleRate != 16000 || len(audio.Audio) != 3 {
		t.Errorf("InputAudio = %+v", audio)
	}
}

func TestInputAbsorbsUpstreamFrames(t *testing.T) {
	in := NewInput()

	err := in.Process(context.Background(), frames.LLMText{Text: "x"}, pipeline.Upstream, func(frames.Frame, pipeline.Direction) error {
		t.Error("upstream frame should terminate at the input")
		return nil
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
}

func TestOutputBroadcastsTransportMessages(t *testing.T) {
	h := hub.New("test-session")
	go h.Run()
	t.Cleanup(h.Close)

	out := NewOutput(h)
	msg := frames.TransportMessage{Payload: map[string]string{"type": "status", "status": "listening"}}

	if err := out.Process(context.Background(), msg, pipeline.Downstream, nil); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// The hub had no subscribers; the broadcast just must not error or
	// block. Give the run loop a beat to drain it.
	time.Sleep(10 * time.Millisecond)
}

func TestOutputAccountsForAudio(t *testing.T) {
	out := NewOutput(hub.New("test-session"))

	out.Process(context.Background(), frames.TTSAudio{Audio: make([]byte, 100)}, pipeline.Downstream, nil)
	out.Process(context.Background(), frames.TTSAudio{Audio: make([]byte, 50)}, pipeline.Downstream, nil)
	if got := out.AudioBytes(); got != 150 {
		t.Errorf("AudioBytes() = %d, want 150", got)
	}
}

func TestOutputPassesResponseTextThrough(t *testing.T) {
	out := NewOutput(hub.New("test-session"))

	var forwarded []frames.Frame
	next := func(f frames.Frame, _ pipeline.Direction) error {
		forwarded = append(forwarded, f)
		return nil
	}
	out.Process(context.Background(), frames.LLMText{Text: "hello"}, pipeline.Downstream, next)
	out.Process(context.Background(), frames.LLMFullResponseEnd{}, pipeline.Downstream, next)
	if len(forwarded) != 2 {
		t.Fatalf("forwarded %d frames, want 2", len(forwarded))
	}
}
