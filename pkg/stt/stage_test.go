package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-voicebot/pkg/frames"
	"github.com/teslashibe/go-voicebot/pkg/pipeline"
)

type frameSink struct {
	mu     sync.Mutex
	frames []frames.Frame
}

func (s *frameSink) emit(f frames.Frame, _ pipeline.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *frameSink) snapshot() []frames.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frames.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *frameSink) waitFor(t *testing.T, want int) []frames.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, got %d", want, len(s.snapshot()))
	return nil
}

// fakeDeepgram upgrades incoming connections and plays back a scripted
// sequence of live API responses.
type fakeDeepgram struct {
	t       *testing.T
	script  []string
	mu      sync.Mutex
	request *http.Request
	audio   [][]byte
}

func (f *fakeDeepgram) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.request = r.Clone(context.Background())
	f.mu.Unlock()

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for _, msg := range f.script {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			f.mu.Lock()
			f.audio = append(f.audio, data)
			f.mu.Unlock()
		}
	}
}

func (f *fakeDeepgram) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.request
}

func (f *fakeDeepgram) audioChunks() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.audio))
	copy(out, f.audio)
	return out
}

func startStage(t *testing.T, fake *fakeDeepgram) (*Stage, *frameSink) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	stage, err := New(
		WithAPIKey("test-key"),
		WithListenURL("ws"+strings.TrimPrefix(srv.URL, "http")),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sink := &frameSink{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := stage.Start(ctx, sink.emit); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { stage.Stop() })

	return stage, sink
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(); err != ErrNoAPIKey {
		t.Errorf("New() error = %v, want %v", err, ErrNoAPIKey)
	}
}

func TestStartSendsAuthAndQuery(t *testing.T) {
	fake := &fakeDeepgram{t: t}
	_, _ = startStage(t, fake)

	req := fake.lastRequest()
	if req == nil {
		t.Fatal("server saw no request")
	}
	if got := req.Header.Get("Authorization"); got != "Token test-key" {
		t.Errorf("Authorization = %q, want %q", got, "Token test-key")
	}

	q := req.URL.Query()
	checks := map[string]string{
		"model":           ModelNova2,
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
		"interim_results": "true",
		"vad_events":      "true",
		"endpointing":     "300",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestInterimTranscription(t *testing.T) {
	fake := &fakeDeepgram{t: t, script: []string{
		`{"type":"Results","is_final":false,"speech_final":false,"channel":{"alternatives":[{"transcript":"hello th"}]}}`,
	}}
	_, sink := startStage(t, fake)

	got := sink.waitFor(t, 1)
	interim, ok := got[0].(frames.InterimTranscription)
	if !ok {
		t.Fatalf("frame = %T, want InterimTranscription", got[0])
	}
	if interim.Text != "hello th" {
		t.Errorf("Text = %q, want %q", interim.Text, "hello th")
	}
}

func TestFinalTranscriptionAccumulatesSegments(t *testing.T) {
	fake := &fakeDeepgram{t: t, script: []string{
		`{"type":"Results","is_final":true,"speech_final":false,"channel":{"alternatives":[{"transcript":"hello there"}]}}`,
		`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"how are you"}]}}`,
	}}
	_, sink := startStage(t, fake)

	got := sink.waitFor(t, 1)
	final, ok := got[0].(frames.Transcription)
	if !ok {
		t.Fatalf("frame = %T, want Transcription", got[0])
	}
	if final.Text != "hello there how are you" {
		t.Errorf("Text = %q, want %q", final.Text, "hello there how are you")
	}
}

func TestSpeechStartedInjectsInterruption(t *testing.T) {
	fake := &fakeDeepgram{t: t, script: []string{
		`{"type":"SpeechStarted"}`,
	}}
	_, sink := startStage(t, fake)

	got := sink.waitFor(t, 1)
	if _, ok := got[0].(frames.StartInterruption); !ok {
		t.Errorf("frame = %T, want StartInterruption", got[0])
	}
}

func TestUtteranceEndFlushesUnendedSegment(t *testing.T) {
	fake := &fakeDeepgram{t: t, script: []string{
		`{"type":"SpeechStarted"}`,
		`{"type":"Results","is_final":true,"speech_final":false,"channel":{"alternatives":[{"transcript":"lost my train of thought"}]}}`,
		`{"type":"UtteranceEnd"}`,
	}}
	_, sink := startStage(t, fake)

	got := sink.waitFor(t, 2)
	final, ok := got[1].(frames.Transcription)
	if !ok {
		t.Fatalf("frame = %T, want Transcription", got[1])
	}
	if final.Text != "lost my train of thought" {
		t.Errorf("Text = %q, want %q", final.Text, "lost my train of thought")
	}
}

func TestEmptyFinalTranscriptEmitsNothing(t *testing.T) {
	fake := &fakeDeepgram{t: t, script: []string{
		`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"  "}]}}`,
	}}
	_, sink := startStage(t, fake)

	time.Sleep(100 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 0 {
		t.Errorf("got %d frames, want 0: %v", len(got), got)
	}
}

func TestProcessForwardsAudio(t *testing.T) {
	fake := &fakeDeepgram{t: t}
	stage, _ := startStage(t, fake)

	chunk := []byte{1, 2, 3, 4}
	err := stage.Process(context.Background(), frames.InputAudio{Audio: chunk, SampleRate: 16000}, pipeline.Downstream, func(frames.Frame, pipeline.Direction) error {
		t.Error("audio frame should not be forwarded")
		return nil
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if chunks := fake.audioChunks(); len(chunks) == 1 {
			if string(chunks[0]) != string(chunk) {
				t.Errorf("server got %v, want %v", chunks[0], chunk)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never received the audio chunk")
}

func TestProcessPassesOtherFramesThrough(t *testing.T) {
	fake := &fakeDeepgram{t: t}
	stage, _ := startStage(t, fake)

	var forwarded []frames.Frame
	out := func(f frames.Frame, _ pipeline.Direction) error {
		forwarded = append(forwarded, f)
		return nil
	}
	if err := stage.Process(context.Background(), frames.LLMText{Text: "hi"}, pipeline.Downstream, out); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(forwarded) != 1 {
		t.Fatalf("forwarded %d frames, want 1", len(forwarded))
	}
}
