package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeVendors stands in for Deepgram, OpenAI and Camb at once so a whole
// session can run against local servers.
type fakeVendors struct {
	deepgram *httptest.Server
	openai   *httptest.Server
	camb     *httptest.Server
}

func newFakeVendors(t *testing.T, replies []string) *fakeVendors {
	t.Helper()

	upgrader := websocket.Upgrader{}
	deepgram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(deepgram.Close)

	openai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, reply := range replies {
			fmt.Fprintf(w, `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", reply)
			flusher.Flush()
		}
		io.WriteString(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(openai.Close)

	camb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(make([]byte, 4800))
	}))
	t.Cleanup(camb.Close)

	return &fakeVendors{deepgram: deepgram, openai: openai, camb: camb}
}

func (v *fakeVendors) config() Config {
	return Config{
		RoomURL:        "https://example.daily.co/room-1",
		Token:          "token",
		DeepgramAPIKey: "dg-key",
		OpenAIAPIKey:   "oa-key",
		CambAPIKey:     "camb-key",
		DeepgramURL:    "ws" + strings.TrimPrefix(v.deepgram.URL, "http"),
		OpenAIBaseURL:  v.openai.URL,
		CambBaseURL:    v.camb.URL,
	}
}

func waitForContextLen(t *testing.T, s *Session, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.convo.Len() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("context length = %d, want >= %d", s.convo.Len(), want)
}

func TestNewRequiresRoomURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty room URL should fail")
	}
}

func TestNewAssignsSessionID(t *testing.T) {
	vendors := newFakeVendors(t, nil)
	s, err := New(vendors.config())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.ID == "" {
		t.Error("session ID is empty")
	}
	if s.Events().Session() != s.ID {
		t.Errorf("hub session = %q, want %q", s.Events().Session(), s.ID)
	}
}

func TestSessionGreetsFirstParticipant(t *testing.T) {
	vendors := newFakeVendors(t, []string{"Hello! ", "How can I help?"})
	s, err := New(vendors.config())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Input().ParticipantJoined("participant-1")

	// System prompt, greeting prompt, assistant reply.
	waitForContextLen(t, s, 3)

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session never stopped")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestSessionStopsWhenParticipantLeaves(t *testing.T) {
	vendors := newFakeVendors(t, nil)
	s, err := New(vendors.config())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Input().ParticipantJoined("participant-1")
	s.Input().ParticipantLeft("participant-1")

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after participant left")
	}
}
