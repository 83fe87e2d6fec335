package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vatbq/lia/internal/audio"
)

type fakeServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subprotocol string
	received    []map[string]interface{}
	conn        *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"realtime"},
		},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.subprotocol = r.Header.Get("Sec-WebSocket-Protocol")
		f.mu.Unlock()

		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			f.mu.Lock()
			f.received = append(f.received, msg)
			f.mu.Unlock()
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeServer) push(t *testing.T, payload string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn != nil {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				t.Fatalf("server write failed: %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no client connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (f *fakeServer) waitMessages(t *testing.T, n int) []map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		got := len(f.received)
		msgs := make([]map[string]interface{}, got)
		copy(msgs, f.received)
		f.mu.Unlock()
		if got >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d messages, got %d", n, got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testOptions(url string) SessionOptions {
	return SessionOptions{
		URL:                url,
		Token:              "ephemeral-token",
		TranscriptionModel: "gpt-4o-mini-transcribe",
		VADThreshold:       0.5,
		PrefixPaddingMs:    300,
		SilenceDurationMs:  500,
	}
}

func TestClientConnectSendsSessionUpdate(t *testing.T) {
	server := newFakeServer(t)
	client := NewClient(testOptions(server.url()), nil, nil, nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Disconnect()

	if client.State() != ConnOpen {
		t.Fatalf("expected open, got %s", client.State())
	}

	server.mu.Lock()
	proto := server.subprotocol
	server.mu.Unlock()
	if !strings.Contains(proto, "openai-insecure-api-key.ephemeral-token") {
		t.Errorf("token not offered as subprotocol: %q", proto)
	}

	msgs := server.waitMessages(t, 1)
	if msgs[0]["type"] != EventTypeSessionUpdate {
		t.Fatalf("first message type = %v, want session.update", msgs[0]["type"])
	}
	session := msgs[0]["session"].(map[string]interface{})
	if session["input_audio_format"] != "pcm16" {
		t.Errorf("input_audio_format = %v", session["input_audio_format"])
	}
	td := session["turn_detection"].(map[string]interface{})
	if td["type"] != "server_vad" {
		t.Errorf("turn_detection type = %v", td["type"])
	}
	if td["silence_duration_ms"].(float64) != 500 {
		t.Errorf("silence_duration_ms = %v", td["silence_duration_ms"])
	}
}

func TestClientSendEncodesAudio(t *testing.T) {
	server := newFakeServer(t)
	client := NewClient(testOptions(server.url()), nil, nil, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer client.Disconnect()

	frame := audio.Frame{1, 2, 3}
	if err := client.Send(frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := client.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	msgs := server.waitMessages(t, 3) // session.update, append, commit
	if msgs[1]["type"] != EventTypeBufferAppend {
		t.Fatalf("second message type = %v", msgs[1]["type"])
	}
	decoded, err := base64.StdEncoding.DecodeString(msgs[1]["audio"].(string))
	if err != nil {
		t.Fatalf("audio not base64: %v", err)
	}
	samples := audio.BytesToSamples(decoded)
	if len(samples) != 3 || samples[0] != 1 {
		t.Fatalf("unexpected decoded samples: %v", samples)
	}
	if msgs[2]["type"] != EventTypeBufferCommit {
		t.Fatalf("third message type = %v", msgs[2]["type"])
	}
}

func TestClientDispatchesTranscripts(t *testing.T) {
	server := newFakeServer(t)

	transcripts := make(chan string, 4)
	client := NewClient(testOptions(server.url()), func(itemID, text string) {
		transcripts <- itemID + ":" + text
	}, nil, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer client.Disconnect()

	event, _ := json.Marshal(map[string]string{
		"type":       EventTypeTranscriptionCompleted,
		"item_id":    "item_1",
		"transcript": "hello world",
	})
	server.push(t, string(event))

	select {
	case got := <-transcripts:
		if got != "item_1:hello world" {
			t.Fatalf("unexpected transcript: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transcript not delivered")
	}
}

func TestClientDropsMalformedMessages(t *testing.T) {
	server := newFakeServer(t)

	transcripts := make(chan string, 4)
	client := NewClient(testOptions(server.url()), func(_, text string) {
		transcripts <- text
	}, nil, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer client.Disconnect()

	server.push(t, "{not json")
	event, _ := json.Marshal(map[string]string{
		"type":       EventTypeTranscriptionCompleted,
		"transcript": "still alive",
	})
	server.push(t, string(event))

	select {
	case got := <-transcripts:
		if got != "still alive" {
			t.Fatalf("unexpected transcript: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client stopped processing after malformed message")
	}
}

func TestClientIgnoresEmptyTranscripts(t *testing.T) {
	server := newFakeServer(t)

	transcripts := make(chan string, 4)
	client := NewClient(testOptions(server.url()), func(_, text string) {
		transcripts <- text
	}, nil, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer client.Disconnect()

	empty, _ := json.Marshal(map[string]string{"type": EventTypeTranscriptionCompleted, "transcript": ""})
	server.push(t, string(empty))
	real, _ := json.Marshal(map[string]string{"type": EventTypeTranscriptionCompleted, "transcript": "kept"})
	server.push(t, string(real))

	got := <-transcripts
	if got != "kept" {
		t.Fatalf("empty transcript was not filtered, got %q", got)
	}
}

func TestClientTransportErrorState(t *testing.T) {
	server := newFakeServer(t)

	errs := make(chan error, 1)
	client := NewClient(testOptions(server.url()), nil, func(err error) {
		errs <- err
	}, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Server dies underneath the client.
	server.waitMessages(t, 1)
	server.mu.Lock()
	server.conn.Close()
	server.mu.Unlock()

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("transport error not surfaced")
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.State() != ConnError {
		if time.Now().After(deadline) {
			t.Fatalf("expected error state, got %s", client.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClientSendWhileClosed(t *testing.T) {
	client := NewClient(testOptions("ws://127.0.0.1:0"), nil, nil, nil)
	if err := client.Send(audio.Frame{1}); err == nil {
		t.Fatal("expected error sending while closed")
	}
	if err := client.Commit(); err == nil {
		t.Fatal("expected error committing while closed")
	}
}

func TestClientConnectFailure(t *testing.T) {
	client := NewClient(testOptions("ws://127.0.0.1:1"), nil, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected connect failure")
	}
	if client.State() != ConnError {
		t.Fatalf("expected error state, got %s", client.State())
	}
}
