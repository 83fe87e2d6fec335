package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/audio"
)

// ConnState tracks the websocket connection lifecycle. There is no automatic
// reconnect; a failed connection stays in Error until the caller tears it
// down.
type ConnState int

const (
	ConnClosed ConnState = iota
	ConnConnecting
	ConnOpen
	ConnError
)

func (s ConnState) String() string {
	switch s {
	case ConnClosed:
		return "closed"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionOptions configures a transcription session.
type SessionOptions struct {
	URL                string
	Token              string
	TranscriptionModel string
	VADThreshold       float64
	PrefixPaddingMs    int
	SilenceDurationMs  int
}

// TranscriptHandler receives each completed utterance as the remote service
// finalizes it.
type TranscriptHandler func(itemID, text string)

// ErrorHandler receives transport failures and remote error events.
type ErrorHandler func(err error)

// Client streams PCM16 audio to a realtime transcription service over a
// websocket and surfaces completed transcripts.
type Client struct {
	opts         SessionOptions
	logger       *zap.Logger
	onTranscript TranscriptHandler
	onError      ErrorHandler

	mu    sync.Mutex
	state ConnState
	conn  *websocket.Conn

	writeMu sync.Mutex
	done    chan struct{}
}

// NewClient creates a disconnected client.
func NewClient(opts SessionOptions, onTranscript TranscriptHandler, onError ErrorHandler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:         opts,
		logger:       logger,
		onTranscript: onTranscript,
		onError:      onError,
		state:        ConnClosed,
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the transcription service, configures the session, and starts
// the read loop. The token is an ephemeral session credential, never the
// long-lived API key.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == ConnOpen || c.state == ConnConnecting {
		c.mu.Unlock()
		return apperrors.ErrSessionAlreadyActive("")
	}
	c.state = ConnConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{
		Subprotocols: []string{"realtime", "openai-insecure-api-key." + c.opts.Token},
	}
	conn, resp, err := dialer.DialContext(ctx, c.opts.URL, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.setState(ConnError)
		return apperrors.ErrTransportError(err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = ConnOpen
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if err := c.configureSession(); err != nil {
		c.Disconnect()
		c.setState(ConnError)
		return err
	}

	go c.readLoop(conn, done)
	c.logger.Info("transcription session connected", zap.String("url", c.opts.URL))
	return nil
}

func (c *Client) configureSession() error {
	update := sessionUpdate{
		Type: EventTypeSessionUpdate,
		Session: sessionConfig{
			InputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionCfg{
				Model: c.opts.TranscriptionModel,
			},
			TurnDetection: turnDetectionCfg{
				Type:              "server_vad",
				Threshold:         c.opts.VADThreshold,
				PrefixPaddingMs:   c.opts.PrefixPaddingMs,
				SilenceDurationMs: c.opts.SilenceDurationMs,
			},
		},
	}
	return c.writeJSON(update)
}

// Send streams one frame of PCM16 audio to the service.
func (c *Client) Send(frame audio.Frame) error {
	if c.State() != ConnOpen {
		return apperrors.ErrSessionNotActive("")
	}
	return c.writeJSON(bufferAppend{
		Type:  EventTypeBufferAppend,
		Audio: base64.StdEncoding.EncodeToString(audio.SamplesToBytes(frame)),
	})
}

// Commit flushes the remote input buffer, forcing transcription of whatever
// audio is pending.
func (c *Client) Commit() error {
	if c.State() != ConnOpen {
		return apperrors.ErrSessionNotActive("")
	}
	return c.writeJSON(bufferCommit{Type: EventTypeBufferCommit})
}

// Disconnect closes the connection. Safe to call in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.done = nil
	if c.state == ConnOpen || c.state == ConnConnecting {
		c.state = ConnClosed
	}
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return apperrors.ErrSessionNotActive("")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return apperrors.ErrTransportError(err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasOpen := c.state == ConnOpen
			if wasOpen {
				c.state = ConnError
			}
			c.mu.Unlock()
			if wasOpen {
				c.logger.Warn("transcription socket closed", zap.Error(err))
				if c.onError != nil {
					c.onError(apperrors.ErrTransportError(err))
				}
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Warn("dropping malformed realtime message", zap.Error(err))
			continue
		}
		event.Raw = data
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event Event) {
	switch event.Type {
	case EventTypeTranscriptionCompleted:
		if event.Transcript == "" {
			return
		}
		if c.onTranscript != nil {
			c.onTranscript(event.ItemID, event.Transcript)
		}
	case EventTypeSessionCreated, EventTypeSessionUpdated:
		c.logger.Debug("session event", zap.String("type", event.Type))
	case EventTypeSpeechStarted, EventTypeSpeechStopped, EventTypeBufferCommitted:
		c.logger.Debug("audio buffer event", zap.String("type", event.Type))
	case EventTypeError:
		msg := "remote error"
		if event.Error != nil {
			msg = event.Error.Message
		}
		c.logger.Error("transcription service error", zap.String("message", msg))
		if c.onError != nil {
			c.onError(apperrors.ErrMalformedRemoteMessage(nil).WithDetail("message", msg))
		}
	default:
		c.logger.Debug("ignoring realtime event", zap.String("type", event.Type))
	}
}
