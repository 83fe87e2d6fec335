package realtime

import "encoding/json"

// Server event types the transcription session emits.
const (
	EventTypeSessionCreated         = "session.created"
	EventTypeSessionUpdated         = "session.updated"
	EventTypeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventTypeBufferCommitted        = "input_audio_buffer.committed"
	EventTypeSpeechStarted          = "input_audio_buffer.speech_started"
	EventTypeSpeechStopped          = "input_audio_buffer.speech_stopped"
	EventTypeError                  = "error"
)

// Client event types.
const (
	EventTypeSessionUpdate = "session.update"
	EventTypeBufferAppend  = "input_audio_buffer.append"
	EventTypeBufferCommit  = "input_audio_buffer.commit"
)

// Event is a decoded server event. Only the fields the session cares about
// are pulled out; the raw payload stays available for logging.
type Event struct {
	Type       string          `json:"type"`
	ItemID     string          `json:"item_id,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Error      *EventError     `json:"error,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// EventError carries the error payload of an "error" event.
type EventError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sessionUpdate configures the transcription session right after connect.
type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	InputAudioFormat        string           `json:"input_audio_format"`
	InputAudioTranscription transcriptionCfg `json:"input_audio_transcription"`
	TurnDetection           turnDetectionCfg `json:"turn_detection"`
}

type transcriptionCfg struct {
	Model string `json:"model"`
}

type turnDetectionCfg struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type bufferAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type bufferCommit struct {
	Type string `json:"type"`
}
