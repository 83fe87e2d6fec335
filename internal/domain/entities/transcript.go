package entities

import "time"

// Fragment is one completed utterance-level transcription unit received from
// the streaming transcription service. The id is opaque and assigned by the
// service; fragments are never mutated after creation.
type Fragment struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}
