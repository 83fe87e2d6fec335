package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/vatbq/lia/internal/domain/entities"
)

// Aggregator accumulates finalized utterances in arrival order and exposes
// the space-joined full text.
type Aggregator struct {
	mu        sync.RWMutex
	fragments []entities.Fragment
	fullText  string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append adds one finalized utterance. Empty and whitespace-only transcripts
// are rejected; accepted text is stored exactly as the service delivered it.
// Returns true when the fragment was accepted.
func (a *Aggregator) Append(itemID, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.fragments = append(a.fragments, entities.Fragment{
		ID:         itemID,
		Text:       text,
		CapturedAt: time.Now().UTC(),
	})
	if a.fullText == "" {
		a.fullText = text
	} else {
		a.fullText += " " + text
	}
	return true
}

// FullText returns all accepted fragments joined with single spaces.
func (a *Aggregator) FullText() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fullText
}

// Len returns the number of accepted fragments.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.fragments)
}

// Fragments returns a copy of the accepted fragments in arrival order.
func (a *Aggregator) Fragments() []entities.Fragment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]entities.Fragment, len(a.fragments))
	copy(out, a.fragments)
	return out
}

// Reset discards everything accumulated so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fragments = nil
	a.fullText = ""
}
