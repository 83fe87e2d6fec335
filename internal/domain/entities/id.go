package entities

import (
	"fmt"
	"math/rand"
	"time"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// prefixedID builds ids of the form "<prefix>-<unix ms>-<rand>", matching the
// format the analysis layer emits for items it creates itself.
func prefixedID(prefix string) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), string(suffix))
}

// NewActionItemID generates a unique action item id
func NewActionItemID() string {
	return prefixedID("action")
}

// NewInsightID generates a unique insight id
func NewInsightID() string {
	return prefixedID("insight")
}

// NewCallID generates a unique call record id
func NewCallID() string {
	return prefixedID("call")
}
