package entities

import "time"

// ActionItemPriority constants
const (
	ActionItemPriorityLow    = "low"
	ActionItemPriorityMedium = "medium"
	ActionItemPriorityHigh   = "high"
)

// ActionItem is a follow-up task extracted from the conversation by the
// analysis step. Completion may additionally be set by explicit user action
// and is never unset afterwards.
type ActionItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Completed   bool      `json:"completed"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewActionItem creates an ActionItem with a generated id and current timestamp
func NewActionItem(title, description, priority string) ActionItem {
	if priority == "" {
		priority = ActionItemPriorityMedium
	}
	return ActionItem{
		ID:          NewActionItemID(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Completed:   false,
		Timestamp:   time.Now().UTC(),
	}
}
