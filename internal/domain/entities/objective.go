package entities

import "github.com/google/uuid"

// ObjectiveStatus constants
const (
	ObjectiveStatusPending    = "pending"
	ObjectiveStatusInProgress = "in_progress"
	ObjectiveStatusCompleted  = "completed"
)

// Objective is a prioritized goal for a call, produced at preparation time
// from AI-clarified input or manual entry. Completion only moves forward:
// once completed it is never reverted, regardless of later analysis output.
type Objective struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Completed   bool   `json:"completed"`
	Status      string `json:"status"`
}

// NewObjective creates an Objective with a fresh id and pending status
func NewObjective(title, description string, priority int) Objective {
	if priority < 1 {
		priority = 1
	}
	return Objective{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Completed:   false,
		Status:      ObjectiveStatusPending,
	}
}

// MarkCompleted flips the objective to its terminal state
func (o *Objective) MarkCompleted() {
	o.Completed = true
	o.Status = ObjectiveStatusCompleted
}
