package entities

import "time"

// InsightType constants
const (
	InsightTypePositive = "positive"
	InsightTypeNegative = "negative"
	InsightTypeNeutral  = "neutral"
	InsightTypeWarning  = "warning"
)

// Insight is an observation about the conversation surfaced by the analysis
// step. Insights are immutable once created; later analysis responses include
// them unchanged in their complete lists.
type Insight struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewInsight creates an Insight with a generated id and current timestamp
func NewInsight(title, description, insightType string) Insight {
	if insightType == "" {
		insightType = InsightTypeNeutral
	}
	return Insight{
		ID:          NewInsightID(),
		Title:       title,
		Description: description,
		Type:        insightType,
		Timestamp:   time.Now().UTC(),
	}
}
