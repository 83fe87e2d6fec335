package entities

import (
	"time"

	"gorm.io/datatypes"
)

// CallRecord is the stored envelope for one prepared call: the free-text
// context and raw objectives entered by the user, the AI-clarified objective
// list, and everything the live session produced. The live pipeline never
// touches this directly; it publishes a one-shot snapshot at session end.
type CallRecord struct {
	ID                  string                                     `json:"id" gorm:"type:varchar(64);primary_key"`
	Name                string                                     `json:"name" gorm:"type:varchar(255);not null"`
	Context             string                                     `json:"context" gorm:"type:text"`
	Objectives          string                                     `json:"objectives" gorm:"type:text"`
	ParsedObjectives    []Objective                                `json:"parsed_objectives" gorm:"type:jsonb;serializer:json"`
	Constraints         []string                                   `json:"constraints" gorm:"type:jsonb;serializer:json"`
	Risks               []string                                   `json:"risks" gorm:"type:jsonb;serializer:json"`
	CompletedObjectives []string                                   `json:"completed_objectives" gorm:"type:jsonb;serializer:json"`
	ActionItems         []ActionItem                               `json:"action_items" gorm:"type:jsonb;serializer:json"`
	Insights            []Insight                                  `json:"insights" gorm:"type:jsonb;serializer:json"`
	Fragments           []Fragment                                 `json:"fragments" gorm:"type:jsonb;serializer:json"`
	RecordingURL        string                                     `json:"recording_url,omitempty" gorm:"type:text"`
	Metadata            datatypes.JSONType[map[string]interface{}] `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt           time.Time                                  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time                                  `json:"updated_at" gorm:"autoUpdateTime"`
	EndedAt             *time.Time                                 `json:"ended_at,omitempty"`
}

// TableName specifies the table name for GORM
func (CallRecord) TableName() string {
	return "calls"
}

// NewCallRecord creates a call record at preparation time
func NewCallRecord(name, context, objectives string) *CallRecord {
	return &CallRecord{
		ID:         NewCallID(),
		Name:       name,
		Context:    context,
		Objectives: objectives,
	}
}
