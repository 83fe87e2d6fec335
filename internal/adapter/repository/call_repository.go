package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vatbq/lia/internal/domain/entities"
	"github.com/vatbq/lia/internal/session"
)

// CallRepository handles call record data operations
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// CreateCall persists a new call record
func (r *CallRepository) CreateCall(ctx context.Context, call *entities.CallRecord) error {
	if call == nil {
		return errors.New("call cannot be nil")
	}
	return r.db.WithContext(ctx).Create(call).Error
}

// GetCallByID retrieves a call by ID
func (r *CallRepository) GetCallByID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	var call entities.CallRecord
	if err := r.db.WithContext(ctx).Where("id = ?", callID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// ListCalls retrieves all calls, newest first
func (r *CallRepository) ListCalls(ctx context.Context) ([]entities.CallRecord, error) {
	var calls []entities.CallRecord
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// UpdateCall saves changes to an existing call record
func (r *CallRepository) UpdateCall(ctx context.Context, call *entities.CallRecord) error {
	if call == nil {
		return errors.New("call cannot be nil")
	}
	return r.db.WithContext(ctx).Save(call).Error
}

// DeleteCall removes a call record
func (r *CallRepository) DeleteCall(ctx context.Context, callID string) error {
	return r.db.WithContext(ctx).Where("id = ?", callID).Delete(&entities.CallRecord{}).Error
}

// FinishCall writes the final session state onto the call record
func (r *CallRepository) FinishCall(ctx context.Context, callID string, snap session.Snapshot, fragments []entities.Fragment, recordingURL string) error {
	call, err := r.GetCallByID(ctx, callID)
	if err != nil {
		return err
	}
	if call == nil {
		return gorm.ErrRecordNotFound
	}

	now := time.Now().UTC()
	call.ParsedObjectives = snap.Objectives
	call.CompletedObjectives = snap.CompletedObjectives
	call.ActionItems = snap.ActionItems
	call.Insights = snap.Insights
	call.Fragments = fragments
	call.EndedAt = &now
	if recordingURL != "" {
		call.RecordingURL = recordingURL
	}
	return r.db.WithContext(ctx).Save(call).Error
}
