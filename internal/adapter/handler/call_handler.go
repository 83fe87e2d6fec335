package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/domain/entities"
	"github.com/vatbq/lia/pkg/ai"
)

// CallStore persists call records
type CallStore interface {
	CreateCall(ctx context.Context, call *entities.CallRecord) error
	GetCallByID(ctx context.Context, callID string) (*entities.CallRecord, error)
	ListCalls(ctx context.Context) ([]entities.CallRecord, error)
	DeleteCall(ctx context.Context, callID string) error
}

// Clarifier rewrites free-text objectives into a structured checklist
type Clarifier interface {
	ClarifyObjectives(ctx context.Context, callContext, objectives string) (*ai.ClarifiedPlan, error)
}

// Call handles call preparation and retrieval endpoints
type Call struct {
	repo      CallStore
	clarifier Clarifier
	logger    *zap.Logger
}

// NewCallHandler creates a new call handler
func NewCallHandler(repo CallStore, clarifier Clarifier, logger *zap.Logger) *Call {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Call{
		repo:      repo,
		clarifier: clarifier,
		logger:    logger,
	}
}

// CreateCallRequest is the payload for preparing a call
type CreateCallRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	Context    string `json:"context"`
	Objectives string `json:"objectives" validate:"required"`
}

// CreateCall prepares a call: the raw objectives are clarified into a
// checklist before the record is stored.
// POST /v1/calls
func (h *Call) CreateCall(c echo.Context) error {
	var req CreateCallRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, h.logger, apperrors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return handleError(c, h.logger, apperrors.ErrInvalidArgument(err.Error()))
	}

	plan, err := h.clarifier.ClarifyObjectives(c.Request().Context(), req.Context, req.Objectives)
	if err != nil {
		return handleError(c, h.logger, apperrors.ErrObjectiveParseFailed(err))
	}

	call := entities.NewCallRecord(req.Name, req.Context, req.Objectives)
	call.ParsedObjectives = make([]entities.Objective, 0, len(plan.Objectives))
	for _, o := range plan.Objectives {
		call.ParsedObjectives = append(call.ParsedObjectives, entities.NewObjective(o.Name, o.Description, o.Priority))
	}
	call.Constraints = plan.Constraints
	call.Risks = plan.Risks

	if err := h.repo.CreateCall(c.Request().Context(), call); err != nil {
		return handleError(c, h.logger, apperrors.ErrDBQueryFailed("create call", err))
	}

	h.logger.Info("call prepared",
		zap.String("call_id", call.ID),
		zap.Int("objectives", len(call.ParsedObjectives)))
	return handleSuccess(c, h.logger, call)
}

// ListCalls returns all stored calls, newest first
// GET /v1/calls
func (h *Call) ListCalls(c echo.Context) error {
	calls, err := h.repo.ListCalls(c.Request().Context())
	if err != nil {
		return handleError(c, h.logger, apperrors.ErrDBQueryFailed("list calls", err))
	}
	return handleSuccess(c, h.logger, calls)
}

// GetCall returns one call record
// GET /v1/calls/:id
func (h *Call) GetCall(c echo.Context) error {
	call, err := h.repo.GetCallByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, apperrors.ErrDBQueryFailed("get call", err))
	}
	if call == nil {
		return handleError(c, h.logger, apperrors.ErrNotFound("call"))
	}
	return handleSuccess(c, h.logger, call)
}

// DeleteCall removes a call record
// DELETE /v1/calls/:id
func (h *Call) DeleteCall(c echo.Context) error {
	call, err := h.repo.GetCallByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, apperrors.ErrDBQueryFailed("get call", err))
	}
	if call == nil {
		return handleError(c, h.logger, apperrors.ErrNotFound("call"))
	}
	if err := h.repo.DeleteCall(c.Request().Context(), call.ID); err != nil {
		return handleError(c, h.logger, apperrors.ErrDBQueryFailed("delete call", err))
	}
	return handleSuccess(c, h.logger, map[string]string{"id": call.ID})
}
