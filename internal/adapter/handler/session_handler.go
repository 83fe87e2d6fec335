package handler

import (
	"encoding/binary"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/vatbq/lia/errors"
	"github.com/vatbq/lia/internal/audio"
	"github.com/vatbq/lia/internal/session"
)

// SessionHandler runs the live-session endpoints
type SessionHandler struct {
	manager  *session.Manager
	repo     CallStore
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager, repo CallStore, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		manager: manager,
		repo:    repo,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 4 * 1024,
			// origin filtering happens in the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// sessionStateResponse is the wire shape for live session state
type sessionStateResponse struct {
	CallID     string           `json:"call_id"`
	Connection string           `json:"connection,omitempty"`
	State      session.Snapshot `json:"state"`
	Text       string           `json:"transcription,omitempty"`
}

// StartSession spins up a live session for a prepared call
// POST /v1/calls/:id/session
func (h *SessionHandler) StartSession(c echo.Context) error {
	callID := c.Param("id")
	call, err := h.repo.GetCallByID(c.Request().Context(), callID)
	if err != nil {
		return handleError(c, h.logger, apperrors.ErrDBQueryFailed("get call", err))
	}
	if call == nil {
		return handleError(c, h.logger, apperrors.ErrNotFound("call"))
	}

	live, err := h.manager.StartSession(c.Request().Context(), call)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return handleSuccess(c, h.logger, sessionStateResponse{
		CallID:     callID,
		Connection: live.Controller.Connection().String(),
		State:      live.Controller.State(),
	})
}

// GetSession returns the current state of a live session
// GET /v1/calls/:id/session
func (h *SessionHandler) GetSession(c echo.Context) error {
	callID := c.Param("id")
	live, err := h.manager.Get(callID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return handleSuccess(c, h.logger, sessionStateResponse{
		CallID:     callID,
		Connection: live.Controller.Connection().String(),
		State:      live.Controller.State(),
		Text:       live.Controller.FullText(),
	})
}

// StopSession ends a live session and returns the final state
// DELETE /v1/calls/:id/session
func (h *SessionHandler) StopSession(c echo.Context) error {
	callID := c.Param("id")
	snap, err := h.manager.StopSession(c.Request().Context(), callID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return handleSuccess(c, h.logger, sessionStateResponse{
		CallID: callID,
		State:  snap,
	})
}

// Analyze forces an immediate analysis pass on a live session. The pass runs
// inline so a failure comes back as an error response instead of vanishing
// into the logs.
// POST /v1/calls/:id/session/analyze
func (h *SessionHandler) Analyze(c echo.Context) error {
	callID := c.Param("id")
	live, err := h.manager.Get(callID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if err := live.Controller.AnalyzeNow(c.Request().Context()); err != nil {
		return handleError(c, h.logger, err)
	}
	return handleSuccess(c, h.logger, sessionStateResponse{
		CallID:     callID,
		Connection: live.Controller.Connection().String(),
		State:      live.Controller.State(),
	})
}

// CompleteActionItem marks an action item done by hand
// POST /v1/calls/:id/session/action-items/:itemId/complete
func (h *SessionHandler) CompleteActionItem(c echo.Context) error {
	live, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if err := live.Controller.CompleteActionItem(c.Param("itemId")); err != nil {
		return handleError(c, h.logger, err)
	}
	return handleSuccess(c, h.logger, sessionStateResponse{
		CallID: c.Param("id"),
		State:  live.Controller.State(),
	})
}

// IngestAudio receives the caller's audio over a websocket. Each binary
// message carries a 4-byte little-endian sample rate followed by PCM16 LE
// samples.
// GET /v1/calls/:id/session/audio
func (h *SessionHandler) IngestAudio(c echo.Context) error {
	callID := c.Param("id")
	live, err := h.manager.Get(callID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("audio ingest upgrade failed",
			zap.String("call_id", callID), zap.Error(err))
		return err
	}
	defer conn.Close()

	h.logger.Info("audio ingest connected", zap.String("call_id", callID))
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info("audio ingest closed",
				zap.String("call_id", callID), zap.Error(err))
			return nil
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if len(data) < 4 {
			h.logger.Warn("dropping short audio message",
				zap.String("call_id", callID), zap.Int("bytes", len(data)))
			continue
		}
		sampleRate := int(binary.LittleEndian.Uint32(data[:4]))
		if sampleRate <= 0 {
			continue
		}
		live.Device.Push(audio.BytesToSamples(data[4:]), sampleRate)
	}
}
