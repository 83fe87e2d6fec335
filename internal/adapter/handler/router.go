package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vatbq/lia/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	callHandler    *Call
	sessionHandler *SessionHandler
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, callHandler *Call, sessionHandler *SessionHandler) *Router {
	return &Router{
		cfg:            cfg,
		callHandler:    callHandler,
		sessionHandler: sessionHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupCallRoutes(v1)
	rt.setupSessionRoutes(v1)
}

// setupCallRoutes configures call preparation routes
func (rt *Router) setupCallRoutes(g *echo.Group) {
	callGroup := g.Group("/calls")

	if rt.callHandler != nil {
		callGroup.POST("", rt.callHandler.CreateCall)
		callGroup.GET("", rt.callHandler.ListCalls)
		callGroup.GET("/:id", rt.callHandler.GetCall)
		callGroup.DELETE("/:id", rt.callHandler.DeleteCall)
	} else {
		callGroup.POST("", rt.notImplemented)
		callGroup.GET("", rt.notImplemented)
		callGroup.GET("/:id", rt.notImplemented)
		callGroup.DELETE("/:id", rt.notImplemented)
	}
}

// setupSessionRoutes configures live session routes
func (rt *Router) setupSessionRoutes(g *echo.Group) {
	sessionGroup := g.Group("/calls/:id/session")

	if rt.sessionHandler != nil {
		sessionGroup.POST("", rt.sessionHandler.StartSession)
		sessionGroup.GET("", rt.sessionHandler.GetSession)
		sessionGroup.DELETE("", rt.sessionHandler.StopSession)
		sessionGroup.POST("/analyze", rt.sessionHandler.Analyze)
		sessionGroup.POST("/action-items/:itemId/complete", rt.sessionHandler.CompleteActionItem)
		sessionGroup.GET("/audio", rt.sessionHandler.IngestAudio)
	} else {
		sessionGroup.POST("", rt.notImplemented)
		sessionGroup.GET("", rt.notImplemented)
		sessionGroup.DELETE("", rt.notImplemented)
		sessionGroup.POST("/analyze", rt.notImplemented)
		sessionGroup.POST("/action-items/:itemId/complete", rt.notImplemented)
		sessionGroup.GET("/audio", rt.notImplemented)
	}
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":   "This endpoint is not yet implemented",
		"path":    c.Request().URL.Path,
		"method":  c.Request().Method,
		"message": "Please initialize the required handler in main.go",
	})
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"environment": rt.cfg.Server.Environment,
	})
}
