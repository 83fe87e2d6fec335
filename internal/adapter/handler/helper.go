package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vatbq/lia/errors"
)

// Response envelopes shared by all handlers.
type success struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Info    string      `json:"info,omitempty"`
}

func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().Header.Get("X-Request-ID")
}

// handleSuccess writes the standard success envelope.
func handleSuccess(c echo.Context, logger *zap.Logger, data interface{}) error {
	if logger != nil {
		logger.Info("http.response.success",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
		)
	}

	return c.JSON(http.StatusOK, success{
		Code:    int(errors.ErrorCode_HTTP_OK),
		Message: "success",
		Data:    data,
	})
}

// handleError maps an AppError to its HTTP status and body; anything else
// becomes a 500.
func handleError(c echo.Context, logger *zap.Logger, err error) error {
	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		logResponseError(c, logger, err, appErr.Code)

		info := ""
		if appErr.Raw != nil {
			info = appErr.Raw.Error()
		}
		return c.JSON(appErr.HTTPCode, errs{
			Code:    appErr.Code,
			Message: appErr.Message,
			Info:    info,
		})
	}

	logResponseError(c, logger, err, nil)
	return c.JSON(http.StatusInternalServerError, errs{
		Code:    errors.ErrorCode_INTERNAL,
		Message: "Internal server error",
		Info:    err.Error(),
	})
}

func logResponseError(c echo.Context, logger *zap.Logger, err error, code interface{}) {
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("request_id", getRequestID(c)),
		zap.String("path", c.Path()),
		zap.Error(err),
	}
	if code != nil {
		fields = append(fields, zap.Any("app_code", code))
	}
	logger.Error("http.response.error", fields...)
}
