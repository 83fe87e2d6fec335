package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the custom error type for the application
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// ErrorCode identifies an application error class
type ErrorCode int

const (
	ErrorCode_HTTP_OK ErrorCode = iota
	ErrorCode_INTERNAL
	ErrorCode_INVALID_ARGUMENT
	ErrorCode_NOT_FOUND
	ErrorCode_ALREADY_EXISTS
	ErrorCode_INVALID_PAYLOAD
	ErrorCode_DEVICE_UNAVAILABLE
	ErrorCode_TRANSPORT_ERROR
	ErrorCode_ANALYSIS_CALL_FAILED
	ErrorCode_ANALYSIS_IN_PROGRESS
	ErrorCode_MALFORMED_REMOTE_MESSAGE
	ErrorCode_CREDENTIAL_BROKER_FAILED
	ErrorCode_OBJECTIVE_PARSE_FAILED
	ErrorCode_SESSION_ALREADY_ACTIVE
	ErrorCode_SESSION_NOT_ACTIVE
	ErrorCode_INTEGRATION_STORAGE_FAILED
	ErrorCode_DB_QUERY_FAILED
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                    "HTTP_OK",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:             "ALREADY_EXISTS",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_DEVICE_UNAVAILABLE:         "DEVICE_UNAVAILABLE",
	ErrorCode_TRANSPORT_ERROR:            "TRANSPORT_ERROR",
	ErrorCode_ANALYSIS_CALL_FAILED:       "ANALYSIS_CALL_FAILED",
	ErrorCode_ANALYSIS_IN_PROGRESS:       "ANALYSIS_IN_PROGRESS",
	ErrorCode_MALFORMED_REMOTE_MESSAGE:   "MALFORMED_REMOTE_MESSAGE",
	ErrorCode_CREDENTIAL_BROKER_FAILED:   "CREDENTIAL_BROKER_FAILED",
	ErrorCode_OBJECTIVE_PARSE_FAILED:     "OBJECTIVE_PARSE_FAILED",
	ErrorCode_SESSION_ALREADY_ACTIVE:     "SESSION_ALREADY_ACTIVE",
	ErrorCode_SESSION_NOT_ACTIVE:         "SESSION_NOT_ACTIVE",
	ErrorCode_INTEGRATION_STORAGE_FAILED: "INTEGRATION_STORAGE_FAILED",
	ErrorCode_DB_QUERY_FAILED:            "DB_QUERY_FAILED",
}

// String returns the symbolic name of the error code
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", int(c))
}

// General Errors

func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTERNAL,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_ARGUMENT,
		Message:  message,
	}
}

func ErrNotFound(resource string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_NOT_FOUND,
		Message:  fmt.Sprintf("%s not found", resource),
	}
}

func ErrInvalidPayload() AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_PAYLOAD,
		Message:  "Invalid payload",
	}
}

// Audio Capture Errors

func ErrDeviceUnavailable(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusServiceUnavailable,
		Code:     ErrorCode_DEVICE_UNAVAILABLE,
		Message:  "Audio input device unavailable",
	}
}

// Streaming Transcription Errors

func ErrTransportError(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadGateway,
		Code:     ErrorCode_TRANSPORT_ERROR,
		Message:  "Transcription streaming connection failed",
	}
}

func ErrMalformedRemoteMessage(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadGateway,
		Code:     ErrorCode_MALFORMED_REMOTE_MESSAGE,
		Message:  "Undecodable message from transcription service",
	}
}

func ErrCredentialBrokerFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadGateway,
		Code:     ErrorCode_CREDENTIAL_BROKER_FAILED,
		Message:  "Failed to obtain transcription session credential",
	}
}

// AI Analysis Errors

func ErrAnalysisCallFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_ANALYSIS_CALL_FAILED,
		Message:  "Transcript analysis failed",
	}
}

func ErrAnalysisInProgress() AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_ANALYSIS_IN_PROGRESS,
		Message:  "An analysis pass is already in progress",
	}
}

func ErrObjectiveParseFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_OBJECTIVE_PARSE_FAILED,
		Message:  "Failed to clarify objectives",
	}
}

// Session Errors

func ErrSessionAlreadyActive(callID string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_SESSION_ALREADY_ACTIVE,
		Message:  "A live session is already active for this call",
	}.WithDetail("call_id", callID)
}

func ErrSessionNotActive(callID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_SESSION_NOT_ACTIVE,
		Message:  "No live session is active for this call",
	}.WithDetail("call_id", callID)
}

// Integration Errors

func ErrStorageFailed(operation string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTEGRATION_STORAGE_FAILED,
		Message:  fmt.Sprintf("Storage operation failed: %s", operation),
	}
}

// Database Errors

func ErrDBQueryFailed(query string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_DB_QUERY_FAILED,
		Message:  "Database query failed",
	}.WithDetail("query", query)
}
