package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/auth"
	"github.com/ebogdum/dslockd/locks"
	"github.com/ebogdum/dslockd/sessions"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// HolderSessionID names the conflicting holder for lock-denied errors,
	// when the holder is known to this daemon.
	HolderSessionID uint32 `json:"holder_session_id,omitempty"`
}

// customError is a simple error type for custom error messages
type customError struct {
	message string
}

func (e *customError) Error() string {
	return e.message
}

// SendErrorResponse sends a standardized JSON error response
func SendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error, defaultStatusCode int) {
	w.Header().Set("Content-Type", "application/json")

	var statusCode int
	var errorCode string
	var holderID uint32

	var conflict *locks.ConflictError
	var denied *locks.DeniedError
	var notLocked *locks.NotLockedError

	// Map specific errors to HTTP status codes and error codes
	switch {
	case errors.As(err, &conflict):
		statusCode = http.StatusConflict
		errorCode = "LOCK_DENIED"
		if conflict.Holder != nil {
			holderID = conflict.Holder.SessionID()
		}
	case errors.As(err, &denied):
		statusCode = http.StatusConflict
		errorCode = "LOCK_DENIED"
	case errors.As(err, &notLocked):
		statusCode = http.StatusConflict
		errorCode = "LOCK_NOT_ACTIVE"
	case errors.Is(err, locks.ErrUnknownDatastore):
		statusCode = http.StatusBadRequest
		errorCode = "UNKNOWN_DATASTORE"
	case errors.Is(err, sessions.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		errorCode = "SESSION_NOT_FOUND"
	case errors.Is(err, auth.ErrAuthenticationFailed):
		statusCode = http.StatusUnauthorized
		errorCode = "AUTHENTICATION_FAILED"
	case errors.Is(err, auth.ErrPermissionDenied):
		statusCode = http.StatusForbidden
		errorCode = "PERMISSION_DENIED"
	default:
		statusCode = defaultStatusCode
		errorCode = "INTERNAL_ERROR"
	}

	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Code:            errorCode,
		Message:         err.Error(),
		HolderSessionID: holderID,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
		// Fallback to plain text
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "Internal error occurred")
	}

	logger.Info("Error response sent",
		zap.String("error_code", errorCode),
		zap.Int("status_code", statusCode),
		zap.Error(err))
}

// SendJSONResponse sends a JSON response with any data structure
func SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more to do than drop it.
		return
	}
}
