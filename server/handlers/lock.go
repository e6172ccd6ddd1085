package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/auth"
	"github.com/ebogdum/dslockd/core"
	"github.com/ebogdum/dslockd/server/middleware"
)

// lockRequest is the body of lock and unlock operations.
type lockRequest struct {
	SessionID uint32 `json:"session_id"`
}

// lockResponse acknowledges a successful lock or unlock.
type lockResponse struct {
	Status    string `json:"status"`
	Datastore string `json:"datastore"`
	SessionID uint32 `json:"session_id"`
}

// decodeLockRequest parses and validates the shared lock/unlock body.
func decodeLockRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (lockRequest, bool) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendErrorResponse(w, logger, &customError{message: "invalid request body"}, http.StatusBadRequest)
		return req, false
	}
	if req.SessionID == 0 {
		SendErrorResponse(w, logger, &customError{message: "session_id is required"}, http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// V1LockDatastore handles POST /v1/datastores/{name}/lock.
func V1LockDatastore(engine *core.Engine, authorizer auth.Authorizer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		username, ok := middleware.GetUserID(r.Context())
		if !ok {
			SendErrorResponse(w, logger, auth.ErrAuthenticationFailed, http.StatusUnauthorized)
			return
		}
		if err := authorizer.Authorize(r.Context(), username, name); err != nil {
			SendErrorResponse(w, logger, err, http.StatusForbidden)
			return
		}

		req, ok := decodeLockRequest(w, r, logger)
		if !ok {
			return
		}

		if err := engine.AcquireLock(r.Context(), req.SessionID, name); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, lockResponse{
			Status:    "locked",
			Datastore: name,
			SessionID: req.SessionID,
		})
	}
}

// V1UnlockDatastore handles POST /v1/datastores/{name}/unlock.
func V1UnlockDatastore(engine *core.Engine, authorizer auth.Authorizer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		username, ok := middleware.GetUserID(r.Context())
		if !ok {
			SendErrorResponse(w, logger, auth.ErrAuthenticationFailed, http.StatusUnauthorized)
			return
		}
		if err := authorizer.Authorize(r.Context(), username, name); err != nil {
			SendErrorResponse(w, logger, err, http.StatusForbidden)
			return
		}

		req, ok := decodeLockRequest(w, r, logger)
		if !ok {
			return
		}

		if err := engine.ReleaseLock(r.Context(), req.SessionID, name); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}

		SendJSONResponse(w, http.StatusOK, lockResponse{
			Status:    "unlocked",
			Datastore: name,
			SessionID: req.SessionID,
		})
	}
}
