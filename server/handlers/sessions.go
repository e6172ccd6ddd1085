package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/auth"
	"github.com/ebogdum/dslockd/core"
	"github.com/ebogdum/dslockd/server/middleware"
	"github.com/ebogdum/dslockd/sessions"
)

// sessionResponse is the externally visible representation of a session.
type sessionResponse struct {
	SessionID  uint32    `json:"session_id"`
	Username   string    `json:"username"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

func toSessionResponse(s *sessions.Session) sessionResponse {
	return sessionResponse{
		SessionID:  s.SessionID(),
		Username:   s.Username(),
		RemoteAddr: s.RemoteAddr(),
		CreatedAt:  s.CreatedAt(),
		LastActive: s.LastActive(),
	}
}

// V1CreateSession handles POST /v1/sessions. The session is opened for the
// authenticated user; clients do not pick their own identity.
func V1CreateSession(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := middleware.GetUserID(r.Context())
		if !ok {
			SendErrorResponse(w, logger, auth.ErrAuthenticationFailed, http.StatusUnauthorized)
			return
		}

		s := engine.OpenSession(r.Context(), username, r.RemoteAddr)
		SendJSONResponse(w, http.StatusCreated, toSessionResponse(s))
	}
}

// V1ListSessions handles GET /v1/sessions.
func V1ListSessions(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := engine.Sessions(r.Context())
		out := make([]sessionResponse, 0, len(list))
		for _, s := range list {
			out = append(out, toSessionResponse(s))
		}
		SendJSONResponse(w, http.StatusOK, map[string]interface{}{
			"sessions": out,
		})
	}
}

// V1CloseSession handles DELETE /v1/sessions/{id}. Closing a session
// force-releases any datastore locks it still holds.
func V1CloseSession(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
		if err != nil {
			SendErrorResponse(w, logger, &customError{message: "invalid session id"}, http.StatusBadRequest)
			return
		}

		if err := engine.CloseSession(r.Context(), uint32(id)); err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
