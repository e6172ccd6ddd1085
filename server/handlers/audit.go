package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/audit"
	"github.com/ebogdum/dslockd/core"
)

// V1ListAuditEvents handles GET /v1/audit. Supported query parameters:
// datastore, session_id and limit.
func V1ListAuditEvents(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := audit.Filter{
			Datastore: r.URL.Query().Get("datastore"),
		}

		if raw := r.URL.Query().Get("session_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				SendErrorResponse(w, logger, &customError{message: "invalid session_id"}, http.StatusBadRequest)
				return
			}
			f.SessionID = uint32(id)
		}

		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				SendErrorResponse(w, logger, &customError{message: "invalid limit"}, http.StatusBadRequest)
				return
			}
			f.Limit = limit
		}

		events, err := engine.AuditEvents(r.Context(), f)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		SendJSONResponse(w, http.StatusOK, map[string]interface{}{
			"events": events,
		})
	}
}
