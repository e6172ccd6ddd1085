package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/core"
)

// V1ListDatastores handles GET /v1/datastores, reporting the lock state of
// every datastore.
func V1ListDatastores(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendJSONResponse(w, http.StatusOK, map[string]interface{}{
			"datastores": engine.Status(r.Context()),
		})
	}
}

// V1GetDatastore handles GET /v1/datastores/{name}.
func V1GetDatastore(engine *core.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		st, err := engine.DatastoreStatus(r.Context(), name)
		if err != nil {
			SendErrorResponse(w, logger, err, http.StatusInternalServerError)
			return
		}
		SendJSONResponse(w, http.StatusOK, st)
	}
}
