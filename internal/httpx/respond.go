package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
)

type dataBody struct {
	Data any `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeAppError maps an error kind to a status code. Internal errors are logged and never
// shown to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, logger log.FieldLogger, err error) {
	entry := logger.WithField("request_id", middleware.GetReqID(r.Context())).WithError(err)

	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput, apperr.KindStateConflict:
		writeError(w, http.StatusBadRequest, apperr.Message(err))
	case apperr.KindConstraintViolation:
		entry.Warn("store rejected write")
		writeError(w, http.StatusBadRequest, apperr.Message(err))
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, apperr.Message(err))
	default:
		entry.Error("internal error")
		writeError(w, http.StatusInternalServerError, "Internal Server Error.")
	}
}
