package models

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func CreateError(kind, msg string) []byte {
	err, _ := json.Marshal(ErrorPayload{
		Error:   kind,
		Message: msg,
	})
	return err
}

// WriteError sends err as a structured payload. Internal errors are logged
// and replaced with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := fferrors.Status(err)
	msg := err.Error()

	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = "Something went wrong"
	} else {
		msg = capitalize(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(CreateError(fferrors.Kind(err), msg))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
