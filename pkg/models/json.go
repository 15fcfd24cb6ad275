package models

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

const maxJSONBody = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// DecodeJSON reads a single JSON object from the body into v. Unknown fields
// are rejected so typos don't silently do nothing on a PATCH.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", fferrors.ErrValidation)
		}
		return fmt.Errorf("%w: failed to parse JSON payload: %v", fferrors.ErrValidation, err)
	}

	return nil
}
