package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{"validation", fmt.Errorf("%w: username is required", ErrValidation), http.StatusBadRequest, "validation_error"},
		{"auth", ErrAuth, http.StatusUnauthorized, "auth_error"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", fmt.Errorf("sighting 4: %w", ErrForbidden), http.StatusForbidden, "forbidden"},
		{"not_found", fmt.Errorf("user %q: %w", "bob", ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", ErrConflict, http.StatusConflict, "conflict"},
		{"unavailable", fmt.Errorf("%w: status 502", ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
			assert.Equal(t, tt.kind, Kind(tt.err))
		})
	}
}
