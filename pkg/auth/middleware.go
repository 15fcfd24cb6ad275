package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

type sessionKey struct{}
type sessionIDKey struct{}

func WithSession(ctx context.Context, id string, s *Session) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey{}, id)
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session placed by Authenticated or LoadSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// Lookup resolves the request's session cookie. It returns nil, nil when the
// request carries no session or the session has expired.
func Lookup(r *http.Request, store Store) (string, *Session, error) {
	c, err := r.Cookie(SESSION_ID_COOKIE)
	if err != nil || c.Value == "" {
		return "", nil, nil
	}

	session, err := store.GetSession(r.Context(), c.Value)
	if err != nil {
		return "", nil, err
	}

	return c.Value, session, nil
}

// ErrorWriter writes err to the client. routes passes models.WriteError so
// this package doesn't depend on the response helpers.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticated rejects requests without a valid session with 401.
func Authenticated(store Store, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionId, session, err := Lookup(r, store)
			if err != nil {
				log.Error().Err(err).Msg("failed to get session")
				writeErr(w, r, err)
				return
			}

			if session == nil {
				writeErr(w, r, fferrors.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sessionId, session)))
		})
	}
}

// LoadSession attaches the session when there is one and never rejects.
// Store failures are logged and the request continues unauthenticated.
func LoadSession(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionId, session, err := Lookup(r, store)
			if err != nil {
				log.Warn().Err(err).Msg("failed to get session, continuing unauthenticated")
			}

			if session != nil {
				r = r.WithContext(WithSession(r.Context(), sessionId, session))
			}

			next.ServeHTTP(w, r)
		})
	}
}
