package routes

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/auth"
	"github.com/fireflymap/api/pkg/database"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/metrics"
	"github.com/fireflymap/api/pkg/models"
)

type AuthRoutes struct {
	db           *gorm.DB
	sessions     auth.Store
	metrics      *metrics.Metrics
	uploadDir    string
	secureCookie bool
}

func NewAuthRoutes(db *gorm.DB, sessions auth.Store, m *metrics.Metrics, uploadDir string, secureCookie bool) *AuthRoutes {
	return &AuthRoutes{
		db:           db,
		sessions:     sessions,
		metrics:      m,
		uploadDir:    uploadDir,
		secureCookie: secureCookie,
	}
}

func (ar AuthRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(20, time.Minute))

		r.Post("/signup", ar.Signup)
		r.Post("/login", ar.Login)
	})

	r.Post("/logout", ar.Logout)
	r.Delete("/logout", ar.Logout)
	r.Get("/check_session", ar.CheckSession)

	return r
}

// signupForm reads credentials from a multipart form or a JSON body. The
// file header is nil when no picture was sent.
func (ar AuthRoutes) signupForm(w http.ResponseWriter, r *http.Request) (models.Credentials, *multipart.FileHeader, error) {
	var creds models.Credentials

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := models.DecodeJSON(r, &creds)
		return creds, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return creds, nil, fmt.Errorf("%w: profile_picture must be at most 5 MiB", fferrors.ErrValidation)
		}
		return creds, nil, fmt.Errorf("%w: failed to parse form: %v", fferrors.ErrValidation, err)
	}

	creds.Username = r.FormValue("username")
	creds.Password = r.FormValue("password")

	_, fh, err := r.FormFile("profile_picture")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return creds, nil, nil
		}
		return creds, nil, fmt.Errorf("%w: failed to read profile_picture: %v", fferrors.ErrValidation, err)
	}

	return creds, fh, nil
}

func (ar AuthRoutes) Signup(w http.ResponseWriter, r *http.Request) {
	creds, fh, err := ar.signupForm(w, r)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	creds.Username = strings.TrimSpace(creds.Username)
	if err := models.Validate(creds); err != nil {
		models.WriteError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	user := database.User{
		Username:     creds.Username,
		PasswordHash: hash,
	}

	var upload string
	if fh != nil {
		upload, err = saveUpload(ar.uploadDir, fh)
		if err != nil {
			models.WriteError(w, r, err)
			return
		}
		path := "/uploads/" + upload
		user.ProfilePicture = &path
	}

	if err := database.CreateUser(r.Context(), ar.db, &user); err != nil {
		removeUpload(ar.uploadDir, upload)
		models.WriteError(w, r, err)
		return
	}

	ar.metrics.Signups.Inc()
	log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user signed up")

	if err := ar.startSession(w, r, &user); err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusCreated, user)
}

func (ar AuthRoutes) Login(w http.ResponseWriter, r *http.Request) {
	var pl models.LoginPayload
	if err := models.DecodeJSON(r, &pl); err != nil {
		models.WriteError(w, r, err)
		return
	}
	if err := models.Validate(pl); err != nil {
		models.WriteError(w, r, err)
		return
	}

	user, err := database.GetUserByUsername(r.Context(), ar.db, pl.Username)
	if err != nil {
		if errors.Is(err, fferrors.ErrNotFound) {
			err = fferrors.ErrAuth
		}
		models.WriteError(w, r, err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, pl.Password); err != nil {
		models.WriteError(w, r, err)
		return
	}

	if err := ar.startSession(w, r, user); err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, user)
}

func (ar AuthRoutes) startSession(w http.ResponseWriter, r *http.Request, user *database.User) error {
	sID, err := ar.sessions.CreateSession(r.Context(), auth.Session{
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SESSION_ID_COOKIE,
		Value:    sID,
		Path:     "/",
		Expires:  time.Now().Add(auth.SESSION_TTL),
		MaxAge:   int(auth.SESSION_TTL.Seconds()),
		HttpOnly: true,
		Secure:   ar.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Logout always succeeds. A store failure is logged and the cookie is
// cleared anyway.
func (ar AuthRoutes) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SESSION_ID_COOKIE,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ar.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if c, err := r.Cookie(auth.SESSION_ID_COOKIE); err == nil && c.Value != "" {
		if err := ar.sessions.DeleteSession(r.Context(), c.Value); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

type sessionPayload struct {
	Authenticated bool           `json:"authenticated"`
	User          *database.User `json:"user"`
}

func (ar AuthRoutes) CheckSession(w http.ResponseWriter, r *http.Request) {
	_, s, err := auth.Lookup(r, ar.sessions)
	if err != nil {
		log.Warn().Err(err).Msg("session lookup failed")
	}
	if s == nil {
		models.WriteJSON(w, http.StatusOK, sessionPayload{})
		return
	}

	user, err := database.GetUserByID(r.Context(), ar.db, s.UserID)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", s.UserID).Msg("session points to a missing user")
		models.WriteJSON(w, http.StatusOK, sessionPayload{})
		return
	}

	models.WriteJSON(w, http.StatusOK, sessionPayload{Authenticated: true, User: user})
}
