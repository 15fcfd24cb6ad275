package routes

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/database"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/metrics"
	"github.com/fireflymap/api/pkg/models"
)

const searchLimit = 25

type FriendRoutes struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewFriendRoutes(db *gorm.DB, m *metrics.Metrics) *FriendRoutes {
	return &FriendRoutes{db: db, metrics: m}
}

func (fr FriendRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", fr.List)
	r.Get("/search", fr.Search)

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(
			httprate.KeyByEndpoint,
			sessionKey,
		)))

		r.Post("/", fr.Add)
	})

	r.Delete("/{id}", fr.Remove)
	r.Get("/{id}/sightings", fr.Sightings)

	return r
}

func (fr FriendRoutes) List(w http.ResponseWriter, r *http.Request) {
	friends, err := database.ListFriends(r.Context(), fr.db, session(r).UserID)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, friends)
}

func (fr FriendRoutes) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		models.WriteError(w, r, fmt.Errorf("%w: q is required", fferrors.ErrValidation))
		return
	}

	users, err := database.SearchUsers(r.Context(), fr.db, q, session(r).UserID, searchLimit)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, users)
}

func (fr FriendRoutes) Add(w http.ResponseWriter, r *http.Request) {
	var pl models.AddFriendPayload
	if err := models.DecodeJSON(r, &pl); err != nil {
		models.WriteError(w, r, err)
		return
	}
	pl.Username = strings.TrimSpace(pl.Username)
	if err := models.Validate(pl); err != nil {
		models.WriteError(w, r, err)
		return
	}

	friend, err := database.AddFriend(r.Context(), fr.db, session(r).UserID, pl.Username)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	fr.metrics.Friendships.WithLabelValues("add").Inc()
	models.WriteJSON(w, http.StatusCreated, friend)
}

func (fr FriendRoutes) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	if err := database.RemoveFriend(r.Context(), fr.db, session(r).UserID, id); err != nil {
		models.WriteError(w, r, err)
		return
	}

	fr.metrics.Friendships.WithLabelValues("remove").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// Sightings lists a friend's sightings. The same bbox filters as
// GET /sightings apply.
func (fr FriendRoutes) Sightings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	box, err := models.ParseBoundingBox(r.URL.Query())
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	ok, err := database.AreFriends(r.Context(), fr.db, session(r).UserID, id)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}
	if !ok {
		models.WriteError(w, r, fmt.Errorf("not friends with user %d: %w", id, fferrors.ErrForbidden))
		return
	}

	sightings, err := database.ListSightings(r.Context(), fr.db, id, box)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, sightings)
}
