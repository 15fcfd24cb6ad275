package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/database"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/metrics"
	"github.com/fireflymap/api/pkg/models"
)

type SightingRoutes struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewSightingRoutes(db *gorm.DB, m *metrics.Metrics) *SightingRoutes {
	return &SightingRoutes{db: db, metrics: m}
}

func (sr SightingRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", sr.List)
	r.Post("/", sr.Create)
	r.Get("/count", sr.Count)

	r.Get("/{id}", sr.Get)
	r.Patch("/{id}", sr.Update)
	r.Delete("/{id}", sr.Delete)

	return r
}

func (sr SightingRoutes) List(w http.ResponseWriter, r *http.Request) {
	box, err := models.ParseBoundingBox(r.URL.Query())
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	sightings, err := database.ListSightings(r.Context(), sr.db, session(r).UserID, box)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, sightings)
}

type countPayload struct {
	Count    int64  `json:"count"`
	Position *int64 `json:"position"`
}

func (sr SightingRoutes) Count(w http.ResponseWriter, r *http.Request) {
	userID := session(r).UserID

	count, err := database.CountSightings(r.Context(), sr.db, userID)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	pl := countPayload{Count: count}
	if count > 0 {
		pos, err := database.GetSightingPosition(r.Context(), sr.db, userID)
		if err != nil {
			models.WriteError(w, r, err)
			return
		}
		pl.Position = &pos
	}

	models.WriteJSON(w, http.StatusOK, pl)
}

func (sr SightingRoutes) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	s, err := database.GetSighting(r.Context(), sr.db, id, session(r).UserID)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, s)
}

// checkOwner rejects payloads naming a different owner than the caller.
func checkOwner(payloadUserID *uint, self uint) error {
	if payloadUserID != nil && *payloadUserID != self {
		return fmt.Errorf("cannot write sightings for user %d: %w", *payloadUserID, fferrors.ErrForbidden)
	}
	return nil
}

func (sr SightingRoutes) Create(w http.ResponseWriter, r *http.Request) {
	var pl models.CreateSightingPayload
	if err := models.DecodeJSON(r, &pl); err != nil {
		models.WriteError(w, r, err)
		return
	}

	self := session(r).UserID
	if err := checkOwner(pl.UserID, self); err != nil {
		models.WriteError(w, r, err)
		return
	}
	if err := models.Validate(pl); err != nil {
		models.WriteError(w, r, err)
		return
	}

	s := pl.Sighting(self)
	if err := database.CreateSighting(r.Context(), sr.db, s); err != nil {
		models.WriteError(w, r, err)
		return
	}

	sr.metrics.Sightings.WithLabelValues("create").Inc()
	models.WriteJSON(w, http.StatusCreated, s)
}

func (sr SightingRoutes) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	var pl models.UpdateSightingPayload
	if err := models.DecodeJSON(r, &pl); err != nil {
		models.WriteError(w, r, err)
		return
	}

	self := session(r).UserID
	if err := checkOwner(pl.UserID, self); err != nil {
		models.WriteError(w, r, err)
		return
	}
	if err := models.Validate(pl); err != nil {
		models.WriteError(w, r, err)
		return
	}

	s, err := database.UpdateSighting(r.Context(), sr.db, id, self, pl.Changes())
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	sr.metrics.Sightings.WithLabelValues("update").Inc()
	models.WriteJSON(w, http.StatusOK, s)
}

func (sr SightingRoutes) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	if err := database.DeleteSighting(r.Context(), sr.db, id, session(r).UserID); err != nil {
		models.WriteError(w, r, err)
		return
	}

	sr.metrics.Sightings.WithLabelValues("delete").Inc()
	w.WriteHeader(http.StatusNoContent)
}
