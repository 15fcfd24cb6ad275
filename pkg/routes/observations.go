package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/database"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/inaturalist"
	"github.com/fireflymap/api/pkg/metrics"
	"github.com/fireflymap/api/pkg/models"
)

type ObservationRoutes struct {
	feed    ObservationFeed
	metrics *metrics.Metrics
}

func NewObservationRoutes(feed ObservationFeed, m *metrics.Metrics) *ObservationRoutes {
	return &ObservationRoutes{feed: feed, metrics: m}
}

func (obr ObservationRoutes) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/", obr.List)

	return r
}

func requireArea(r *http.Request) (models.AreaQuery, error) {
	area, ok, err := models.ParseArea(r.URL.Query())
	if err != nil {
		return area, err
	}
	if !ok {
		return area, fmt.Errorf("%w: lat, lng and radius are required", fferrors.ErrValidation)
	}
	return area, nil
}

// fetchObservations queries the feed and records the outcome.
func fetchObservations(ctx context.Context, feed ObservationFeed, m *metrics.Metrics, area models.AreaQuery) ([]inaturalist.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	obs, err := feed.Observations(ctx, inaturalist.Query{
		Lat:      area.Lat,
		Lng:      area.Lng,
		RadiusKm: area.RadiusKm,
	})
	if err != nil {
		m.FeedRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	m.FeedRequests.WithLabelValues("ok").Inc()
	return obs, nil
}

func (obr ObservationRoutes) List(w http.ResponseWriter, r *http.Request) {
	area, err := requireArea(r)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	obs, err := fetchObservations(r.Context(), obr.feed, obr.metrics, area)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, obs)
}

type MapRoutes struct {
	db      *gorm.DB
	feed    ObservationFeed
	metrics *metrics.Metrics
}

func NewMapRoutes(db *gorm.DB, feed ObservationFeed, m *metrics.Metrics) *MapRoutes {
	return &MapRoutes{db: db, feed: feed, metrics: m}
}

type mapPayload struct {
	Sightings         []database.Sighting       `json:"sightings"`
	Observations      []inaturalist.Observation `json:"observations"`
	ObservationsError *string                   `json:"observations_error"`
}

// Map returns the caller's sightings in the area together with public
// observations. A feed failure is reported in observations_error and does
// not fail the response.
func (mr MapRoutes) Map(w http.ResponseWriter, r *http.Request) {
	area, err := requireArea(r)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	box := area.Box()
	sightings, err := database.ListSightings(r.Context(), mr.db, session(r).UserID, &box)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	pl := mapPayload{
		Sightings:    sightings,
		Observations: []inaturalist.Observation{},
	}

	obs, err := fetchObservations(r.Context(), mr.feed, mr.metrics, area)
	if err != nil {
		log.Warn().Err(err).Msg("observation feed failed, serving sightings only")
		msg := "Observation feed is unavailable"
		pl.ObservationsError = &msg
	} else {
		pl.Observations = obs
	}

	models.WriteJSON(w, http.StatusOK, pl)
}
