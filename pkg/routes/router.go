package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/auth"
	"github.com/fireflymap/api/pkg/config"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/inaturalist"
	"github.com/fireflymap/api/pkg/logging"
	"github.com/fireflymap/api/pkg/metrics"
	"github.com/fireflymap/api/pkg/models"
)

// ObservationFeed is the public observation source behind /observations and
// /map. *inaturalist.Client satisfies it.
type ObservationFeed interface {
	Observations(ctx context.Context, q inaturalist.Query) ([]inaturalist.Observation, error)
	TaxonName() string
}

type Options struct {
	Config   *config.Config
	DB       *gorm.DB
	Sessions auth.Store
	Feed     ObservationFeed
	Metrics  *metrics.Metrics
}

func NewRouter(o Options) chi.Router {
	cfg := o.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(o.Metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		models.WriteError(w, r, fmt.Errorf("no route for %s: %w", r.URL.Path, fferrors.ErrNotFound))
	})

	authenticated := auth.Authenticated(o.Sessions, models.WriteError)

	r.Mount("/", NewAuthRoutes(o.DB, o.Sessions, o.Metrics, cfg.UploadDir, cfg.SessionSecure).Routes())
	r.Mount("/species", NewSpeciesRoutes(o.DB).Routes())
	r.Mount("/observations", NewObservationRoutes(o.Feed, o.Metrics).Routes())

	r.Group(func(r chi.Router) {
		r.Use(authenticated)

		r.Mount("/sightings", NewSightingRoutes(o.DB, o.Metrics).Routes())
		r.Mount("/friends", NewFriendRoutes(o.DB, o.Metrics).Routes())
		r.Get("/map", NewMapRoutes(o.DB, o.Feed, o.Metrics).Map)
	})

	r.Get("/client-config", clientConfig(cfg.MapsAPIKey, o.Feed.TaxonName()))
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(uploadFS{root: http.Dir(cfg.UploadDir)})))

	// with a separate metrics listener configured, cmd serves them there
	if cfg.MetricsAddr == "" {
		r.Handle("/metrics", o.Metrics.Handler())
	}

	return r
}

type clientConfigPayload struct {
	MapsAPIKey string `json:"maps_api_key"`
	TaxonName  string `json:"taxon_name"`
}

func clientConfig(mapsAPIKey, taxonName string) http.HandlerFunc {
	pl := clientConfigPayload{MapsAPIKey: mapsAPIKey, TaxonName: taxonName}
	return func(w http.ResponseWriter, r *http.Request) {
		models.WriteJSON(w, http.StatusOK, pl)
	}
}

// session returns the caller's session. Only valid behind Authenticated.
func session(r *http.Request) *auth.Session {
	s, _ := auth.FromContext(r.Context())
	return s
}

func idParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", fferrors.ErrValidation, name)
	}
	return uint(id), nil
}

// sessionKey buckets rate limits by session rather than by client address.
func sessionKey(r *http.Request) (string, error) {
	return auth.SessionIDFromContext(r.Context()), nil
}

const feedTimeout = 8 * time.Second
