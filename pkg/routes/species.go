package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/database"
	"github.com/fireflymap/api/pkg/models"
)

type SpeciesRoutes struct {
	db *gorm.DB
}

func NewSpeciesRoutes(db *gorm.DB) *SpeciesRoutes {
	return &SpeciesRoutes{db: db}
}

func (sr SpeciesRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", sr.List)
	r.Get("/{id}", sr.Get)

	return r
}

func (sr SpeciesRoutes) List(w http.ResponseWriter, r *http.Request) {
	species, err := database.ListSpecies(r.Context(), sr.db)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, species)
}

func (sr SpeciesRoutes) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	s, err := database.GetSpecies(r.Context(), sr.db, id)
	if err != nil {
		models.WriteError(w, r, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, s)
}
