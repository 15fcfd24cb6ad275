package models

import (
	"bytes"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/fireflymap/api/pkg/database"
	fferrors "github.com/fireflymap/api/pkg/errors"
	"github.com/fireflymap/api/pkg/geo"
)

var validate = newValidator()

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so messages match what the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return v
}

// Validate runs the struct's validate tags and reports the first failing
// field as a validation error.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", fferrors.ErrValidation, err)
	}

	fe := verrs[0]
	return fmt.Errorf("%w: %s", fferrors.ErrValidation, describe(fe))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "latitude":
		return field + " must be between -90 and 90"
	case "longitude":
		return field + " must be between -180 and 180"
	case "username":
		return field + " may only contain letters, numbers, '.', '_' and '-'"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateSightingPayload struct {
	UserID      *uint      `json:"user_id"`
	SpeciesID   *uint      `json:"species_id"`
	Place       string     `json:"place" validate:"max=255"`
	ObservedAt  *time.Time `json:"observed_at"`
	Description string     `json:"description" validate:"max=2000"`
	Latitude    *float64   `json:"latitude" validate:"required,latitude"`
	Longitude   *float64   `json:"longitude" validate:"required,longitude"`
}

func (p CreateSightingPayload) Sighting(ownerID uint) *database.Sighting {
	s := &database.Sighting{
		UserID:      ownerID,
		SpeciesID:   p.SpeciesID,
		Place:       strings.TrimSpace(p.Place),
		Description: strings.TrimSpace(p.Description),
		Latitude:    *p.Latitude,
		Longitude:   *p.Longitude,
	}
	if p.ObservedAt != nil {
		s.ObservedAt = *p.ObservedAt
	}
	return s
}

// UpdateSightingPayload is a partial update. Absent fields are left alone.
// An explicit "species_id": null clears the species.
type UpdateSightingPayload struct {
	UserID      *uint      `json:"user_id"`
	SpeciesID   *uint      `json:"species_id"`
	Place       *string    `json:"place" validate:"omitempty,max=255"`
	ObservedAt  *time.Time `json:"observed_at"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Latitude    *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64   `json:"longitude" validate:"omitempty,longitude"`

	ClearSpecies bool `json:"-"`
}

func (p *UpdateSightingPayload) UnmarshalJSON(b []byte) error {
	type fields UpdateSightingPayload

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var f fields
	if err := dec.Decode(&f); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = UpdateSightingPayload(f)
	if v, ok := raw["species_id"]; ok && string(bytes.TrimSpace(v)) == "null" {
		p.ClearSpecies = true
	}

	return nil
}

func (p UpdateSightingPayload) Changes() database.SightingChanges {
	return database.SightingChanges{
		SpeciesID:    p.SpeciesID,
		ClearSpecies: p.ClearSpecies,
		Place:        p.Place,
		ObservedAt:   p.ObservedAt,
		Description:  p.Description,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
	}
}

type AddFriendPayload struct {
	Username string `json:"username" validate:"required,max=32"`
}

// AreaQuery is a center point and radius in km.
type AreaQuery struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lng      float64 `json:"lng" validate:"longitude"`
	RadiusKm float64 `json:"radius" validate:"gt=0,lte=500"`
}

func (a AreaQuery) Box() geo.BoundingBox {
	return geo.BoxAround(a.Lat, a.Lng, a.RadiusKm)
}

func parseFloats(q url.Values, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, err := strconv.ParseFloat(q.Get(k), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", fferrors.ErrValidation, k)
		}
		out[i] = v
	}
	return out, nil
}

func anyPresent(q url.Values, keys ...string) bool {
	for _, k := range keys {
		if q.Has(k) {
			return true
		}
	}
	return false
}

// ParseArea reads lat, lng and radius. ok is false when none of them are set.
func ParseArea(q url.Values) (area AreaQuery, ok bool, err error) {
	if !anyPresent(q, "lat", "lng", "radius") {
		return AreaQuery{}, false, nil
	}

	vals, err := parseFloats(q, "lat", "lng", "radius")
	if err != nil {
		return AreaQuery{}, false, err
	}

	area = AreaQuery{Lat: vals[0], Lng: vals[1], RadiusKm: vals[2]}
	if err := Validate(area); err != nil {
		return AreaQuery{}, false, err
	}

	return area, true, nil
}

// ParseBoundingBox accepts either a center and radius or explicit
// min_lat/max_lat/min_lng/max_lng. It returns nil when neither is given.
func ParseBoundingBox(q url.Values) (*geo.BoundingBox, error) {
	area, ok, err := ParseArea(q)
	if err != nil {
		return nil, err
	}
	if ok {
		box := area.Box()
		return &box, nil
	}

	keys := []string{"min_lat", "max_lat", "min_lng", "max_lng"}
	if !anyPresent(q, keys...) {
		return nil, nil
	}

	vals, err := parseFloats(q, keys...)
	if err != nil {
		return nil, err
	}

	box := geo.BoundingBox{MinLat: vals[0], MaxLat: vals[1], MinLng: vals[2], MaxLng: vals[3]}
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fferrors.ErrValidation, err)
	}

	return &box, nil
}
