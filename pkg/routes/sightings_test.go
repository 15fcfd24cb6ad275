package routes

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fireflymap/api/pkg/database"
	fftestutil "github.com/fireflymap/api/pkg/testutil"
)

func createSighting(t *testing.T, ts *testServer, cookie *http.Cookie, body map[string]any) database.Sighting {
	t.Helper()

	rec := ts.do(http.MethodPost, "/sightings", body, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var s database.Sighting
	decode(t, rec, &s)
	return s
}

type countBody struct {
	Count    int64  `json:"count"`
	Position *int64 `json:"position"`
}

func count(t *testing.T, ts *testServer, cookie *http.Cookie) countBody {
	t.Helper()

	rec := ts.do(http.MethodGet, "/sightings/count", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var c countBody
	decode(t, rec, &c)
	return c
}

func TestSightings_CreateListCount(t *testing.T) {
	ts := newTestServer(t)
	cookie, user := ts.signup("ann")
	species := fftestutil.CreateSpecies(t, ts.db, "Big Dipper")

	c := count(t, ts, cookie)
	assert.Zero(t, c.Count)
	assert.Nil(t, c.Position)

	observed := time.Date(2024, 6, 20, 21, 30, 0, 0, time.UTC)
	s := createSighting(t, ts, cookie, map[string]any{
		"species_id":  species.ID,
		"place":       "  Backyard ",
		"observed_at": observed,
		"description": "dozens over the lawn",
		"latitude":    40.0,
		"longitude":   -74.0,
	})
	assert.NotZero(t, s.ID)
	assert.Equal(t, user.ID, s.UserID)
	assert.Equal(t, "Backyard", s.Place)
	assert.True(t, observed.Equal(s.ObservedAt))
	require.NotNil(t, s.Species)
	assert.Equal(t, "Big Dipper", s.Species.Name)

	before := time.Now().Add(-time.Minute)
	defaulted := createSighting(t, ts, cookie, map[string]any{"latitude": 41.0, "longitude": -73.0})
	assert.True(t, defaulted.ObservedAt.After(before), "observed_at defaults to now")

	c = count(t, ts, cookie)
	assert.EqualValues(t, 2, c.Count)
	require.NotNil(t, c.Position)
	assert.EqualValues(t, 1, *c.Position)

	rec := ts.do(http.MethodGet, "/sightings", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []database.Sighting
	decode(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, defaulted.ID, list[0].ID, "newest observation first")

	rec = ts.do(http.MethodGet, fmt.Sprintf("/sightings/%d", s.ID), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodDelete, fmt.Sprintf("/sightings/%d", s.ID), nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 1, count(t, ts, cookie).Count)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/sightings/%d", s.ID), nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(ts.metrics.Sightings.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Sightings.WithLabelValues("delete")))
}

func TestSightings_CreateRejects(t *testing.T) {
	ts := newTestServer(t)
	cookie, user := ts.signup("ann")

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"missing latitude", map[string]any{"longitude": 1.0}, http.StatusBadRequest},
		{"latitude out of range", map[string]any{"latitude": 90.5, "longitude": 1.0}, http.StatusBadRequest},
		{"unknown species", map[string]any{"latitude": 1.0, "longitude": 1.0, "species_id": 999}, http.StatusBadRequest},
		{"unknown field", map[string]any{"latitude": 1.0, "longitude": 1.0, "owner": "me"}, http.StatusBadRequest},
		{"someone else's user_id", map[string]any{"latitude": 1.0, "longitude": 1.0, "user_id": user.ID + 1}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/sightings", tt.body, cookie)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	createSighting(t, ts, cookie, map[string]any{"latitude": 1.0, "longitude": 1.0, "user_id": user.ID})
	assert.EqualValues(t, 1, count(t, ts, cookie).Count)
}

func TestSightings_BoundingBox(t *testing.T) {
	ts := newTestServer(t)
	cookie, _ := ts.signup("ann")

	inside := createSighting(t, ts, cookie, map[string]any{"latitude": 40.05, "longitude": -74.05})
	edge := createSighting(t, ts, cookie, map[string]any{"latitude": 40.09, "longitude": -74.0})
	createSighting(t, ts, cookie, map[string]any{"latitude": 40.091, "longitude": -74.0})
	createSighting(t, ts, cookie, map[string]any{"latitude": 10, "longitude": 10})

	rec := ts.do(http.MethodGet, "/sightings?lat=40&lng=-74&radius=10", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []database.Sighting
	decode(t, rec, &got)
	var ids []uint
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []uint{inside.ID, edge.ID}, ids)

	rec = ts.do(http.MethodGet, "/sightings?min_lat=9&max_lat=11&min_lng=9&max_lng=11", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Len(t, got, 1)

	for _, q := range []string{"lat=40&lng=-74", "lat=40&lng=-74&radius=-1", "min_lat=1&max_lat=2", "lat=north&lng=1&radius=1"} {
		rec = ts.do(http.MethodGet, "/sightings?"+q, nil, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSightings_OwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	ann, _ := ts.signup("ann")
	bob, _ := ts.signup("bob")

	s := createSighting(t, ts, ann, map[string]any{"latitude": 40.0, "longitude": -74.0, "place": "Pond"})
	path := fmt.Sprintf("/sightings/%d", s.ID)

	rec := ts.do(http.MethodGet, path, nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPatch, path, map[string]any{"place": "Mine now"}, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorKind(t, rec))

	rec = ts.do(http.MethodDelete, path, nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/sightings", nil, bob)
	var list []database.Sighting
	decode(t, rec, &list)
	assert.Empty(t, list)

	rec = ts.do(http.MethodGet, path, nil, ann)
	var unchanged database.Sighting
	decode(t, rec, &unchanged)
	assert.Equal(t, "Pond", unchanged.Place)

	rec = ts.do(http.MethodPatch, "/sightings/4242", map[string]any{"place": "x"}, ann)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/sightings/abc", nil, ann)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSightings_PatchMergesSuppliedFields(t *testing.T) {
	ts := newTestServer(t)
	cookie, user := ts.signup("ann")

	s := createSighting(t, ts, cookie, map[string]any{
		"latitude":    40.0,
		"longitude":   -74.0,
		"place":       "Pond",
		"description": "a few",
	})
	path := fmt.Sprintf("/sightings/%d", s.ID)

	rec := ts.do(http.MethodPatch, path, map[string]any{"description": "hundreds", "latitude": 40.5}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got database.Sighting
	decode(t, rec, &got)
	assert.Equal(t, "hundreds", got.Description)
	assert.Equal(t, 40.5, got.Latitude)
	assert.Equal(t, "Pond", got.Place)
	assert.Equal(t, -74.0, got.Longitude)

	rec = ts.do(http.MethodPatch, path, map[string]any{"user_id": user.ID + 1}, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPatch, path, map[string]any{"longitude": 200}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPatch, path, map[string]any{}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSightings_PatchNullClearsSpecies(t *testing.T) {
	ts := newTestServer(t)
	cookie, _ := ts.signup("ann")
	sp := fftestutil.CreateSpecies(t, ts.db, "Blue Ghost")

	s := createSighting(t, ts, cookie, map[string]any{
		"latitude":   40.0,
		"longitude":  -74.0,
		"species_id": sp.ID,
	})
	require.NotNil(t, s.SpeciesID)
	path := fmt.Sprintf("/sightings/%d", s.ID)

	rec := ts.do(http.MethodPatch, path, map[string]any{"place": "Pond"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got database.Sighting
	decode(t, rec, &got)
	require.NotNil(t, got.SpeciesID, "omitting species_id keeps it")

	rec = ts.do(http.MethodPatch, path, map[string]any{"species_id": nil}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = database.Sighting{}
	decode(t, rec, &got)
	assert.Nil(t, got.SpeciesID)
	assert.Nil(t, got.Species)
	assert.Equal(t, "Pond", got.Place)

	rec = ts.do(http.MethodGet, path, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	got = database.Sighting{}
	decode(t, rec, &got)
	assert.Nil(t, got.SpeciesID)
}

func TestSightings_PositionRanksByCount(t *testing.T) {
	ts := newTestServer(t)
	ann, _ := ts.signup("ann")
	bob, _ := ts.signup("bob")

	for i := 0; i < 3; i++ {
		createSighting(t, ts, bob, map[string]any{"latitude": 1.0, "longitude": 1.0})
	}
	createSighting(t, ts, ann, map[string]any{"latitude": 1.0, "longitude": 1.0})

	require.NotNil(t, count(t, ts, bob).Position)
	assert.EqualValues(t, 1, *count(t, ts, bob).Position)
	assert.EqualValues(t, 2, *count(t, ts, ann).Position)
}
