package routes

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/auth"
	"github.com/fireflymap/api/pkg/config"
	"github.com/fireflymap/api/pkg/database"
	"github.com/fireflymap/api/pkg/inaturalist"
	"github.com/fireflymap/api/pkg/metrics"
	"github.com/fireflymap/api/pkg/models"
	"github.com/fireflymap/api/pkg/testutil"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

const (
	feedURL  = "https://feed.test/v1"
	obsRoute = `=~^https://feed\.test/v1/observations`
)

type testServer struct {
	t         *testing.T
	db        *gorm.DB
	sessions  *testutil.SessionStore[auth.Session]
	feed      *httpmock.MockTransport
	metrics   *metrics.Metrics
	uploadDir string
	handler   http.Handler
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		UploadDir:      t.TempDir(),
		MapsAPIKey:     "maps-key",
		CORSOrigins:    []string{"http://localhost:3000"},
		INaturalistURL: feedURL,
		TaxonName:      "Lampyridae",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	taxa := testutil.NewTaxonCache()
	require.NoError(t, taxa.SetTaxonID(context.Background(), cfg.TaxonName, 47731, 0))

	mt := httpmock.NewMockTransport()
	ts := &testServer{
		t:         t,
		db:        testutil.OpenDB(t),
		sessions:  testutil.NewSessionStore[auth.Session](),
		feed:      mt,
		metrics:   metrics.New(),
		uploadDir: cfg.UploadDir,
	}

	ts.handler = NewRouter(Options{
		Config:   cfg,
		DB:       ts.db,
		Sessions: ts.sessions,
		Feed:     inaturalist.New(cfg.INaturalistURL, cfg.TaxonName, &http.Client{Transport: mt}, taxa),
		Metrics:  ts.metrics,
	})

	return ts
}

// do sends a request with an optional JSON body and session cookie.
func (ts *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// signup creates an account and returns its session cookie.
func (ts *testServer) signup(username string) (*http.Cookie, database.User) {
	ts.t.Helper()

	rec := ts.do(http.MethodPost, "/signup", map[string]string{"username": username, "password": "glowing"}, nil)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	var u database.User
	decode(ts.t, rec, &u)

	return sessionCookie(ts.t, rec), u
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SESSION_ID_COOKIE && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.SESSION_ID_COOKIE)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var pl models.ErrorPayload
	decode(t, rec, &pl)
	return pl.Error
}
