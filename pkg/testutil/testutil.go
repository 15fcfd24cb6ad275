// Package testutil holds fixtures shared by package tests: an in-memory
// sqlite database and in-memory stand-ins for the Redis-backed stores.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fireflymap/api/pkg/database"
)

// OpenDB opens a private in-memory sqlite database with the schema migrated.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	d, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=1"), database.GormConfig())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := database.Migrate(d); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	// one connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return d
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t *testing.T, d *gorm.DB, username string) *database.User {
	t.Helper()

	u := &database.User{Username: username, PasswordHash: "x"}
	if err := database.CreateUser(context.Background(), d, u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func CreateSpecies(t *testing.T, d *gorm.DB, name string) *database.Species {
	t.Helper()

	s := &database.Species{Name: name, ScientificName: name + " sp.", Color: "#c8e64c"}
	if err := database.CreateSpecies(context.Background(), d, s); err != nil {
		t.Fatalf("create species %s: %v", name, err)
	}
	return s
}

// SessionStore keeps sessions in a map. The value type is generic so this
// package does not import auth, which imports it in tests.
type SessionStore[S any] struct {
	mu       sync.Mutex
	sessions map[string]S

	// Err, when set, is returned from every call.
	Err error
}

func NewSessionStore[S any]() *SessionStore[S] {
	return &SessionStore[S]{sessions: map[string]S{}}
}

func (m *SessionStore[S]) CreateSession(_ context.Context, s S) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}

	id := uuid.NewString()
	m.sessions[id] = s
	return id, nil
}

func (m *SessionStore[S]) GetSession(_ context.Context, id string) (*S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *SessionStore[S]) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	delete(m.sessions, id)
	return nil
}

func (m *SessionStore[S]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// TaxonCache is a map-backed taxon id cache that counts writes.
type TaxonCache struct {
	mu   sync.Mutex
	ids  map[string]int
	Sets int
}

func NewTaxonCache() *TaxonCache {
	return &TaxonCache{ids: map[string]int{}}
}

func (c *TaxonCache) GetTaxonID(_ context.Context, name string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.ids[name]
	return id, ok, nil
}

func (c *TaxonCache) SetTaxonID(_ context.Context, name string, id int, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids[name] = id
	c.Sets++
	return nil
}
