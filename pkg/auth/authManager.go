package auth

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const SESSION_ID_COOKIE = "session_id"
const SESSION_TTL = time.Hour * 24 * 7

const sessionKeyPrefix = "session:"

type Session struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists sessions by opaque id. GetSession returns nil, nil for an
// unknown or expired id.
type Store interface {
	CreateSession(ctx context.Context, s Session) (string, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// AuthManager is the Redis-backed Store.
type AuthManager struct {
	RedisClient *redis.Client
}

func NewAuthManager(r *redis.Client) *AuthManager {
	return &AuthManager{RedisClient: r}
}

func (m *AuthManager) CreateSession(ctx context.Context, s Session) (string, error) {
	sessionId := uuid.New().String()

	var sess bytes.Buffer
	enc := gob.NewEncoder(&sess)

	err := enc.Encode(s)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionId).Msg("failed to encode session data")
		return "", err
	}

	status := m.RedisClient.SetEX(ctx, sessionKeyPrefix+sessionId, sess.Bytes(), SESSION_TTL)
	if status.Err() != nil {
		return "", status.Err()
	}

	return sessionId, nil
}

func (m *AuthManager) DeleteSession(ctx context.Context, id string) error {
	res := m.RedisClient.Del(ctx, sessionKeyPrefix+id)

	return res.Err()
}

func (m *AuthManager) GetSession(ctx context.Context, id string) (*Session, error) {
	res := m.RedisClient.Get(ctx, sessionKeyPrefix+id)
	if res.Err() != nil {
		if res.Err() == redis.Nil {
			return nil, nil
		}

		return nil, res.Err()
	}

	b, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)

	var sess Session
	err = dec.Decode(&sess)
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("failed to decode session")
		return nil, err
	}

	return &sess, nil
}
