package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"beerich/internal/cache"
)

const sessionKeyPrefix = "session:"

// SessionStoreInterface defines the server-side session registry. A token is
// only honored while its JTI is present here, so logout revokes the cookie.
type SessionStoreInterface interface {
	Put(ctx context.Context, tokenID string, userID uuid.UUID, email string, ttl time.Duration) error
	Get(ctx context.Context, tokenID string) (userID uuid.UUID, email string, err error)
	Delete(ctx context.Context, tokenID string) error
}

// SessionStore keeps the active-session registry in Redis.
type SessionStore struct {
	cache *cache.Client
}

// Ensure SessionStore implements SessionStoreInterface
var _ SessionStoreInterface = (*SessionStore)(nil)

// NewSessionStore creates a new session store.
func NewSessionStore(cache *cache.Client) *SessionStore {
	return &SessionStore{cache: cache}
}

type sessionRecord struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Put registers a session under its token ID with TTL.
func (s *SessionStore) Put(ctx context.Context, tokenID string, userID uuid.UUID, email string, ttl time.Duration) error {
	payload, err := json.Marshal(sessionRecord{UserID: userID.String(), Email: email})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cache.Set(ctx, sessionKeyPrefix+tokenID, payload, ttl)
}

// Get retrieves a session by token ID. Sessions fail closed: a registry
// lookup error denies the session rather than letting a revoked cookie live.
func (s *SessionStore) Get(ctx context.Context, tokenID string) (uuid.UUID, string, error) {
	data, err := s.cache.Get(ctx, sessionKeyPrefix+tokenID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("session lookup: %w", err)
	}
	if data == nil {
		return uuid.Nil, "", fmt.Errorf("session not found")
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return uuid.Nil, "", fmt.Errorf("unmarshal session: %w", err)
	}
	userID, err := uuid.Parse(record.UserID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid user id in session: %w", err)
	}
	return userID, record.Email, nil
}

// Delete removes a session from the registry.
func (s *SessionStore) Delete(ctx context.Context, tokenID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+tokenID)
}
