package accounting

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/proppilot-backend/pkg/redis"
	"github.com/google/uuid"
)

// ErrStateNotFound is returned for unknown, expired or already consumed states.
var ErrStateNotFound = errors.New("oauth state not found")

const defaultStateTTL = 10 * time.Minute

type stateBackend interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	GetDel(ctx context.Context, key string) (string, error)
	OAuthStateKey(state string) string
}

// StateStore keeps pending OAuth states in Redis. Each state is bound to one
// organization and can be consumed once.
type StateStore struct {
	backend stateBackend
	ttl     time.Duration
}

func NewStateStore(backend stateBackend, ttl time.Duration) (*StateStore, error) {
	if backend == nil {
		return nil, errors.New("redis client required for oauth state")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateStore{backend: backend, ttl: ttl}, nil
}

// Issue creates a random state for orgID.
func (s *StateStore) Issue(ctx context.Context, orgID uuid.UUID) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	ok, err := s.backend.SetNX(ctx, s.backend.OAuthStateKey(state), orgID.String(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	if !ok {
		return "", errors.New("oauth state collision")
	}
	return state, nil
}

// Consume returns the organization bound to state and deletes it.
func (s *StateStore) Consume(ctx context.Context, state string) (uuid.UUID, error) {
	if state == "" {
		return uuid.Nil, ErrStateNotFound
	}
	value, err := s.backend.GetDel(ctx, s.backend.OAuthStateKey(state))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return uuid.Nil, ErrStateNotFound
		}
		return uuid.Nil, fmt.Errorf("consume state: %w", err)
	}
	orgID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse state owner: %w", err)
	}
	return orgID, nil
}
