package session

import (
	"errors"
	"fmt"
	"time"

	"ads-manager/models"

	"github.com/google/uuid"
)

// Key prefix of sessions in the shared cache
const keyPrefix = "session:"

var ErrNoSession = errors.New("session not found or expired")

// KV is the subset of the shared cache the store needs
type KV interface {
	Get(key string) (interface{}, error)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
}

// Store keeps HTTP sessions keyed by a random id
type Store struct {
	kv  KV
	ttl time.Duration
}

func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

// Create stores the user and returns a new session id
func (s *Store) Create(user *models.User) (string, error) {
	id := uuid.New().String()
	err := s.kv.Set(keyPrefix+id, map[string]interface{}{
		"user_id":   user.ID,
		"login":     user.Login,
		"full_name": user.FullName,
	}, s.ttl)
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

// Lookup returns the user stored under id
func (s *Store) Lookup(id string) (*models.User, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	cached, err := s.kv.Get(keyPrefix + id)
	if err != nil || cached == nil {
		return nil, ErrNoSession
	}

	data, ok := cached.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("session %s: unexpected type %T", id, cached)
	}
	userID, err := intValue(data["user_id"])
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	login, _ := data["login"].(string)
	fullName, _ := data["full_name"].(string)
	return &models.User{ID: userID, Login: login, FullName: fullName}, nil
}

func (s *Store) Destroy(id string) error {
	if err := s.kv.Delete(keyPrefix + id); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	return nil
}

// Values read back from redis are JSON decoded, so numbers arrive as float64
func intValue(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("user_id has type %T", v)
	}
}
