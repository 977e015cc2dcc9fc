package cache

import (
	"os"
	"time"

	"ads-manager/config"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeCache connects the shared key/value cache used for sessions
func InitializeCache(cfg config.CacheConfig) cache.Cache {
	c, err := cache.New(cache.Config{
		Type:          cfg.Type,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("Failed to initialize cache:", zap.Error(err), zap.String("type", cfg.Type))
		os.Exit(1)
	}
	return c
}

// Store adapts cache.Cache to the narrow key/value contract of session.Store
type Store struct {
	c cache.Cache
}

func NewStore(c cache.Cache) *Store {
	return &Store{c: c}
}

func (s *Store) Get(key string) (interface{}, error) {
	v, err := s.c.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) Set(key string, value interface{}, ttl time.Duration) error {
	return s.c.Set(key, value, ttl)
}

func (s *Store) Delete(key string) error {
	return s.c.Delete(key)
}
