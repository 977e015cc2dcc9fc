// Package session authenticates users and tracks who is logged in.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"ads-manager/events"
	"ads-manager/models"
	"ads-manager/repository"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrMissingCredentials = errors.New("login and password are required")
	ErrBusy               = errors.New("login already in progress")
)

// UserFinder looks users up by login
type UserFinder interface {
	FindByLogin(ctx context.Context, login string) (*models.User, error)
}

// Authenticator checks credentials against the user store
type Authenticator struct {
	users UserFinder
}

func NewAuthenticator(users UserFinder) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate returns the user whose login and password both match.
// Unknown logins and wrong passwords yield the same error.
func (a *Authenticator) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := a.users.FindByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Session holds the user logged in through it. Only one Login may run at a
// time; a concurrent attempt fails with ErrBusy instead of queueing.
type Session struct {
	auth *Authenticator
	pub  events.Publisher

	busy atomic.Bool

	mu   sync.RWMutex
	user *models.User
}

func New(auth *Authenticator, pub events.Publisher) *Session {
	return &Session{auth: auth, pub: pub}
}

// Login reports whether the credentials matched. On a mismatch the current
// user is left as it was and nothing is published.
func (s *Session) Login(ctx context.Context, login, password string) (bool, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return false, ErrMissingCredentials
	}
	if !s.busy.CompareAndSwap(false, true) {
		return false, ErrBusy
	}
	defer s.busy.Store(false)

	user, err := s.auth.Authenticate(ctx, login, password)
	if errors.Is(err, ErrInvalidCredentials) {
		logger.Info("Login rejected", zap.String("login", login))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	logger.Info("Login successful", zap.Int("user_id", user.ID))
	s.pub.Publish(ctx, events.UserLoggedIn{User: user})
	return true, nil
}

// Logout forgets the user and publishes UserLoggedOut
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.pub.Publish(ctx, events.UserLoggedOut{})
}

// CurrentUser returns the logged in user or nil
func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}
