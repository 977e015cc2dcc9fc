package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"ads-manager/events"
	"ads-manager/models"
	"ads-manager/session"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// Upper bound of logged in sessions tracked by one process
const maxLiveSessions = 4096

// AuthHandler handles login, logout and the session user
type AuthHandler struct {
	auth       *session.Authenticator
	bus        events.Publisher
	sessions   *session.Store
	cookieName string
	ttl        time.Duration

	// one Session per login name while a login for it is running
	pending sync.Map
	// Session of every login made here, by session id, until logout or expiry
	live *expirable.LRU[string, *session.Session]
}

func NewAuthHandler(auth *session.Authenticator, bus events.Publisher, sessions *session.Store, cookieName string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		bus:        bus,
		sessions:   sessions,
		cookieName: cookieName,
		ttl:        ttl,
		live:       expirable.NewLRU[string, *session.Session](maxLiveSessions, nil, ttl),
	}
}

// Login handles POST /login - checks credentials, stores the session and sets the cookie
func (h *AuthHandler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	logRequest(ctx, "info", "Login request")

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid login body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}

	key := strings.TrimSpace(req.Login)
	candidate := session.New(h.auth, h.bus)
	actual, _ := h.pending.LoadOrStore(key, candidate)
	sess := actual.(*session.Session)
	if sess == candidate {
		defer h.pending.Delete(key)
	}

	ok, err := sess.Login(ctx, req.Login, req.Password)
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Please enter login and password"))
		return
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusConflict, errs.NewValidationError("Login already in progress"))
		return
	case err != nil:
		logRequest(ctx, "error", "Login failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Could not reach the database, try again"))
		return
	case !ok:
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Invalid login or password"))
		return
	}

	user := sess.CurrentUser()
	id, err := h.sessions.Create(user)
	if err != nil {
		logRequest(ctx, "error", "Failed to store session", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Could not start the session, try again"))
		return
	}
	h.live.Add(id, sess)
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(h.ttl.Seconds()),
	})

	logRequest(ctx, "info", "Login successful", zap.Int("user_id", user.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Logged in",
		"session_id": id,
		"user":       models.MeResponse{ID: user.ID, Login: user.Login, FullName: user.FullName},
	})
}

// Logout handles POST /logout - drops the session and clears the cookie
func (h *AuthHandler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id := sessionID(ctx)
	if id != "" {
		if err := h.sessions.Destroy(id); err != nil {
			logRequest(ctx, "error", "Failed to drop session", zap.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{Name: h.cookieName, Value: "", Path: "/", MaxAge: -1})

	sess, ok := h.live.Get(id)
	if ok {
		h.live.Remove(id)
	} else {
		// logged in before a restart or through another instance
		sess = session.New(h.auth, h.bus)
	}
	sess.Logout(ctx)

	logRequest(ctx, "info", "Logged out")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me handles GET /me - returns the session user
func (h *AuthHandler) Me(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, models.MeResponse{ID: user.ID, Login: user.Login, FullName: user.FullName})
}
