package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ads-manager/models"
	"ads-manager/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func login(h *AuthHandler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.Login(context.Background(), w, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))
	return w
}

func TestLoginSetsCookieAndStoresSession(t *testing.T) {
	app := newTestApp(t)

	w := login(app.auth, `{"login":" alice ","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Alice", body["user"].(map[string]interface{})["full_name"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	user, err := app.sessions.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, app.alice.ID, user.ID)
	assert.Equal(t, []string{"user.logged_in"}, app.pub.names())
}

func TestLoginRejections(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{"login":`, http.StatusBadRequest},
		{"missing password", `{"login":"alice","password":""}`, http.StatusBadRequest},
		{"blank login", `{"login":"   ","password":"secret"}`, http.StatusBadRequest},
		{"wrong password", `{"login":"alice","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"login":"mallory","password":"secret"}`, http.StatusUnauthorized},
		{"login is case sensitive", `{"login":"Alice","password":"secret"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := login(app.auth, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Empty(t, w.Result().Cookies())
		})
	}
	assert.Empty(t, app.pub.names())
}

type blockingUsers struct {
	user    *models.User
	entered chan struct{}
	release chan struct{}
}

func (b *blockingUsers) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.user, nil
}

func TestLoginInProgressConflicts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &blockingUsers{
		user:    &models.User{ID: 1, Login: "alice", Password: string(hash)},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h := NewAuthHandler(session.NewAuthenticator(users), &recorder{}, session.NewStore(&failingKV{}, time.Hour), "sid", time.Hour)

	done := make(chan int)
	go func() {
		done <- login(h, `{"login":"alice","password":"secret"}`).Code
	}()
	<-users.entered

	w := login(h, `{"login":"alice ","password":"secret"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(users.release)
	// the session write fails, so the first attempt ends with 500
	assert.Equal(t, http.StatusInternalServerError, <-done)
}

type failingKV struct{}

func (failingKV) Get(key string) (interface{}, error) { return nil, errors.New("miss") }

func (failingKV) Set(key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis down")
}

func (failingKV) Delete(key string) error { return errors.New("redis down") }

func TestLoginFailsWhenSessionCannotBeStored(t *testing.T) {
	app := newTestApp(t)
	h := NewAuthHandler(app.auth.auth, app.pub, session.NewStore(failingKV{}, time.Hour), "sid", time.Hour)

	w := login(h, `{"login":"alice","password":"secret"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Result().Cookies())
	assert.Zero(t, h.live.Len())
}

func TestLogoutEndsSession(t *testing.T) {
	app := newTestApp(t)
	w := login(app.auth, `{"login":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["session_id"].(string)
	require.Equal(t, 1, app.auth.live.Len())

	w = httptest.NewRecorder()
	app.auth.Logout(authed(app.alice, id), w, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	_, err := app.sessions.Lookup(id)
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Zero(t, app.auth.live.Len())
	assert.Equal(t, []string{"user.logged_in", "user.logged_out"}, app.pub.names())
}

func TestLogoutOfSessionStartedElsewhere(t *testing.T) {
	app := newTestApp(t)
	id, err := app.sessions.Create(app.alice)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.auth.Logout(authed(app.alice, id), w, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusOK, w.Code)

	_, err = app.sessions.Lookup(id)
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, []string{"user.logged_out"}, app.pub.names())
}
