package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ads-manager/ads"
	cachepackage "ads-manager/cache"
	"ads-manager/config"
	"ads-manager/database"
	"ads-manager/events"
	"ads-manager/imagestore"
	"ads-manager/listing"
	"ads-manager/lookups"
	"ads-manager/models"
	"ads-manager/repository"
	"ads-manager/session"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{CallerKey: "file", TimeKey: "timestamp", CallerSkip: 1})
	os.Exit(m.Run())
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ctx context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, e := range r.events {
		names = append(names, e.Name())
	}
	return names
}

// testApp wires the handlers over a temporary database the way StartServer does
type testApp struct {
	auth     *AuthHandler
	ads      *AdHandler
	lookups  *LookupHandler
	sessions *session.Store
	images   *imagestore.Store
	pub      *recorder
	alice    *models.User
	bob      *models.User
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	conn, err := database.Open(filepath.Join(t.TempDir(), "ads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	aliceID, err := database.SeedUser(ctx, conn, "alice", "secret", "Alice", bcrypt.MinCost)
	require.NoError(t, err)
	bobID, err := database.SeedUser(ctx, conn, "bob", "secret", "Bob", bcrypt.MinCost)
	require.NoError(t, err)

	c, err := cache.New(cache.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	adRepo := repository.NewAdRepository(conn)
	profits := repository.NewProfitRepository(conn)
	lookupCache := lookups.New(repository.NewLookupRepository(conn), time.Minute, nil)
	images := imagestore.New(imagestore.Config{BaseDir: t.TempDir(), MaxBytes: 64})
	pub := &recorder{}
	sessions := session.NewStore(cachepackage.NewStore(c), time.Hour)

	adService := ads.NewService(adRepo, profits, images, lookupCache, pub, ads.Config{
		ActiveStatusID:    1,
		CompletedStatusID: 2,
		LedgerMode:        config.LedgerRecompute,
	})
	listingService := listing.NewService(adRepo, profits, listing.Config{ActiveStatusID: 1, CompletedStatusID: 2})

	return &testApp{
		auth:     NewAuthHandler(session.NewAuthenticator(repository.NewUserRepository(conn)), pub, sessions, "sid", time.Hour),
		ads:      NewAdHandler(adService, listingService, lookupCache, images),
		lookups:  NewLookupHandler(lookupCache),
		sessions: sessions,
		images:   images,
		pub:      pub,
		alice:    &models.User{ID: aliceID, Login: "alice", FullName: "Alice"},
		bob:      &models.User{ID: bobID, Login: "bob", FullName: "Bob"},
	}
}

// authed returns a context carrying the session claims the auth check sets
func authed(user *models.User, sessionID string) context.Context {
	return context.WithValue(context.Background(), httpserver.RequestAuthKey, httpserver.RequestAuth{
		Type:   "bearer",
		Client: user.Login,
		Claims: map[string]interface{}{
			"session_id": sessionID,
			"user_id":    user.ID,
			"login":      user.Login,
			"full_name":  user.FullName,
		},
	})
}

func withID(r *http.Request, id int) *http.Request {
	return mux.SetURLVars(r, map[string]string{"id": strconv.Itoa(id)})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestCurrentUserReadsClaims(t *testing.T) {
	ctx := authed(&models.User{ID: 5, Login: "alice", FullName: "Alice"}, "abc")

	user := currentUser(ctx)
	require.NotNil(t, user)
	assert.Equal(t, models.User{ID: 5, Login: "alice", FullName: "Alice"}, *user)
	assert.Equal(t, "abc", sessionID(ctx))

	assert.Nil(t, currentUser(context.Background()))
	assert.Empty(t, sessionID(context.Background()))

	odd := context.WithValue(context.Background(), httpserver.RequestAuthKey, httpserver.RequestAuth{Client: "x", Claims: "not a map"})
	assert.Nil(t, currentUser(odd))
	assert.Empty(t, sessionID(odd))
}

func TestMe(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil, "sid", time.Hour)

	w := httptest.NewRecorder()
	h.Me(authed(&models.User{ID: 5, Login: "alice", FullName: "Alice"}, "abc"), w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5,"login":"alice","full_name":"Alice"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Me(context.Background(), w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFilterFromQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ads?q=bike&city_id=2&type_id=x&status_id=1", nil)

	assert.Equal(t, listing.Filter{Text: "bike", CityID: 2, StatusID: 1}, filterFromQuery(r))
}

func TestPathID(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/my/ads/12", nil), map[string]string{"id": "12"})
	id, err := pathID(r)
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	r = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/my/ads/x", nil), map[string]string{"id": "x"})
	_, err = pathID(r)
	assert.Error(t, err)
}

func TestStatusChangedPreview(t *testing.T) {
	svc := ads.NewService(nil, nil, nil, nil, nil, ads.Config{
		ActiveStatusID:    1,
		CompletedStatusID: 2,
		LedgerMode:        config.LedgerRecompute,
	})
	h := NewAdHandler(svc, nil, nil, nil)

	body := `{"form":{"title":"Bike","price":"99.90","status_id":1},"status_id":2}`
	w := httptest.NewRecorder()
	h.StatusChanged(context.Background(), w, httptest.NewRequest(http.MethodPost, "/my/ads/status", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Form          map[string]interface{} `json:"form"`
		ProfitVisible bool                   `json:"profit_visible"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.ProfitVisible)
	assert.Equal(t, "99", resp.Form["profit"])
	assert.Equal(t, float64(2), resp.Form["status_id"])
}

func TestStatusChangedRejectsBadJSON(t *testing.T) {
	h := NewAdHandler(nil, nil, nil, nil)
	w := httptest.NewRecorder()
	h.StatusChanged(context.Background(), w, httptest.NewRequest(http.MethodPost, "/my/ads/status", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteServiceErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ads.ErrNotFound, http.StatusNotFound},
		{ads.ErrForbidden, http.StatusForbidden},
		{ads.ErrBusy, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeServiceError(context.Background(), w, tt.err)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
}

func TestWriteServiceErrorValidation(t *testing.T) {
	w := httptest.NewRecorder()
	writeServiceError(context.Background(), w, &ads.ValidationError{
		Field:   "profit",
		Message: "Profit is zero. Confirm to save anyway.",
		Err:     ads.ErrZeroProfitUnconfirmed,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "profit", body["field"])
	assert.Equal(t, true, body["confirmation_required"])
	assert.Equal(t, "Profit is zero. Confirm to save anyway.", body["error"].(map[string]interface{})["Message"])

	w = httptest.NewRecorder()
	writeServiceError(context.Background(), w, &ads.ValidationError{Field: "title", Message: "Title is required."})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, "title", body["field"])
	assert.Equal(t, false, body["confirmation_required"])
}

func TestWriteServiceErrorPersist(t *testing.T) {
	w := httptest.NewRecorder()
	err := &ads.PersistError{Op: "saving", Err: fmt.Errorf("insert: %w", errors.New("disk I/O error"))}
	writeServiceError(context.Background(), w, err)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	msg := decode(t, w)["Message"].(string)
	assert.Contains(t, msg, "database error while saving ad")
	assert.Contains(t, msg, "details: disk I/O error")
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, models.MeResponse{ID: 1, Login: "alice"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"login":"alice","full_name":""}`, w.Body.String())
}

func TestNewAuthHandlerKeepsSettings(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil, "sid", time.Hour)
	assert.Equal(t, "sid", h.cookieName)
	assert.Equal(t, time.Hour, h.ttl)
}
