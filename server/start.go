package server

import (
	"context"
	"net/http"
	"os"
	"strings"

	"ads-manager/ads"
	cachepackage "ads-manager/cache"
	"ads-manager/config"
	"ads-manager/database"
	"ads-manager/events"
	"ads-manager/handlers"
	"ads-manager/imagestore"
	"ads-manager/listing"
	"ads-manager/lookups"
	"ads-manager/repository"
	"ads-manager/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// newCheckAuth resolves the session id from the cookie or a Bearer header
func newCheckAuth(sessions *session.Store, cookieName string) func(r *http.Request) (bool, httpserver.RequestAuth) {
	return func(r *http.Request) (bool, httpserver.RequestAuth) {
		id := ""
		if c, err := r.Cookie(cookieName); err == nil {
			id = c.Value
		}
		if auth := r.Header.Get("Authorization"); id == "" && strings.HasPrefix(auth, "Bearer ") {
			id = strings.TrimPrefix(auth, "Bearer ")
		}
		if id == "" {
			return false, httpserver.RequestAuth{}
		}

		user, err := sessions.Lookup(id)
		if err != nil {
			return false, httpserver.RequestAuth{}
		}
		return true, httpserver.RequestAuth{
			Type:   "bearer",
			Client: user.Login,
			Claims: map[string]interface{}{
				"session_id": id,
				"user_id":    user.ID,
				"login":      user.Login,
				"full_name":  user.FullName,
			},
		}
	}
}

func StartServer(cfg *config.Config) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  cfg.Logger.CallerKey,
		TimeKey:    cfg.Logger.TimeKey,
		CallerSkip: cfg.Logger.CallerSkip,
	})

	logger.Info("Starting Ads Manager...", zap.String("env", cfg.Env), zap.String("ledger_mode", cfg.Ads.LedgerMode))

	dbConn := database.InitializeDatabase(cfg.Database)
	defer dbConn.Close()

	cache := cachepackage.InitializeCache(cfg.Cache)
	defer cache.Close()

	var sinks []events.Sink
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS, events stay local", zap.Error(err))
		} else {
			defer nc.Close()
			sinks = append(sinks, nc)
		}
	}
	bus := events.NewBus(sinks...)

	// Repositories
	users := repository.NewUserRepository(dbConn)
	adRepo := repository.NewAdRepository(dbConn)
	profits := repository.NewProfitRepository(dbConn)
	lookupCache := lookups.New(repository.NewLookupRepository(dbConn), cfg.Lookups.TTL, nil)

	images := imagestore.New(imagestore.Config{
		BaseDir:     cfg.Images.BaseDir,
		SearchRoots: cfg.Images.SearchRoots,
		MaxBytes:    cfg.Images.MaxBytes,
		ResolveTTL:  cfg.Images.ResolveTTL,
	})

	// Services
	sessions := session.NewStore(cachepackage.NewStore(cache), cfg.Session.TTL)
	adService := ads.NewService(adRepo, profits, images, lookupCache, bus, ads.Config{
		ActiveStatusID:    cfg.Ads.ActiveStatusID,
		CompletedStatusID: cfg.Ads.CompletedStatusID,
		LedgerMode:        cfg.Ads.LedgerMode,
	})
	listingService := listing.NewService(adRepo, profits, listing.Config{
		ActiveStatusID:    cfg.Ads.ActiveStatusID,
		CompletedStatusID: cfg.Ads.CompletedStatusID,
	})

	// Handlers
	authHandler := handlers.NewAuthHandler(session.NewAuthenticator(users), bus, sessions, cfg.Session.CookieName, cfg.Session.TTL)
	adHandler := handlers.NewAdHandler(adService, listingService, lookupCache, images)
	lookupHandler := handlers.NewLookupHandler(lookupCache)

	server := httpserver.New(cfg.HTTP.Port, newCheckAuth(sessions, cfg.Session.CookieName))

	server.Register(httpserver.Route{
		Name:     "HealthCheck",
		Method:   "GET",
		Path:     "/health",
		AuthType: "none",
	}, httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "ads-manager"}`))
	}))

	metrics := promhttp.Handler()
	server.Register(httpserver.Route{
		Name:     "Metrics",
		Method:   "GET",
		Path:     "/metrics",
		AuthType: "none",
	}, httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		metrics.ServeHTTP(w, r)
	}))

	// Session
	server.Register(httpserver.Route{
		Name:     "Login",
		Method:   "POST",
		Path:     "/login",
		AuthType: "none",
	}, httpserver.HandlerFunc(authHandler.Login))

	server.Register(httpserver.Route{
		Name:     "Logout",
		Method:   "POST",
		Path:     "/logout",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(authHandler.Logout))

	server.Register(httpserver.Route{
		Name:     "Me",
		Method:   "GET",
		Path:     "/me",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(authHandler.Me))

	// Reference data
	server.Register(httpserver.Route{
		Name:     "GetLookups",
		Method:   "GET",
		Path:     "/lookups",
		AuthType: "none",
	}, httpserver.HandlerFunc(lookupHandler.GetLookups))

	server.Register(httpserver.Route{
		Name:     "RefreshLookups",
		Method:   "POST",
		Path:     "/lookups/refresh",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(lookupHandler.Refresh))

	// Public listing
	server.Register(httpserver.Route{
		Name:     "ListAds",
		Method:   "GET",
		Path:     "/ads",
		AuthType: "none",
	}, httpserver.HandlerFunc(adHandler.ListAll))

	server.Register(httpserver.Route{
		Name:     "GetAdImage",
		Method:   "GET",
		Path:     "/ads/{id}/image",
		AuthType: "none",
	}, httpserver.HandlerFunc(adHandler.Image))

	// Own ads
	server.Register(httpserver.Route{
		Name:     "ListMyAds",
		Method:   "GET",
		Path:     "/my/ads",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.ListMine))

	server.Register(httpserver.Route{
		Name:     "ListCompletedAds",
		Method:   "GET",
		Path:     "/my/ads/completed",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.Completed))

	server.Register(httpserver.Route{
		Name:     "NewAdForm",
		Method:   "GET",
		Path:     "/my/ads/new",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.NewForm))

	server.Register(httpserver.Route{
		Name:     "AdStatusChanged",
		Method:   "POST",
		Path:     "/my/ads/status",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.StatusChanged))

	server.Register(httpserver.Route{
		Name:     "CreateAd",
		Method:   "POST",
		Path:     "/my/ads",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.Create))

	server.Register(httpserver.Route{
		Name:     "GetAd",
		Method:   "GET",
		Path:     "/my/ads/{id:[0-9]+}",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.Get))

	server.Register(httpserver.Route{
		Name:     "UpdateAd",
		Method:   "PUT",
		Path:     "/my/ads/{id:[0-9]+}",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.Update))

	server.Register(httpserver.Route{
		Name:     "DeleteAd",
		Method:   "DELETE",
		Path:     "/my/ads/{id:[0-9]+}",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.Delete))

	server.Register(httpserver.Route{
		Name:     "UploadAdImage",
		Method:   "POST",
		Path:     "/my/ads/{id:[0-9]+}/image",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.UploadImage))

	server.Register(httpserver.Route{
		Name:     "RemoveAdImage",
		Method:   "DELETE",
		Path:     "/my/ads/{id:[0-9]+}/image",
		AuthType: "bearer",
	}, httpserver.HandlerFunc(adHandler.RemoveImage))

	logger.Info("Server starting on port " + cfg.HTTP.Port)
	if err := server.Start(); err != nil {
		logger.Error("Server failed to start:", zap.Error(err))
		os.Exit(1)
	}
}
