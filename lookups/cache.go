// Package lookups holds the shared, time-boxed cache of reference data
// (cities, categories, types, statuses) used by ad forms and filters.
package lookups

import (
	"context"
	"sync"
	"time"

	"ads-manager/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is the freshness window of a snapshot
const DefaultTTL = 10 * time.Minute

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ads_lookups_cache_hits_total",
		Help: "Lookup snapshots served from cache.",
	})
	cacheRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ads_lookups_cache_refreshes_total",
		Help: "Lookup snapshots fetched from the database.",
	})
	cacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ads_lookups_cache_invalidations_total",
		Help: "Explicit lookup cache invalidations.",
	})
)

// Loader fetches the reference tables
type Loader interface {
	Cities(ctx context.Context) ([]models.Lookup, error)
	Categories(ctx context.Context) ([]models.Lookup, error)
	Types(ctx context.Context) ([]models.Lookup, error)
	Statuses(ctx context.Context) ([]models.Lookup, error)
}

// Clock returns the current time
type Clock func() time.Time

// Cache serves one snapshot until it is older than the TTL or invalidated.
// Refreshes are not serialised: two concurrent misses both load and the
// last one to finish wins, which is fine for data that does not change.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    Clock

	mu       sync.RWMutex
	snapshot *models.Lookups
}

// New builds a cache; a zero ttl selects DefaultTTL and a nil clock time.Now
func New(loader Loader, ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{loader: loader, ttl: ttl, now: clock}
}

// Get returns the cached snapshot while it is fresh and reloads it otherwise.
// The returned value is shared and must not be modified.
func (c *Cache) Get(ctx context.Context) (*models.Lookups, error) {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()

	if snap.Complete() && c.now().Sub(snap.RefreshedAt) < c.ttl {
		cacheHitsTotal.Inc()
		return snap, nil
	}

	fresh, err := c.load(ctx)
	if err != nil {
		logger.Error("Failed to load lookups", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = fresh
	c.mu.Unlock()
	cacheRefreshesTotal.Inc()

	return fresh, nil
}

// Invalidate drops the snapshot so the next Get reloads
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
	cacheInvalidationsTotal.Inc()
}

func (c *Cache) load(ctx context.Context) (*models.Lookups, error) {
	var snap models.Lookups
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Cities, err = c.loader.Cities(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Categories, err = c.loader.Categories(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Types, err = c.loader.Types(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Statuses, err = c.loader.Statuses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.RefreshedAt = c.now()
	return &snap, nil
}

// WithAllOption copies a snapshot with an id 0 "All" entry prepended to
// each list, for filter selectors where 0 means no filter
func WithAllOption(l *models.Lookups) *models.Lookups {
	prepend := func(label string, items []models.Lookup) []models.Lookup {
		out := make([]models.Lookup, 0, len(items)+1)
		out = append(out, models.Lookup{ID: 0, Name: label})
		return append(out, items...)
	}
	return &models.Lookups{
		Cities:      prepend("All cities", l.Cities),
		Categories:  prepend("All categories", l.Categories),
		Types:       prepend("All types", l.Types),
		Statuses:    prepend("All statuses", l.Statuses),
		RefreshedAt: l.RefreshedAt,
	}
}
