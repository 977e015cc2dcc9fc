// Package ads implements the lifecycle of a single ad: form defaults,
// validation, save with profit bookkeeping, image replacement and deletion.
package ads

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"ads-manager/config"
	"ads-manager/events"
	"ads-manager/models"
	"ads-manager/repository"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

var (
	adsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ads_saved_total",
		Help: "Ads written, by operation.",
	}, []string{"op"})
	adsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ads_deleted_total",
		Help: "Ads deleted.",
	})
)

// Store persists ads
type Store interface {
	FindByID(ctx context.Context, id int) (*models.Ad, error)
	Save(ctx context.Context, ad *models.Ad, after repository.TxFunc) error
	Delete(ctx context.Context, id int, after repository.TxFunc) error
	UpdateImagePath(ctx context.Context, id int, path *string) error
}

// Ledger maintains per-user profit totals inside an ad write transaction
type Ledger interface {
	Add(ctx context.Context, ext sqlx.ExtContext, userID int, amount int64) error
	Recompute(ctx context.Context, ext sqlx.ExtContext, userID, completedStatusID int) (int64, error)
}

// Images stores and removes attachment files
type Images interface {
	SaveImage(src string) (string, error)
	Delete(rel string)
}

// Invalidator drops cached reference data
type Invalidator interface {
	Invalidate()
}

type Config struct {
	ActiveStatusID    int
	CompletedStatusID int
	LedgerMode        string
}

type Service struct {
	store   Store
	ledger  Ledger
	images  Images
	lookups Invalidator
	pub     events.Publisher
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(store Store, ledger Ledger, images Images, lookups Invalidator, pub events.Publisher, cfg Config) *Service {
	if cfg.LedgerMode == "" {
		cfg.LedgerMode = config.LedgerRecompute
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		images:   images,
		lookups:  lookups,
		pub:      pub,
		cfg:      cfg,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// SetClock replaces the clock used for "today"
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IsCompleted reports whether statusID is the completed status
func (s *Service) IsCompleted(statusID int) bool {
	return statusID == s.cfg.CompletedStatusID
}

// New returns an unsaved ad owned by owner, dated today and active
func (s *Service) New(owner *models.User) *models.Ad {
	return &models.Ad{
		UserID:   owner.ID,
		PostDate: Today(s.now()).Time(),
		StatusID: s.cfg.ActiveStatusID,
		Price:    decimal.Zero,
	}
}

// NewForm returns the form shown when creating an ad
func (s *Service) NewForm(owner *models.User) models.AdForm {
	form := models.FormFromAd(s.New(owner))
	form.Price = ""
	return form
}

// Find returns any ad by id
func (s *Service) Find(ctx context.Context, id int) (*models.Ad, error) {
	ad, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return ad, err
}

// Get returns an ad owned by owner
func (s *Service) Get(ctx context.Context, owner *models.User, id int) (*models.Ad, error) {
	ad, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ad.UserID != owner.ID {
		return nil, ErrForbidden
	}
	return ad, nil
}

// StatusChanged applies a status selection to the form. Entering the
// completed status pre-fills an empty profit with the whole part of the
// price; leaving it clears the profit and keeps the price. The bool reports
// whether the profit field should be shown.
func (s *Service) StatusChanged(form models.AdForm, statusID int) (models.AdForm, bool) {
	form.StatusID = statusID
	if !s.IsCompleted(statusID) {
		form.Profit = ""
		form.ConfirmZeroProfit = false
		return form, false
	}
	if form.Profit.Empty() {
		if price, err := ParsePrice(form.Price.String()); err == nil && !price.IsNegative() {
			form.Profit = models.FormValue(strconv.FormatInt(price.IntPart(), 10))
		}
	}
	return form, true
}

// Validate checks form against today's date
func (s *Service) Validate(form models.AdForm) error {
	return Validate(form, Today(s.now()), s.cfg.CompletedStatusID)
}

// Save validates the form and writes it as a new ad (id 0) or over the
// owner's existing ad. Nothing is written when validation fails.
func (s *Service) Save(ctx context.Context, owner *models.User, id int, form models.AdForm) (*models.Ad, error) {
	f, err := validate(form, Today(s.now()), s.cfg.CompletedStatusID)
	if err != nil {
		return nil, err
	}

	key := "ad:" + strconv.Itoa(id)
	if id == 0 {
		key = "new:" + strconv.Itoa(owner.ID)
	}
	if !s.acquire(key) {
		return nil, ErrBusy
	}
	defer s.release(key)

	var ad *models.Ad
	if id == 0 {
		ad = s.New(owner)
	} else if ad, err = s.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	created := ad.ID == 0

	ad.Title = f.title
	ad.Description = f.description
	ad.PostDate = f.postDate.Time()
	ad.CityID = form.CityID
	ad.CategoryID = form.CategoryID
	ad.TypeID = form.TypeID
	ad.StatusID = form.StatusID
	ad.Price = f.price
	ad.Profit = nil
	if s.IsCompleted(ad.StatusID) {
		ad.Profit = f.profit
	}

	oldImage, newImage := s.applyImage(ad, form)

	err = s.store.Save(ctx, ad, func(ctx context.Context, tx sqlx.ExtContext) error {
		return s.updateLedger(ctx, tx, owner.ID, ad)
	})
	if err != nil {
		if newImage != "" {
			s.images.Delete(newImage)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		logger.Error("Failed to save ad", zap.Error(err), zap.Int("ad_id", ad.ID), zap.Int("user_id", owner.ID))
		return nil, &PersistError{Op: "saving", Err: err}
	}

	if oldImage != "" {
		s.images.Delete(oldImage)
	}
	s.lookups.Invalidate()

	op := "update"
	if created {
		op = "create"
	}
	adsSavedTotal.WithLabelValues(op).Inc()
	logger.Info("Ad saved", zap.Int("ad_id", ad.ID), zap.Int("user_id", owner.ID), zap.String("op", op))
	s.pub.Publish(ctx, events.AdSaved{Ad: ad, Created: created})
	return ad, nil
}

// applyImage updates ad.ImagePath from the form. It returns the stored
// path that becomes obsolete once the ad is saved and the newly copied one.
func (s *Service) applyImage(ad *models.Ad, form models.AdForm) (obsolete, added string) {
	current := ""
	if ad.HasImage() {
		current = *ad.ImagePath
	}

	switch {
	case form.ImageSource != "":
		rel, err := s.images.SaveImage(form.ImageSource)
		if err != nil {
			// the ad is still saved, keeping whatever image it had
			logger.Error("Failed to store image", zap.String("source", form.ImageSource), zap.Error(err))
			return "", ""
		}
		ad.ImagePath = &rel
		return current, rel
	case form.RemoveImage:
		ad.ImagePath = nil
		return current, ""
	}
	return "", ""
}

func (s *Service) updateLedger(ctx context.Context, tx sqlx.ExtContext, userID int, ad *models.Ad) error {
	if s.cfg.LedgerMode == config.LedgerAccumulate {
		if s.IsCompleted(ad.StatusID) && ad.Profit != nil {
			return s.ledger.Add(ctx, tx, userID, *ad.Profit)
		}
		return nil
	}
	_, err := s.ledger.Recompute(ctx, tx, userID, s.cfg.CompletedStatusID)
	return err
}

// SetImage points the ad at an already stored image, or at none when rel
// is empty, and deletes the file it replaces
func (s *Service) SetImage(ctx context.Context, owner *models.User, id int, rel string) (*models.Ad, error) {
	ad, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	old := ""
	if ad.HasImage() {
		old = *ad.ImagePath
	}
	var path *string
	if rel != "" {
		path = &rel
	}
	if err := s.store.UpdateImagePath(ctx, id, path); err != nil {
		return nil, &PersistError{Op: "updating", Err: err}
	}
	if old != "" && old != rel {
		s.images.Delete(old)
	}
	ad.ImagePath = path
	s.lookups.Invalidate()
	s.pub.Publish(ctx, events.AdSaved{Ad: ad})
	return ad, nil
}

// Summary describes the ad for a delete confirmation
func (s *Service) Summary(ad *models.Ad) models.DeleteSummary {
	return models.DeleteSummary{
		ID:       ad.ID,
		Title:    ad.Title,
		PostDate: models.NewDate(ad.PostDate),
		Price:    ad.Price,
	}
}

// Delete removes the owner's ad. Without confirm nothing happens and
// ErrConfirmationRequired is returned along with the summary to confirm.
func (s *Service) Delete(ctx context.Context, owner *models.User, id int, confirm bool) (models.DeleteSummary, error) {
	ad, err := s.Get(ctx, owner, id)
	if err != nil {
		return models.DeleteSummary{}, err
	}
	summary := s.Summary(ad)
	if !confirm {
		return summary, ErrConfirmationRequired
	}

	if ad.HasImage() {
		s.images.Delete(*ad.ImagePath)
	}

	err = s.store.Delete(ctx, id, func(ctx context.Context, tx sqlx.ExtContext) error {
		if s.cfg.LedgerMode != config.LedgerRecompute {
			return nil
		}
		_, err := s.ledger.Recompute(ctx, tx, owner.ID, s.cfg.CompletedStatusID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return summary, ErrNotFound
	}
	if err != nil {
		logger.Error("Failed to delete ad", zap.Error(err), zap.Int("ad_id", id))
		return summary, &PersistError{Op: "deleting", Err: err}
	}

	s.lookups.Invalidate()
	adsDeletedTotal.Inc()
	logger.Info("Ad deleted", zap.Int("ad_id", id), zap.Int("user_id", owner.ID))
	s.pub.Publish(ctx, events.AdDeleted{AdID: id, UserID: owner.ID})
	return summary, nil
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}
