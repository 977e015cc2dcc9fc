package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"ads-manager/ads"
	"ads-manager/imagestore"
	"ads-manager/listing"
	"ads-manager/lookups"
	"ads-manager/models"

	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// AdHandler serves the listing screens and the ad editor
type AdHandler struct {
	ads     *ads.Service
	listing *listing.Service
	lookups *lookups.Cache
	images  *imagestore.Store
}

func NewAdHandler(adService *ads.Service, listingService *listing.Service, lookupCache *lookups.Cache, images *imagestore.Store) *AdHandler {
	return &AdHandler{
		ads:     adService,
		listing: listingService,
		lookups: lookupCache,
		images:  images,
	}
}

type listResponse struct {
	Ads     []models.AdRow `json:"ads"`
	Count   int            `json:"count"`
	Filters string         `json:"filters"`
}

type statusChangeRequest struct {
	Form     models.AdForm `json:"form"`
	StatusID int           `json:"status_id"`
}

type statusChangeResponse struct {
	Form          models.AdForm `json:"form"`
	ProfitVisible bool          `json:"profit_visible"`
}

func filterFromQuery(r *http.Request) listing.Filter {
	return listing.Filter{
		Text:       r.URL.Query().Get("q"),
		CityID:     queryInt(r, "city_id"),
		CategoryID: queryInt(r, "category_id"),
		TypeID:     queryInt(r, "type_id"),
		StatusID:   queryInt(r, "status_id"),
	}
}

// ListAll handles GET /ads - every user's ads, or only active ones with ?active=true
func (h *AdHandler) ListAll(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	scope := listing.Scope{ActiveOnly: r.URL.Query().Get("active") == "true"}
	h.list(ctx, w, r, scope)
}

// ListMine handles GET /my/ads - the session user's ads
func (h *AdHandler) ListMine(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	h.list(ctx, w, r, listing.Scope{OwnerID: user.ID})
}

func (h *AdHandler) list(ctx context.Context, w http.ResponseWriter, r *http.Request, scope listing.Scope) {
	filter := filterFromQuery(r)
	rows, err := h.listing.Search(ctx, scope, filter)
	if err != nil {
		logRequest(ctx, "error", "Failed to load ads", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Failed to load ads"))
		return
	}

	snapshot, err := h.lookups.Get(ctx)
	if err != nil {
		snapshot = &models.Lookups{}
	}
	writeJSON(w, http.StatusOK, listResponse{Ads: rows, Count: len(rows), Filters: filter.Describe(snapshot)})
}

// Completed handles GET /my/ads/completed
func (h *AdHandler) Completed(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	summary, err := h.listing.Completed(ctx, user.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to load completed ads", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Failed to load completed ads"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// NewForm handles GET /my/ads/new - defaults for a new ad
func (h *AdHandler) NewForm(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, h.ads.NewForm(user))
}

// Get handles GET /my/ads/{id}
func (h *AdHandler) Get(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid ad id"))
		return
	}

	ad, err := h.ads.Get(ctx, user, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ad":   ad,
		"form": models.FormFromAd(ad),
	})
}

// Create handles POST /my/ads
func (h *AdHandler) Create(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	h.save(ctx, w, r, 0)
}

// Update handles PUT /my/ads/{id}
func (h *AdHandler) Update(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid ad id"))
		return
	}
	h.save(ctx, w, r, id)
}

func (h *AdHandler) save(ctx context.Context, w http.ResponseWriter, r *http.Request, id int) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}

	var form models.AdForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		logRequest(ctx, "error", "Invalid ad body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}
	// server-side paths are never taken from clients; files arrive through UploadImage
	form.ImageSource = ""

	ad, err := h.ads.Save(ctx, user, id, form)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	logRequest(ctx, "info", "Ad saved", zap.Int("ad_id", ad.ID))
	writeJSON(w, status, ad)
}

// StatusChanged handles POST /my/ads/status - previews the form after a status selection
func (h *AdHandler) StatusChanged(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid JSON"))
		return
	}
	form, visible := h.ads.StatusChanged(req.Form, req.StatusID)
	writeJSON(w, http.StatusOK, statusChangeResponse{Form: form, ProfitVisible: visible})
}

// Delete handles DELETE /my/ads/{id}. Without ?confirm=true it answers
// 428 with the summary to confirm.
func (h *AdHandler) Delete(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid ad id"))
		return
	}

	summary, err := h.ads.Delete(ctx, user, id, r.URL.Query().Get("confirm") == "true")
	if errors.Is(err, ads.ErrConfirmationRequired) {
		writeJSON(w, http.StatusPreconditionRequired, map[string]interface{}{
			"message": "Are you sure you want to delete this ad?\n\n" + summary.String(),
			"ad":      summary,
		})
		return
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Ad deleted", zap.Int("ad_id", id))
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Ad deleted", "ad": summary})
}

// UploadImage handles POST /my/ads/{id}/image with a multipart "image" file
func (h *AdHandler) UploadImage(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid ad id"))
		return
	}
	if _, err := h.ads.Get(ctx, user, id); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Missing image file"))
		return
	}
	defer file.Close()

	rel, err := h.images.SaveReader(file, filepath.Ext(header.Filename))
	switch {
	case errors.Is(err, imagestore.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errs.NewValidationError("Image is too large"))
		return
	case errors.Is(err, imagestore.ErrUnsupported):
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Unsupported image type"))
		return
	case err != nil:
		logRequest(ctx, "error", "Failed to store image", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Failed to store image"))
		return
	}

	ad, err := h.ads.SetImage(ctx, user, id, rel)
	if err != nil {
		h.images.Delete(rel)
		writeServiceError(ctx, w, err)
		return
	}
	logRequest(ctx, "info", "Image attached", zap.Int("ad_id", id), zap.String("path", rel))
	writeJSON(w, http.StatusOK, ad)
}

// RemoveImage handles DELETE /my/ads/{id}/image
func (h *AdHandler) RemoveImage(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user := currentUser(ctx)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not authenticated"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid ad id"))
		return
	}

	ad, err := h.ads.SetImage(ctx, user, id, "")
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

// Image handles GET /ads/{id}/image - serves the resolved image file
func (h *AdHandler) Image(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errs.NewValidationError("Invalid ad id"))
		return
	}
	ad, err := h.ads.Find(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if !ad.HasImage() {
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Ad has no image"))
		return
	}

	path, err := h.images.Resolve(*ad.ImagePath)
	if err != nil {
		logRequest(ctx, "info", "Image file missing", zap.String("path", *ad.ImagePath))
		writeJSON(w, http.StatusNotFound, errs.NewNotFoundError("Image not found"))
		return
	}
	http.ServeFile(w, r, path)
}
