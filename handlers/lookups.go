package handlers

import (
	"context"
	"net/http"

	"ads-manager/lookups"

	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

// LookupHandler serves the reference lists for dropdowns
type LookupHandler struct {
	cache *lookups.Cache
}

func NewLookupHandler(cache *lookups.Cache) *LookupHandler {
	return &LookupHandler{cache: cache}
}

// GetLookups handles GET /lookups. With ?all=true each list starts with an
// "All ..." entry of id 0 for filter dropdowns.
func (h *LookupHandler) GetLookups(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.cache.Get(ctx)
	if err != nil {
		logRequest(ctx, "error", "Failed to load lookups", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.NewInternalServerError("Failed to load reference data"))
		return
	}
	if r.URL.Query().Get("all") == "true" {
		snapshot = lookups.WithAllOption(snapshot)
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Refresh handles POST /lookups/refresh - drops the cached snapshot
func (h *LookupHandler) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()
	logRequest(ctx, "info", "Lookups invalidated")
	h.GetLookups(ctx, w, r)
}
