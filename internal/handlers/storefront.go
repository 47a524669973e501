package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/higgsflow/catalog-sync/internal/platform/httpx"
	"github.com/higgsflow/catalog-sync/internal/services"
)

const (
	defaultStorefrontLimit    = 50
	maxStorefrontLimit        = 200
	storefrontRateLimit       = 120
	storefrontRateWindow      = time.Minute
	errorCodeInvalidQuery     = "invalid_query"
	errorCodeEntryNotFound    = "entry_not_found"
	errorCodeTooManyRequests  = "rate_limited"
	errorCodeCatalogUnhealthy = "catalog_unavailable"
)

// StorefrontHandlers serves the public read-only catalog endpoints.
type StorefrontHandlers struct {
	reader  services.CatalogReader
	limiter rateLimiter
}

// StorefrontOption customises storefront handler construction.
type StorefrontOption func(*StorefrontHandlers)

// WithStorefrontRateLimiter overrides the default per-IP limiter.
func WithStorefrontRateLimiter(limiter rateLimiter) StorefrontOption {
	return func(h *StorefrontHandlers) {
		h.limiter = limiter
	}
}

// WithStorefrontRateLimit tunes the per-IP fixed-window limiter.
func WithStorefrontRateLimit(limit int, window time.Duration) StorefrontOption {
	return func(h *StorefrontHandlers) {
		if limit > 0 && window > 0 {
			h.limiter = newSimpleRateLimiter(limit, window, nil)
		}
	}
}

// NewStorefrontHandlers constructs handlers for /api/v1/catalog.
func NewStorefrontHandlers(reader services.CatalogReader, opts ...StorefrontOption) *StorefrontHandlers {
	h := &StorefrontHandlers{
		reader:  reader,
		limiter: newSimpleRateLimiter(storefrontRateLimit, storefrontRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the storefront routes on the router group.
func (h *StorefrontHandlers) Register(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/{entryID}", h.Get)
}

// List returns publicly visible catalog entries matching the query filters.
func (h *StorefrontHandlers) List(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	filter, err := parseCatalogFilter(r)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeInvalidQuery, err.Error(), http.StatusBadRequest))
		return
	}

	entries, listErr := h.reader.List(r.Context(), filter)
	if listErr != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeCatalogUnhealthy, "catalog is temporarily unavailable", http.StatusServiceUnavailable))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"count": len(entries),
	})
}

// Search returns scored matches for the q parameter plus suggestion terms.
func (h *StorefrontHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeInvalidQuery, "q parameter is required", http.StatusBadRequest))
		return
	}

	filter, err := parseCatalogFilter(r)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeInvalidQuery, err.Error(), http.StatusBadRequest))
		return
	}

	result, searchErr := h.reader.Search(r.Context(), term, filter)
	if searchErr != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeCatalogUnhealthy, "catalog is temporarily unavailable", http.StatusServiceUnavailable))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items":       result.Entries,
		"count":       len(result.Entries),
		"suggestions": result.Suggestions,
	})
}

// Get returns one publicly visible entry by id.
func (h *StorefrontHandlers) Get(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	entryID := chi.URLParam(r, "entryID")
	entry, err := h.reader.Get(r.Context(), entryID)
	if err != nil {
		if err == services.ErrEntryNotFound {
			httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeEntryNotFound, "catalog entry not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeCatalogUnhealthy, "catalog is temporarily unavailable", http.StatusServiceUnavailable))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, entry)
}

func (h *StorefrontHandlers) allow(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil || h.limiter.Allow(r.RemoteAddr) {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError(errorCodeTooManyRequests, "too many requests", http.StatusTooManyRequests))
	return false
}

func parseCatalogFilter(r *http.Request) (services.CatalogFilter, error) {
	query := r.URL.Query()
	filter := services.CatalogFilter{
		Category: strings.TrimSpace(query.Get("category")),
		Sort:     strings.TrimSpace(query.Get("sort")),
		Limit:    defaultStorefrontLimit,
	}

	var err error
	if filter.FeaturedOnly, err = parseBoolParam(query.Get("featured")); err != nil {
		return filter, err
	}
	if filter.TrendingOnly, err = parseBoolParam(query.Get("trending")); err != nil {
		return filter, err
	}
	if filter.InStockOnly, err = parseBoolParam(query.Get("inStock")); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = parseFloatParam(query.Get("minPrice")); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parseFloatParam(query.Get("maxPrice")); err != nil {
		return filter, err
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errInvalidParam("limit")
		}
		if limit > maxStorefrontLimit {
			limit = maxStorefrontLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}

func parseBoolParam(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errInvalidParam(raw)
	}
	return value, nil
}

func parseFloatParam(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, errInvalidParam(raw)
	}
	return value, nil
}

type paramError string

func (e paramError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidParam(name string) error { return paramError(name) }
