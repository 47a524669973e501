package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/higgsflow/catalog-sync/internal/domain"
	"github.com/higgsflow/catalog-sync/internal/services"
)

type stubCatalogReader struct {
	listFunc   func(ctx context.Context, filter services.CatalogFilter) ([]domain.PublicCatalogEntry, error)
	searchFunc func(ctx context.Context, term string, filter services.CatalogFilter) (services.SearchResult, error)
	getFunc    func(ctx context.Context, entryID string) (domain.PublicCatalogEntry, error)
}

func (s *stubCatalogReader) List(ctx context.Context, filter services.CatalogFilter) ([]domain.PublicCatalogEntry, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubCatalogReader) Search(ctx context.Context, term string, filter services.CatalogFilter) (services.SearchResult, error) {
	if s.searchFunc == nil {
		return services.SearchResult{}, nil
	}
	return s.searchFunc(ctx, term, filter)
}

func (s *stubCatalogReader) Get(ctx context.Context, entryID string) (domain.PublicCatalogEntry, error) {
	if s.getFunc == nil {
		return domain.PublicCatalogEntry{}, services.ErrEntryNotFound
	}
	return s.getFunc(ctx, entryID)
}

func storefrontRouter(reader services.CatalogReader, opts ...StorefrontOption) chi.Router {
	handlers := NewStorefrontHandlers(reader, opts...)
	r := chi.NewRouter()
	handlers.Register(r)
	return r
}

func TestStorefrontListParsesFilter(t *testing.T) {
	var captured services.CatalogFilter
	reader := &stubCatalogReader{
		listFunc: func(_ context.Context, filter services.CatalogFilter) ([]domain.PublicCatalogEntry, error) {
			captured = filter
			return []domain.PublicCatalogEntry{{ID: "e1"}, {ID: "e2"}}, nil
		},
	}
	router := storefrontRouter(reader)

	req := httptest.NewRequest(http.MethodGet, "/?category=hydraulics&featured=true&minPrice=10&maxPrice=99.5&sort=price-low&limit=5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Category != "hydraulics" || !captured.FeaturedOnly {
		t.Fatalf("unexpected filter: %+v", captured)
	}
	if captured.MinPrice != 10 || captured.MaxPrice != 99.5 {
		t.Fatalf("unexpected price bounds: %+v", captured)
	}
	if captured.Sort != "price-low" || captured.Limit != 5 {
		t.Fatalf("unexpected sort/limit: %+v", captured)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", body["count"])
	}
}

func TestStorefrontListDefaultsAndCapsLimit(t *testing.T) {
	var captured services.CatalogFilter
	reader := &stubCatalogReader{
		listFunc: func(_ context.Context, filter services.CatalogFilter) ([]domain.PublicCatalogEntry, error) {
			captured = filter
			return nil, nil
		},
	}
	router := storefrontRouter(reader)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if captured.Limit != defaultStorefrontLimit {
		t.Fatalf("expected default limit %d, got %d", defaultStorefrontLimit, captured.Limit)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?limit=5000", nil))
	if captured.Limit != maxStorefrontLimit {
		t.Fatalf("expected capped limit %d, got %d", maxStorefrontLimit, captured.Limit)
	}
}

func TestStorefrontListRejectsBadParams(t *testing.T) {
	router := storefrontRouter(&stubCatalogReader{})

	for _, query := range []string{"?featured=maybe", "?minPrice=-4", "?maxPrice=abc", "?limit=0", "?limit=x"} {
		req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("query %q: expected status 400, got %d", query, rr.Code)
		}
	}
}

func TestStorefrontListReaderFailure(t *testing.T) {
	reader := &stubCatalogReader{
		listFunc: func(context.Context, services.CatalogFilter) ([]domain.PublicCatalogEntry, error) {
			return nil, errors.New("store offline")
		},
	}
	router := storefrontRouter(reader)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestStorefrontSearchRequiresTerm(t *testing.T) {
	router := storefrontRouter(&stubCatalogReader{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestStorefrontSearchReturnsSuggestions(t *testing.T) {
	reader := &stubCatalogReader{
		searchFunc: func(_ context.Context, term string, _ services.CatalogFilter) (services.SearchResult, error) {
			if term != "bearing" {
				t.Fatalf("expected term bearing, got %q", term)
			}
			return services.SearchResult{
				Entries:     []domain.PublicCatalogEntry{{ID: "e1"}},
				Suggestions: []string{"bearing set", "roller bearing"},
			}, nil
		},
	}
	router := storefrontRouter(reader)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search?q=bearing", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	suggestions, ok := body["suggestions"].([]any)
	if !ok || len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", body["suggestions"])
	}
}

func TestStorefrontGetNotFound(t *testing.T) {
	router := storefrontRouter(&stubCatalogReader{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestStorefrontGetReturnsEntry(t *testing.T) {
	reader := &stubCatalogReader{
		getFunc: func(_ context.Context, entryID string) (domain.PublicCatalogEntry, error) {
			if entryID != "e1" {
				t.Fatalf("expected entry id e1, got %q", entryID)
			}
			return domain.PublicCatalogEntry{ID: "e1", DisplayName: "Hydraulic Pump"}, nil
		},
	}
	router := storefrontRouter(reader)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/e1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var entry domain.PublicCatalogEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if entry.DisplayName != "Hydraulic Pump" {
		t.Fatalf("expected display name Hydraulic Pump, got %q", entry.DisplayName)
	}
}

func TestStorefrontRateLimitExceeded(t *testing.T) {
	limiter := newSimpleRateLimiter(2, storefrontRateWindow, nil)
	router := storefrontRouter(&stubCatalogReader{}, WithStorefrontRateLimiter(limiter))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
}
