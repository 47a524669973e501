package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	pfirestore "github.com/higgsflow/catalog-sync/internal/platform/firestore"
	"github.com/higgsflow/catalog-sync/internal/platform/textutil"
	"github.com/higgsflow/catalog-sync/internal/repositories"
)

const (
	defaultReaderCacheTTL = 5 * time.Minute
	defaultSearchLimit    = 50
	maxSearchSuggestions  = 5
	scoreNameExact        = 100
	scoreNamePrefix       = 80
	scoreNameSubstring    = 60
	scoreCategory         = 40
	scoreDescription      = 20
	scoreSupplier         = 15
	scoreTagsApplications = 10
	scoreSEOKeywords      = 8
)

// ErrEntryNotFound indicates the requested catalog entry does not exist or is
// not publicly visible.
var ErrEntryNotFound = errors.New("catalog reader: entry not found")

// CatalogReaderDeps bundles collaborators required to construct a catalog reader.
type CatalogReaderDeps struct {
	Catalog  repositories.CatalogRepository
	CacheTTL time.Duration
	Fallback []domain.PublicCatalogEntry
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cachedList struct {
	entries   []domain.PublicCatalogEntry
	expiresAt time.Time
}

type catalogReader struct {
	catalog  repositories.CatalogRepository
	ttl      time.Duration
	fallback []domain.PublicCatalogEntry
	clock    func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)

	mu    sync.Mutex
	cache map[string]cachedList
}

// NewCatalogReader constructs the read-only storefront facade.
func NewCatalogReader(deps CatalogReaderDeps) (CatalogReader, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog reader: catalog repository is required")
	}

	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultReaderCacheTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	fallback := deps.Fallback
	if fallback == nil {
		fallback = fallbackCatalog()
	}

	return &catalogReader{
		catalog:  deps.Catalog,
		ttl:      ttl,
		fallback: fallback,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
		cache:    make(map[string]cachedList),
	}, nil
}

// List returns publicly visible entries matching the filter. Results are
// cached per filter signature for the configured TTL; staleness within the
// window is acceptable for a browsing catalog. A store failure or an empty
// catalog degrades to the fixed fallback dataset instead of an error.
func (r *catalogReader) List(ctx context.Context, filter CatalogFilter) ([]domain.PublicCatalogEntry, error) {
	key := filterSignature(filter)
	now := r.clock()

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok && now.Before(cached.expiresAt) {
		entries := append([]domain.PublicCatalogEntry(nil), cached.entries...)
		r.mu.Unlock()
		return entries, nil
	}
	r.mu.Unlock()

	entries, err := r.catalog.List(ctx, repositories.CatalogListFilter{
		Visibility:   domain.VisibilityPublic,
		Category:     filter.Category,
		FeaturedOnly: filter.FeaturedOnly,
	})
	if err != nil {
		r.logger(ctx, "reader.fallback", map[string]any{"error": err.Error()})
		return r.fallbackFor(filter), nil
	}
	if len(entries) == 0 {
		return r.fallbackFor(filter), nil
	}

	result := applyFilter(entries, filter)
	sortEntries(result, filter.Sort)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	r.mu.Lock()
	r.cache[key] = cachedList{
		entries:   append([]domain.PublicCatalogEntry(nil), result...),
		expiresAt: now.Add(r.ttl),
	}
	r.mu.Unlock()

	return result, nil
}

// Search lists broadly, scores every entry against the term, drops zero
// scores and returns hits ordered by descending relevance plus derived
// suggestion terms.
func (r *catalogReader) Search(ctx context.Context, term string, filter CatalogFilter) (SearchResult, error) {
	broad := filter
	broad.Sort = ""
	broad.Limit = 0

	entries, err := r.List(ctx, broad)
	if err != nil {
		return SearchResult{}, err
	}

	folded := textutil.Fold(strings.TrimSpace(term))
	if folded == "" {
		sortEntries(entries, filter.Sort)
		return SearchResult{Entries: entries}, nil
	}
	tokens := textutil.Tokenize(folded, 2)

	type scored struct {
		entry domain.PublicCatalogEntry
		score int
	}
	var hits []scored
	for _, entry := range entries {
		if score := scoreEntry(entry, folded, tokens); score > 0 {
			hits = append(hits, scored{entry: entry, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.SEO.SearchPriority > hits[j].entry.SEO.SearchPriority
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	result := SearchResult{Entries: make([]domain.PublicCatalogEntry, 0, len(hits))}
	for _, hit := range hits {
		result.Entries = append(result.Entries, hit.entry)
	}
	result.Suggestions = deriveSuggestions(result.Entries, folded)
	return result, nil
}

// Get loads one publicly visible entry by id.
func (r *catalogReader) Get(ctx context.Context, entryID string) (domain.PublicCatalogEntry, error) {
	entry, err := r.catalog.FindByID(ctx, entryID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.PublicCatalogEntry{}, ErrEntryNotFound
		}
		return domain.PublicCatalogEntry{}, err
	}
	if entry.Visibility != domain.VisibilityPublic {
		return domain.PublicCatalogEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (r *catalogReader) fallbackFor(filter CatalogFilter) []domain.PublicCatalogEntry {
	entries := append([]domain.PublicCatalogEntry(nil), r.fallback...)
	result := applyFilter(entries, filter)
	sortEntries(result, filter.Sort)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result
}

func applyFilter(entries []domain.PublicCatalogEntry, filter CatalogFilter) []domain.PublicCatalogEntry {
	result := make([]domain.PublicCatalogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Visibility != domain.VisibilityPublic {
			continue
		}
		if filter.Category != "" && entry.Category != filter.Category {
			continue
		}
		if filter.FeaturedOnly && !entry.Featured {
			continue
		}
		if filter.TrendingOnly && !entry.Trending {
			continue
		}
		if filter.InStockOnly && !entry.Availability.InStock {
			continue
		}
		if filter.MinPrice > 0 && entry.Pricing.DiscountPrice < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && entry.Pricing.DiscountPrice > filter.MaxPrice {
			continue
		}
		result = append(result, entry)
	}
	return result
}

func sortEntries(entries []domain.PublicCatalogEntry, key string) {
	switch key {
	case "price-low":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Pricing.DiscountPrice < entries[j].Pricing.DiscountPrice
		})
	case "price-high":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Pricing.DiscountPrice > entries[j].Pricing.DiscountPrice
		})
	case "name":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].DisplayName < entries[j].DisplayName
		})
	case "rating":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Supplier.Rating > entries[j].Supplier.Rating
		})
	case "newest":
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].NewProduct != entries[j].NewProduct {
				return entries[i].NewProduct
			}
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		})
	case "popular":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Analytics.Views > entries[j].Analytics.Views
		})
	default:
		// relevance: featured first, then new arrivals, then search priority.
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Featured != entries[j].Featured {
				return entries[i].Featured
			}
			if entries[i].NewProduct != entries[j].NewProduct {
				return entries[i].NewProduct
			}
			return entries[i].SEO.SearchPriority > entries[j].SEO.SearchPriority
		})
	}
}

func scoreEntry(entry domain.PublicCatalogEntry, term string, tokens []string) int {
	name := textutil.Fold(entry.DisplayName)

	score := 0
	switch {
	case name == term:
		score += scoreNameExact
	case strings.HasPrefix(name, term):
		score += scoreNamePrefix
	case strings.Contains(name, term):
		score += scoreNameSubstring
	default:
		// Partial token hits on the name still count as substring matches.
		for _, token := range tokens {
			if strings.Contains(name, token) {
				score += scoreNameSubstring
				break
			}
		}
	}

	if matchesAny(entry.Category, term, tokens) || matchesAny(entry.Subcategory, term, tokens) {
		score += scoreCategory
	}
	if matchesAny(entry.CustomerDescription, term, tokens) {
		score += scoreDescription
	}
	if matchesAny(entry.Supplier.Name, term, tokens) {
		score += scoreSupplier
	}
	if sliceMatches(entry.ProductTags, term, tokens) || sliceMatches(entry.IndustryApplications, term, tokens) {
		score += scoreTagsApplications
	}
	if sliceMatches(entry.SEO.Keywords, term, tokens) || sliceMatches(entry.SEO.SearchTerms, term, tokens) {
		score += scoreSEOKeywords
	}
	return score
}

func matchesAny(value, term string, tokens []string) bool {
	folded := textutil.Fold(value)
	if folded == "" {
		return false
	}
	if strings.Contains(folded, term) {
		return true
	}
	for _, token := range tokens {
		if strings.Contains(folded, token) {
			return true
		}
	}
	return false
}

func sliceMatches(values []string, term string, tokens []string) bool {
	for _, value := range values {
		if matchesAny(value, term, tokens) {
			return true
		}
	}
	return false
}

func deriveSuggestions(entries []domain.PublicCatalogEntry, term string) []string {
	var suggestions []string
	for _, entry := range entries {
		for _, candidate := range entry.SEO.SearchTerms {
			if candidate != term && strings.Contains(candidate, term) {
				suggestions = append(suggestions, candidate)
			}
		}
	}
	suggestions = textutil.Dedupe(suggestions)
	if len(suggestions) > maxSearchSuggestions {
		suggestions = suggestions[:maxSearchSuggestions]
	}
	return suggestions
}

func filterSignature(filter CatalogFilter) string {
	return fmt.Sprintf("c=%s|f=%t|t=%t|s=%t|min=%.2f|max=%.2f|sort=%s|limit=%d",
		filter.Category,
		filter.FeaturedOnly,
		filter.TrendingOnly,
		filter.InStockOnly,
		filter.MinPrice,
		filter.MaxPrice,
		filter.Sort,
		filter.Limit,
	)
}

// fallbackCatalog is the fixed dataset served when the public store is
// unreachable or empty, preserving storefront availability during outages.
func fallbackCatalog() []domain.PublicCatalogEntry {
	return []domain.PublicCatalogEntry{
		{
			ID:                  "fallback-1",
			InternalProductID:   "fallback-1",
			DisplayName:         "Industrial Hydraulic Gear Pump",
			CustomerDescription: "Dependable gear pump for industrial hydraulic circuits up to 250 bar.",
			Category:            "hydraulics",
			Subcategory:         "Industrial Hydraulic",
			Pricing:             domain.Pricing{ListPrice: 1440, DiscountPrice: 1296, Currency: "MYR"},
			Availability:        domain.Availability{InStock: true, StockLevel: 12, StockStatus: domain.StockStatusGood, LeadTime: "1-3 days"},
			Supplier:            domain.SupplierInfo{Name: "HiggsFlow Verified Partner", Verified: true},
			Visibility:          domain.VisibilityPublic,
			Featured:            true,
		},
		{
			ID:                  "fallback-2",
			InternalProductID:   "fallback-2",
			DisplayName:         "Precision Ball Bearing Set",
			CustomerDescription: "Sealed deep-groove ball bearings for high-speed industrial spindles.",
			Category:            "bearings",
			Subcategory:         "Precision",
			Pricing:             domain.Pricing{ListPrice: 96, DiscountPrice: 86.4, Currency: "MYR"},
			Availability:        domain.Availability{InStock: true, StockLevel: 40, StockStatus: domain.StockStatusGood, LeadTime: "1-3 days"},
			Supplier:            domain.SupplierInfo{Name: "HiggsFlow Verified Partner", Verified: true},
			Visibility:          domain.VisibilityPublic,
		},
		{
			ID:                  "fallback-3",
			InternalProductID:   "fallback-3",
			DisplayName:         "Industrial Pneumatic Solenoid Valve",
			CustomerDescription: "5/2-way solenoid valve for pneumatic actuation in packaging lines.",
			Category:            "pneumatics",
			Subcategory:         "Industrial Pneumatic",
			Pricing:             domain.Pricing{ListPrice: 228, DiscountPrice: 205.2, Currency: "MYR"},
			Availability:        domain.Availability{InStock: true, StockLevel: 25, StockStatus: domain.StockStatusGood, LeadTime: "1-3 days"},
			Supplier:            domain.SupplierInfo{Name: "HiggsFlow Verified Partner", Verified: true},
			Visibility:          domain.VisibilityPublic,
		},
	}
}
