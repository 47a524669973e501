package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
	"github.com/higgsflow/catalog-sync/internal/platform/textutil"
)

const (
	minDescriptionLength = 50
	metaDescriptionLimit = 160
	minTokenLength       = 3
)

var industryApplications = map[string][]string{
	"hydraulics": {"manufacturing", "construction", "marine"},
	"pneumatics": {"manufacturing", "packaging", "automation"},
	"bearings":   {"manufacturing", "automotive", "heavy machinery"},
	"electrical": {"manufacturing", "facilities", "energy"},
	"automation": {"manufacturing", "logistics", "process control"},
}

// TransformerDeps bundles the policies and clock required to construct a transformer.
type TransformerDeps struct {
	Pricing domain.PricingPolicy
	Catalog domain.CatalogPolicy
	Clock   func() time.Time
}

type productTransformer struct {
	pricing   domain.PricingPolicy
	catalog   domain.CatalogPolicy
	clock     func() time.Time
	sanitizer *bluemonday.Policy
}

// NewProductTransformer constructs the pure internal-to-public transform.
// Zero-valued policy fields fall back to the defaults so a partially
// configured policy never produces nonsense prices.
func NewProductTransformer(deps TransformerDeps) (ProductTransformer, error) {
	pricing := deps.Pricing
	defaults := domain.DefaultPricingPolicy()
	if pricing.MarkupFactor <= 0 {
		pricing.MarkupFactor = defaults.MarkupFactor
	}
	if pricing.DefaultDiscount < 0 || pricing.DefaultDiscount >= 1 {
		return nil, errors.New("transformer: default discount must be in [0, 1)")
	}
	if pricing.DefaultDiscount == 0 {
		pricing.DefaultDiscount = defaults.DefaultDiscount
	}
	if pricing.Currency == "" {
		pricing.Currency = defaults.Currency
	}
	if len(pricing.BulkBreakpoints) == 0 {
		pricing.BulkBreakpoints = defaults.BulkBreakpoints
	}
	for _, bp := range pricing.BulkBreakpoints {
		if bp.MinQty <= 0 || bp.Discount < 0 || bp.Discount >= 1 {
			return nil, fmt.Errorf("transformer: invalid bulk breakpoint %d:%v", bp.MinQty, bp.Discount)
		}
	}

	catalog := deps.Catalog
	catalogDefaults := domain.DefaultCatalogPolicy()
	if catalog.FeaturedStockThreshold <= 0 {
		catalog.FeaturedStockThreshold = catalogDefaults.FeaturedStockThreshold
	}
	if catalog.FeaturedPriceThreshold <= 0 {
		catalog.FeaturedPriceThreshold = catalogDefaults.FeaturedPriceThreshold
	}
	if catalog.NewProductWindow <= 0 {
		catalog.NewProductWindow = catalogDefaults.NewProductWindow
	}
	if catalog.CategoryQualifiers == nil {
		catalog.CategoryQualifiers = catalogDefaults.CategoryQualifiers
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &productTransformer{
		pricing:   pricing,
		catalog:   catalog,
		clock:     func() time.Time { return clock().UTC() },
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (t *productTransformer) Transform(product domain.InternalProduct) domain.PublicCatalogEntry {
	now := t.clock()

	name := strings.TrimSpace(product.Name)
	if name == "" {
		name = strings.TrimSpace(product.SKU)
	}
	if name == "" {
		name = "Product " + product.ID
	}

	displayName := t.displayName(name, product.Brand, product.Category)
	description := t.customerDescription(product, displayName)
	pricing := t.derivePricing(product.Price)
	availability := deriveAvailability(product.Stock, product.MinStock)

	visibility := domain.VisibilityPrivate
	if product.Stock > 0 && product.Status != domain.ProductStatusPending {
		visibility = domain.VisibilityPublic
	}
	featured := product.Stock > t.catalog.FeaturedStockThreshold &&
		product.Price > t.catalog.FeaturedPriceThreshold
	newProduct := !product.DateAdded.IsZero() &&
		now.Sub(product.DateAdded) <= t.catalog.NewProductWindow

	category := textutil.Fold(strings.TrimSpace(product.Category))
	qualifier := t.catalog.CategoryQualifiers[category]
	subcategory := qualifier
	if subcategory == "" {
		subcategory = textutil.Title(category)
	}

	applications := industryApplications[category]
	if len(applications) == 0 {
		applications = []string{"general industry"}
	}

	return domain.PublicCatalogEntry{
		InternalProductID:    product.ID,
		DisplayName:          displayName,
		CustomerDescription:  description,
		Pricing:              pricing,
		SEO:                  t.deriveSEO(product, displayName, description, availability, pricing, newProduct),
		Category:             category,
		Subcategory:          subcategory,
		IndustryApplications: applications,
		ProductTags:          deriveTags(category, product.Brand, featured, newProduct),
		Availability:         availability,
		Specifications:       textutil.NormalizeStringMap(product.Specifications),
		Supplier:             deriveSupplier(product),
		Visibility:           visibility,
		Featured:             featured,
		NewProduct:           newProduct,
		Version:              1,
		SyncedAt:             now,
		UpdatedAt:            now,
	}
}

func (t *productTransformer) displayName(name, brand, category string) string {
	displayName := name
	if b := strings.TrimSpace(brand); b != "" && !containsFold(displayName, b) {
		displayName = b + " " + displayName
	}
	qualifier := t.catalog.CategoryQualifiers[textutil.Fold(strings.TrimSpace(category))]
	if qualifier != "" && !containsFold(displayName, qualifier) {
		displayName = qualifier + " " + displayName
	}
	return displayName
}

func (t *productTransformer) customerDescription(product domain.InternalProduct, displayName string) string {
	description := strings.TrimSpace(t.sanitizer.Sanitize(product.Description))
	if len(description) >= minDescriptionLength {
		return description
	}

	parts := []string{displayName, "for industrial and professional applications."}
	if brand := strings.TrimSpace(product.Brand); brand != "" {
		parts = append(parts, "Manufactured by "+brand+".")
	}
	if sku := strings.TrimSpace(product.SKU); sku != "" {
		parts = append(parts, "SKU "+sku+".")
	}
	parts = append(parts, "Quality assured by HiggsFlow supplier verification.")
	return strings.Join(parts, " ")
}

func (t *productTransformer) derivePricing(basePrice float64) domain.Pricing {
	if basePrice < 0 {
		basePrice = 0
	}
	listPrice := round2(basePrice * t.pricing.MarkupFactor)
	discountPrice := round2(listPrice * (1 - t.pricing.DefaultDiscount))
	if discountPrice > listPrice {
		discountPrice = listPrice
	}

	tiers := make([]domain.BulkTier, 0, len(t.pricing.BulkBreakpoints))
	for _, bp := range t.pricing.BulkBreakpoints {
		tiers = append(tiers, domain.BulkTier{
			MinQty:    bp.MinQty,
			UnitPrice: round2(discountPrice * (1 - bp.Discount)),
			Discount:  bp.Discount,
		})
	}

	return domain.Pricing{
		ListPrice:     listPrice,
		DiscountPrice: discountPrice,
		BulkPricing:   tiers,
		Currency:      t.pricing.Currency,
	}
}

func deriveAvailability(stock, minStock int) domain.Availability {
	if stock < 0 {
		stock = 0
	}
	if minStock < 0 {
		minStock = 0
	}

	var status domain.StockStatus
	switch {
	case stock == 0:
		status = domain.StockStatusOut
	case stock <= minStock:
		status = domain.StockStatusLow
	case stock <= 2*minStock:
		status = domain.StockStatusCritical
	default:
		status = domain.StockStatusGood
	}

	leadTime := "1-3 days"
	switch status {
	case domain.StockStatusOut:
		leadTime = "4-6 weeks"
	case domain.StockStatusLow:
		leadTime = "2-3 weeks"
	case domain.StockStatusCritical:
		leadTime = "1-2 weeks"
	}

	return domain.Availability{
		InStock:     stock > 0,
		StockLevel:  stock,
		MinStock:    minStock,
		StockStatus: status,
		LeadTime:    leadTime,
	}
}

func (t *productTransformer) deriveSEO(
	product domain.InternalProduct,
	displayName string,
	description string,
	availability domain.Availability,
	pricing domain.Pricing,
	newProduct bool,
) domain.SEOMetadata {
	keywords := textutil.Tokenize(product.Name, minTokenLength)
	keywords = append(keywords, textutil.Tokenize(product.Brand, minTokenLength)...)
	keywords = append(keywords, textutil.Tokenize(product.Category, minTokenLength)...)
	keywords = append(keywords, textutil.Tokenize(product.SKU, minTokenLength)...)
	keywords = textutil.Dedupe(keywords)

	searchTerms := append([]string{}, keywords...)
	searchTerms = append(searchTerms, textutil.Fold(displayName))
	if sku := textutil.Fold(product.SKU); sku != "" {
		searchTerms = append(searchTerms, sku)
	}
	searchTerms = textutil.Dedupe(searchTerms)

	categoryTags := textutil.Dedupe(textutil.Tokenize(product.Category, 1))

	metaTitle := displayName
	if brand := strings.TrimSpace(product.Brand); brand != "" && !containsFold(metaTitle, brand) {
		metaTitle = metaTitle + " by " + brand
	}
	metaDescription := description
	if len(metaDescription) > metaDescriptionLimit {
		metaDescription = strings.TrimSpace(metaDescription[:metaDescriptionLimit-1]) + "…"
	}

	priority := 0
	switch availability.StockStatus {
	case domain.StockStatusGood:
		priority += 30
	case domain.StockStatusCritical:
		priority += 20
	case domain.StockStatusLow:
		priority += 10
	}
	switch {
	case pricing.ListPrice >= t.catalog.FeaturedPriceThreshold:
		priority += 20
	case pricing.ListPrice >= 100:
		priority += 10
	}
	if newProduct {
		priority += 25
	}

	return domain.SEOMetadata{
		Keywords:        keywords,
		SearchTerms:     searchTerms,
		CategoryTags:    categoryTags,
		MetaTitle:       metaTitle,
		MetaDescription: metaDescription,
		SearchPriority:  priority,
	}
}

func deriveTags(category, brand string, featured, newProduct bool) []string {
	tags := make([]string, 0, 4)
	if category != "" {
		tags = append(tags, category)
	}
	if b := textutil.Fold(strings.TrimSpace(brand)); b != "" {
		tags = append(tags, b)
	}
	if featured {
		tags = append(tags, "featured")
	}
	if newProduct {
		tags = append(tags, "new-arrival")
	}
	return textutil.Dedupe(tags)
}

func deriveSupplier(product domain.InternalProduct) domain.SupplierInfo {
	name := strings.TrimSpace(product.SupplierName)
	if name == "" {
		name = "HiggsFlow Verified Partner"
	}
	return domain.SupplierInfo{
		Name:     name,
		Verified: strings.TrimSpace(product.SupplierID) != "",
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
