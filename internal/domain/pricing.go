package domain

import "time"

// BulkBreakpoint pairs a quantity threshold with the percentage taken off the
// discount price for orders at or above that quantity.
type BulkBreakpoint struct {
	MinQty   int
	Discount float64
}

// PricingPolicy collects the externally tunable constants used when deriving
// customer-facing prices. A single policy value is shared by the initial
// transform and the update path so the two can never drift.
type PricingPolicy struct {
	MarkupFactor    float64
	DefaultDiscount float64
	Currency        string
	BulkBreakpoints []BulkBreakpoint
}

// DefaultPricingPolicy returns the stock policy applied when configuration
// supplies no overrides.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		MarkupFactor:    1.20,
		DefaultDiscount: 0.10,
		Currency:        "MYR",
		BulkBreakpoints: []BulkBreakpoint{
			{MinQty: 10, Discount: 0.05},
			{MinQty: 25, Discount: 0.10},
			{MinQty: 50, Discount: 0.15},
			{MinQty: 100, Discount: 0.20},
		},
	}
}

// CatalogPolicy gathers the non-pricing thresholds that shape a derived entry.
type CatalogPolicy struct {
	FeaturedStockThreshold int
	FeaturedPriceThreshold float64
	NewProductWindow       time.Duration
	CategoryQualifiers     map[string]string
}

// DefaultCatalogPolicy returns the defaults used when configuration supplies
// no overrides.
func DefaultCatalogPolicy() CatalogPolicy {
	return CatalogPolicy{
		FeaturedStockThreshold: 20,
		FeaturedPriceThreshold: 500,
		NewProductWindow:       30 * 24 * time.Hour,
		CategoryQualifiers: map[string]string{
			"hydraulics": "Industrial Hydraulic",
			"pneumatics": "Industrial Pneumatic",
			"bearings":   "Precision",
			"electrical": "Industrial Electrical",
			"automation": "Industrial Automation",
		},
	}
}
