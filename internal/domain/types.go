package domain

import (
	"time"
)

// ProductStatus enumerates lifecycle states of an internal product record.
type ProductStatus string

const (
	// ProductStatusActive marks a product available for catalog publication.
	ProductStatusActive ProductStatus = "active"
	// ProductStatusPending marks a product still under procurement review.
	ProductStatusPending ProductStatus = "pending"
	// ProductStatusDiscontinued marks a product no longer sourced.
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// InternalProduct is the procurement system-of-record item. The sync pipeline
// treats it as read-only input; it is owned and mutated by the back-office CRUD
// surface.
type InternalProduct struct {
	ID             string            `firestore:"-"`
	Name           string            `firestore:"name"`
	Brand          string            `firestore:"brand"`
	SKU            string            `firestore:"sku"`
	Category       string            `firestore:"category"`
	Description    string            `firestore:"description"`
	Price          float64           `firestore:"price"`
	Stock          int               `firestore:"stock"`
	MinStock       int               `firestore:"minStock"`
	Status         ProductStatus     `firestore:"status"`
	SupplierID     string            `firestore:"supplierId"`
	SupplierName   string            `firestore:"supplierName"`
	Specifications map[string]string `firestore:"specifications"`
	DateAdded      time.Time         `firestore:"dateAdded"`
	UpdatedAt      time.Time         `firestore:"updatedAt"`
}

// StockStatus is the categorical availability label derived from stock level
// versus the minimum-stock threshold. It is never set independently.
type StockStatus string

const (
	// StockStatusGood indicates comfortable stock levels.
	StockStatusGood StockStatus = "good"
	// StockStatusCritical indicates stock within twice the minimum threshold.
	StockStatusCritical StockStatus = "critical"
	// StockStatusLow indicates stock at or below the minimum threshold.
	StockStatusLow StockStatus = "low"
	// StockStatusOut indicates no stock on hand.
	StockStatusOut StockStatus = "out_of_stock"
)

// Visibility controls whether a catalog entry is exposed to storefront queries.
type Visibility string

const (
	// VisibilityPublic exposes the entry to storefront queries.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate hides the entry from storefront queries.
	VisibilityPrivate Visibility = "private"
)

// BulkTier describes one quantity-break price step relative to the discount price.
type BulkTier struct {
	MinQty    int     `firestore:"minQty" json:"minQty"`
	UnitPrice float64 `firestore:"unitPrice" json:"unitPrice"`
	Discount  float64 `firestore:"discount" json:"discount"`
}

// Pricing carries the derived customer-facing price set for a catalog entry.
type Pricing struct {
	ListPrice     float64    `firestore:"listPrice" json:"listPrice"`
	DiscountPrice float64    `firestore:"discountPrice" json:"discountPrice"`
	BulkPricing   []BulkTier `firestore:"bulkPricing" json:"bulkPricing"`
	Currency      string     `firestore:"currency" json:"currency"`
}

// Availability summarises purchasable state derived from the source stock fields.
type Availability struct {
	InStock     bool        `firestore:"inStock" json:"inStock"`
	StockLevel  int         `firestore:"stockLevel" json:"stockLevel"`
	MinStock    int         `firestore:"minStock" json:"minStock"`
	StockStatus StockStatus `firestore:"stockStatus" json:"stockStatus"`
	LeadTime    string      `firestore:"leadTime" json:"leadTime"`
}

// ImageSet groups the generated imagery attached to a catalog entry.
type ImageSet struct {
	Primary         string    `firestore:"primary" json:"primary"`
	Technical       string    `firestore:"technical" json:"technical"`
	Application     string    `firestore:"application" json:"application"`
	Gallery         []string  `firestore:"gallery" json:"gallery"`
	ImageGenerated  bool      `firestore:"imageGenerated" json:"imageGenerated"`
	LastImageUpdate time.Time `firestore:"lastImageUpdate" json:"lastImageUpdate"`
}

// SEOMetadata holds search and discoverability fields derived by the transformer.
type SEOMetadata struct {
	Keywords        []string `firestore:"keywords" json:"keywords"`
	SearchTerms     []string `firestore:"searchTerms" json:"searchTerms"`
	CategoryTags    []string `firestore:"categoryTags" json:"categoryTags"`
	MetaTitle       string   `firestore:"metaTitle" json:"metaTitle"`
	MetaDescription string   `firestore:"metaDescription" json:"metaDescription"`
	SearchPriority  int      `firestore:"searchPriority" json:"searchPriority"`
}

// SupplierInfo is the public-safe subset of supplier data shown on the storefront.
type SupplierInfo struct {
	Name     string  `firestore:"name" json:"name"`
	Rating   float64 `firestore:"rating" json:"rating"`
	Location string  `firestore:"location" json:"location"`
	Verified bool    `firestore:"verified" json:"verified"`
}

// EntryAnalytics carries storefront counters. The sync pipeline only
// initialises these; they are incremented elsewhere and must never decrease.
type EntryAnalytics struct {
	Views     int64 `firestore:"views" json:"views"`
	Inquiries int64 `firestore:"inquiries" json:"inquiries"`
	Orders    int64 `firestore:"orders" json:"orders"`
}

// PublicCatalogEntry is the derived, customer-facing materialisation of an
// InternalProduct. Exactly one entry per internal product is the target
// invariant, though transient duplicates are tolerated by the delete path.
type PublicCatalogEntry struct {
	ID                   string            `firestore:"-" json:"id"`
	InternalProductID    string            `firestore:"internalProductId" json:"internalProductId"`
	DisplayName          string            `firestore:"displayName" json:"displayName"`
	CustomerDescription  string            `firestore:"customerDescription" json:"customerDescription"`
	Pricing              Pricing           `firestore:"pricing" json:"pricing"`
	Images               ImageSet          `firestore:"images" json:"images"`
	SEO                  SEOMetadata       `firestore:"seo" json:"seo"`
	Category             string            `firestore:"category" json:"category"`
	Subcategory          string            `firestore:"subcategory" json:"subcategory"`
	IndustryApplications []string          `firestore:"industryApplications" json:"industryApplications"`
	ProductTags          []string          `firestore:"productTags" json:"productTags"`
	Availability         Availability      `firestore:"availability" json:"availability"`
	Specifications       map[string]string `firestore:"specifications" json:"specifications"`
	Supplier             SupplierInfo      `firestore:"supplier" json:"supplier"`
	Visibility           Visibility        `firestore:"visibility" json:"visibility"`
	Featured             bool              `firestore:"featured" json:"featured"`
	Trending             bool              `firestore:"trending" json:"trending"`
	NewProduct           bool              `firestore:"newProduct" json:"newProduct"`
	Analytics            EntryAnalytics    `firestore:"analytics" json:"analytics"`
	Version              int               `firestore:"version" json:"version"`
	SyncedAt             time.Time         `firestore:"syncedAt" json:"syncedAt"`
	UpdatedAt            time.Time         `firestore:"updatedAt" json:"updatedAt"`
}

// SyncType enumerates the mutation kinds propagated by the pipeline.
type SyncType string

const (
	// SyncTypeCreate inserts a new catalog entry.
	SyncTypeCreate SyncType = "create"
	// SyncTypeUpdate applies a partial update to an existing entry.
	SyncTypeUpdate SyncType = "update"
	// SyncTypeDelete removes all entries for a deleted internal product.
	SyncTypeDelete SyncType = "delete"
)

// SyncStatus describes terminal and intermediate states of a sync attempt.
type SyncStatus string

const (
	// SyncStatusPending marks an operation still queued or in flight.
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSuccess marks an operation that committed to the public store.
	SyncStatusSuccess SyncStatus = "success"
	// SyncStatusFailed marks an operation that exhausted its retries.
	SyncStatusFailed SyncStatus = "failed"
	// SyncStatusPartial marks an operation that committed only some writes.
	SyncStatusPartial SyncStatus = "partial"
)

// SyncLogEntry is the append-only audit record written once per completed or
// exhausted sync attempt. It is never read back by the pipeline at runtime.
type SyncLogEntry struct {
	SyncID             string     `firestore:"syncId"`
	InternalProductID  string     `firestore:"internalProductId"`
	EcommerceProductID string     `firestore:"ecommerceProductId"`
	SyncType           SyncType   `firestore:"syncType"`
	Status             SyncStatus `firestore:"status"`
	ChangedFields      []string   `firestore:"changedFields"`
	RetryCount         int        `firestore:"retryCount"`
	ProcessingTimeMs   int64      `firestore:"processingTimeMs"`
	ErrorMessage       string     `firestore:"errorMessage,omitempty"`
	CreatedAt          time.Time  `firestore:"createdAt"`
}

// ChangeKind labels the mutation observed on the internal product store.
type ChangeKind string

const (
	// ChangeAdded signals a newly created internal product.
	ChangeAdded ChangeKind = "added"
	// ChangeModified signals an updated internal product.
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved signals a deleted internal product.
	ChangeRemoved ChangeKind = "removed"
)

// ProductChange is one event delivered by the internal-store change subscription.
type ProductChange struct {
	Kind    ChangeKind
	Product InternalProduct
}
