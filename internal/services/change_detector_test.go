package services

import (
	"testing"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
)

func baseEntry() domain.PublicCatalogEntry {
	return domain.PublicCatalogEntry{
		InternalProductID:   "p1",
		DisplayName:         "Industrial Hydraulic Gear Pump",
		CustomerDescription: "A dependable gear pump for industrial hydraulic circuits.",
		Pricing: domain.Pricing{
			ListPrice:     120,
			DiscountPrice: 108,
			Currency:      "MYR",
			BulkPricing:   []domain.BulkTier{{MinQty: 10, UnitPrice: 102.6, Discount: 0.05}},
		},
		Availability: domain.Availability{
			InStock:     true,
			StockLevel:  15,
			MinStock:    5,
			StockStatus: domain.StockStatusGood,
			LeadTime:    "1-3 days",
		},
		Category:             "hydraulics",
		Subcategory:          "Industrial Hydraulic",
		IndustryApplications: []string{"manufacturing"},
		ProductTags:          []string{"hydraulics"},
		Specifications:       map[string]string{"flow": "30 l/min"},
		Supplier:             domain.SupplierInfo{Name: "Acme Supply", Verified: true},
		Visibility:           domain.VisibilityPublic,
		SEO:                  domain.SEOMetadata{Keywords: []string{"gear", "pump"}},
		Version:              3,
		SyncedAt:             time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:            time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDiffReturnsNilWhenOnlyTimestampsDiffer(t *testing.T) {
	detector := NewChangeDetector()

	candidate := baseEntry()
	candidate.SyncedAt = candidate.SyncedAt.Add(48 * time.Hour)
	candidate.UpdatedAt = candidate.UpdatedAt.Add(48 * time.Hour)
	candidate.Version = 1
	candidate.Analytics = domain.EntryAnalytics{Views: 999}

	if diff := detector.Diff(candidate, baseEntry()); diff != nil {
		t.Fatalf("expected nil diff, got groups %v", diff.Groups)
	}
}

func TestDiffDetectsSingleGroupChange(t *testing.T) {
	detector := NewChangeDetector()

	candidate := baseEntry()
	candidate.Availability.StockLevel = 0
	candidate.Availability.InStock = false
	candidate.Availability.StockStatus = domain.StockStatusOut

	diff := detector.Diff(candidate, baseEntry())
	if diff == nil {
		t.Fatal("expected diff for availability change")
	}
	if len(diff.Groups) != 1 || diff.Groups[0] != domain.GroupAvailability {
		t.Fatalf("groups = %v, want only availability", diff.Groups)
	}
	if diff.RegenerateImages {
		t.Fatal("availability change must not trigger image regeneration")
	}
}

func TestDiffFlagsImageRegeneration(t *testing.T) {
	detector := NewChangeDetector()

	cases := []struct {
		name   string
		mutate func(*domain.PublicCatalogEntry)
	}{
		{"category", func(e *domain.PublicCatalogEntry) { e.Category = "pneumatics" }},
		{"display name", func(e *domain.PublicCatalogEntry) { e.DisplayName = "Renamed Pump" }},
		{"specifications", func(e *domain.PublicCatalogEntry) { e.Specifications["flow"] = "45 l/min" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidate := baseEntry()
			tc.mutate(&candidate)
			diff := detector.Diff(candidate, baseEntry())
			if diff == nil {
				t.Fatal("expected diff")
			}
			if !diff.RegenerateImages {
				t.Fatalf("%s change should trigger image regeneration", tc.name)
			}
		})
	}
}

func TestDiffPricingChangeDoesNotFlagImages(t *testing.T) {
	detector := NewChangeDetector()

	candidate := baseEntry()
	candidate.Pricing.ListPrice = 150
	candidate.Pricing.DiscountPrice = 135

	diff := detector.Diff(candidate, baseEntry())
	if diff == nil {
		t.Fatal("expected diff for pricing change")
	}
	if diff.RegenerateImages {
		t.Fatal("pricing change must not trigger image regeneration")
	}
	if !diff.HasGroup(domain.GroupPricing) {
		t.Fatalf("groups = %v, want pricing", diff.Groups)
	}
}

func TestDiffPublicationGroup(t *testing.T) {
	detector := NewChangeDetector()

	candidate := baseEntry()
	candidate.Visibility = domain.VisibilityPrivate

	diff := detector.Diff(candidate, baseEntry())
	if diff == nil || !diff.HasGroup(domain.GroupPublication) {
		t.Fatalf("visibility change not detected: %+v", diff)
	}
}

func TestDiffChangedFieldsAudit(t *testing.T) {
	detector := NewChangeDetector()

	candidate := baseEntry()
	candidate.DisplayName = "Renamed"
	candidate.Pricing.ListPrice = 1

	diff := detector.Diff(candidate, baseEntry())
	if diff == nil {
		t.Fatal("expected diff")
	}
	fields := diff.ChangedFields()
	want := map[string]bool{"pricing": false, "displayName": false, "customerDescription": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("changed fields %v missing %q", fields, field)
		}
	}
}
