package services

import (
	"reflect"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
)

type changeDetector struct{}

// NewChangeDetector constructs the semantic-group diff used by the sync path.
func NewChangeDetector() ChangeDetector {
	return changeDetector{}
}

// Diff compares the candidate against the stored entry group by group.
// Timestamps, version and analytics are deliberately outside every group so
// churn on them never produces a write.
func (changeDetector) Diff(candidate domain.PublicCatalogEntry, existing domain.PublicCatalogEntry) *domain.FieldUpdate {
	var groups []domain.ChangeGroup

	if !reflect.DeepEqual(candidate.Pricing, existing.Pricing) {
		groups = append(groups, domain.GroupPricing)
	}
	if !reflect.DeepEqual(candidate.Availability, existing.Availability) {
		groups = append(groups, domain.GroupAvailability)
	}
	displayChanged := candidate.DisplayName != existing.DisplayName ||
		candidate.CustomerDescription != existing.CustomerDescription
	if displayChanged {
		groups = append(groups, domain.GroupDisplay)
	}
	categoryChanged := candidate.Category != existing.Category ||
		candidate.Subcategory != existing.Subcategory ||
		!reflect.DeepEqual(candidate.SEO, existing.SEO)
	if categoryChanged {
		groups = append(groups, domain.GroupCategorySEO)
	}
	if !reflect.DeepEqual(candidate.Supplier, existing.Supplier) {
		groups = append(groups, domain.GroupSupplier)
	}
	specificationsChanged := !equalStringMaps(candidate.Specifications, existing.Specifications)
	if specificationsChanged {
		groups = append(groups, domain.GroupSpecifications)
	}
	if candidate.Visibility != existing.Visibility ||
		candidate.Featured != existing.Featured ||
		candidate.NewProduct != existing.NewProduct ||
		!equalStringSlices(candidate.ProductTags, existing.ProductTags) ||
		!equalStringSlices(candidate.IndustryApplications, existing.IndustryApplications) {
		groups = append(groups, domain.GroupPublication)
	}

	if len(groups) == 0 {
		return nil
	}

	return &domain.FieldUpdate{
		Candidate: candidate,
		Groups:    groups,
		RegenerateImages: candidate.Category != existing.Category ||
			candidate.DisplayName != existing.DisplayName ||
			specificationsChanged,
	}
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		if other, ok := b[key]; !ok || other != value {
			return false
		}
	}
	return true
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
