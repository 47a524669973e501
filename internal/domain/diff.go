package domain

// ChangeGroup names one semantic group of catalog-entry fields compared as a
// unit by the change detector. Grouped comparison avoids spurious writes from
// timestamp churn on unrelated fields.
type ChangeGroup string

const (
	// GroupPricing covers the derived price set.
	GroupPricing ChangeGroup = "pricing"
	// GroupAvailability covers stock-derived fields.
	GroupAvailability ChangeGroup = "availability"
	// GroupDisplay covers displayName and customerDescription.
	GroupDisplay ChangeGroup = "display"
	// GroupCategorySEO covers category, subcategory and SEO metadata.
	GroupCategorySEO ChangeGroup = "categorySeo"
	// GroupSupplier covers the public supplier subset.
	GroupSupplier ChangeGroup = "supplier"
	// GroupSpecifications covers the free-form specification map.
	GroupSpecifications ChangeGroup = "specifications"
	// GroupPublication covers visibility, featured/new flags and tag lists.
	GroupPublication ChangeGroup = "publication"
)

// FieldUpdate is the minimal diff produced by the change detector: the fresh
// candidate entry plus the semantic groups that actually changed. Writers
// persist only the named groups (plus the mandatory syncedAt/updatedAt bump).
type FieldUpdate struct {
	Candidate        PublicCatalogEntry
	Groups           []ChangeGroup
	RegenerateImages bool
}

// IsEmpty reports whether the update carries no changed groups.
func (u *FieldUpdate) IsEmpty() bool {
	return u == nil || len(u.Groups) == 0
}

// ChangedFields flattens the changed groups into audit-log field names.
func (u *FieldUpdate) ChangedFields() []string {
	if u == nil {
		return nil
	}
	fields := make([]string, 0, len(u.Groups)*2)
	for _, group := range u.Groups {
		switch group {
		case GroupPricing:
			fields = append(fields, "pricing")
		case GroupAvailability:
			fields = append(fields, "availability")
		case GroupDisplay:
			fields = append(fields, "displayName", "customerDescription")
		case GroupCategorySEO:
			fields = append(fields, "category", "subcategory", "seo")
		case GroupSupplier:
			fields = append(fields, "supplier")
		case GroupSpecifications:
			fields = append(fields, "specifications")
		case GroupPublication:
			fields = append(fields, "visibility", "featured", "newProduct", "productTags", "industryApplications")
		}
	}
	return fields
}

// HasGroup reports whether the update includes the named group.
func (u *FieldUpdate) HasGroup(group ChangeGroup) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}
