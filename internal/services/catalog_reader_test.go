package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/higgsflow/catalog-sync/internal/domain"
)

func publicEntry(id, name, category string, price float64) domain.PublicCatalogEntry {
	return domain.PublicCatalogEntry{
		ID:                  id,
		InternalProductID:   id,
		DisplayName:         name,
		CustomerDescription: name + " for industrial applications.",
		Category:            category,
		Pricing:             domain.Pricing{ListPrice: price, DiscountPrice: price * 0.9, Currency: "MYR"},
		Availability:        domain.Availability{InStock: true, StockLevel: 10, StockStatus: domain.StockStatusGood},
		Visibility:          domain.VisibilityPublic,
	}
}

func newReaderFixture(t *testing.T, clock func() time.Time) (CatalogReader, *stubCatalogRepo) {
	t.Helper()
	catalog := newStubCatalogRepo()
	reader, err := NewCatalogReader(CatalogReaderDeps{
		Catalog: catalog,
		Clock:   clock,
	})
	if err != nil {
		t.Fatalf("NewCatalogReader: %v", err)
	}
	return reader, catalog
}

func TestReaderListFiltersAndSorts(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return now })

	catalog.entries["e1"] = publicEntry("e1", "Gear Pump", "hydraulics", 500)
	catalog.entries["e2"] = publicEntry("e2", "Ball Valve", "hydraulics", 100)
	hidden := publicEntry("e3", "Secret Pump", "hydraulics", 50)
	hidden.Visibility = domain.VisibilityPrivate
	catalog.entries["e3"] = hidden
	catalog.entries["e4"] = publicEntry("e4", "Bearing", "bearings", 80)

	entries, err := reader.List(context.Background(), CatalogFilter{Category: "hydraulics", Sort: "price-low"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 public hydraulics entries", len(entries))
	}
	if entries[0].ID != "e2" || entries[1].ID != "e1" {
		t.Fatalf("sort order = %s, %s; want e2, e1", entries[0].ID, entries[1].ID)
	}
}

func TestReaderListPriceRange(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return now })

	catalog.entries["e1"] = publicEntry("e1", "Cheap", "misc", 10)
	catalog.entries["e2"] = publicEntry("e2", "Mid", "misc", 100)
	catalog.entries["e3"] = publicEntry("e3", "Expensive", "misc", 1000)

	entries, err := reader.List(context.Background(), CatalogFilter{MinPrice: 50, MaxPrice: 500})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e2" {
		t.Fatalf("price range filter returned %v", entries)
	}
}

func TestReaderCachesWithinTTL(t *testing.T) {
	current := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return current })

	catalog.entries["e1"] = publicEntry("e1", "Gear Pump", "hydraulics", 500)

	if _, err := reader.List(context.Background(), CatalogFilter{}); err != nil {
		t.Fatalf("List: %v", err)
	}

	// A write after the first read is invisible until the TTL lapses.
	catalog.entries["e2"] = publicEntry("e2", "Ball Valve", "hydraulics", 100)

	entries, _ := reader.List(context.Background(), CatalogFilter{})
	if len(entries) != 1 {
		t.Fatalf("cached read returned %d entries, want 1", len(entries))
	}

	current = current.Add(defaultReaderCacheTTL + time.Second)
	entries, _ = reader.List(context.Background(), CatalogFilter{})
	if len(entries) != 2 {
		t.Fatalf("post-TTL read returned %d entries, want 2", len(entries))
	}
}

func TestReaderFallsBackOnEmptyCatalog(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, _ := newReaderFixture(t, func() time.Time { return now })

	entries, err := reader.List(context.Background(), CatalogFilter{})
	if err != nil {
		t.Fatalf("List must not propagate store emptiness: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected fallback dataset, got nothing")
	}
	for _, entry := range entries {
		if entry.Visibility != domain.VisibilityPublic {
			t.Fatalf("fallback entry %s not public", entry.ID)
		}
	}
}

func TestReaderSearchRanksNameMatchesFirst(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return now })

	bearing := publicEntry("e1", "Industrial Ball Bearing Set", "bearings", 90)
	valve := publicEntry("e2", "Hydraulic Valve", "hydraulics", 200)
	catalog.entries["e1"] = bearing
	catalog.entries["e2"] = valve

	result, err := reader.Search(context.Background(), "bearing", CatalogFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("search hits = %d, want only the bearing entry", len(result.Entries))
	}
	if result.Entries[0].ID != "e1" {
		t.Fatalf("top hit = %s, want e1", result.Entries[0].ID)
	}
}

func TestReaderSearchScoringOrder(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return now })

	exact := publicEntry("e1", "Pump", "hydraulics", 100)
	prefixed := publicEntry("e2", "Pump Station Kit", "hydraulics", 100)
	substring := publicEntry("e3", "Gear Pump Deluxe", "hydraulics", 100)
	categoryOnly := publicEntry("e4", "Spare Seal", "pumps", 100)
	catalog.entries["e1"] = exact
	catalog.entries["e2"] = prefixed
	catalog.entries["e3"] = substring
	catalog.entries["e4"] = categoryOnly

	result, err := reader.Search(context.Background(), "pump", CatalogFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Entries) != 4 {
		t.Fatalf("hits = %d, want 4", len(result.Entries))
	}
	gotOrder := []string{result.Entries[0].ID, result.Entries[1].ID, result.Entries[2].ID}
	wantOrder := []string{"e1", "e2", "e3"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want exact > prefix > substring", gotOrder)
		}
	}
	if result.Entries[3].ID != "e4" {
		t.Fatalf("category-only match should rank last, got %s", result.Entries[3].ID)
	}
}

func TestReaderSearchSuggestions(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return now })

	entry := publicEntry("e1", "Industrial Ball Bearing Set", "bearings", 90)
	entry.SEO.SearchTerms = []string{"ball bearing", "bearing set", "spindle"}
	catalog.entries["e1"] = entry

	result, err := reader.Search(context.Background(), "bearing", CatalogFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Suggestions) == 0 {
		t.Fatal("expected derived suggestions")
	}
	for _, suggestion := range result.Suggestions {
		if suggestion == "bearing" {
			t.Fatal("search term itself must not be suggested")
		}
	}
}

func TestReaderGetHidesPrivateEntries(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	reader, catalog := newReaderFixture(t, func() time.Time { return now })

	private := publicEntry("e1", "Hidden", "misc", 10)
	private.Visibility = domain.VisibilityPrivate
	catalog.entries["e1"] = private

	if _, err := reader.Get(context.Background(), "e1"); err != ErrEntryNotFound {
		t.Fatalf("Get private entry = %v, want ErrEntryNotFound", err)
	}
	if _, err := reader.Get(context.Background(), "missing"); err != ErrEntryNotFound {
		t.Fatalf("Get missing entry = %v, want ErrEntryNotFound", err)
	}
}
