package pipeline

import "testing"

func TestCleanDropsInvalidRows(t *testing.T) {
	listings := []Listing{
		{BrokerTitle: "a", PropertyType: "Condo for sale", Beds: 2, Bath: 1, SquareFeet: 800, SubLocality: "Manhattan", Price: 750000},
		{BrokerTitle: "b", PropertyType: "House for sale", Beds: 3, Bath: 2, SquareFeet: 1200, SubLocality: "Brooklyn", Price: 0},
		{BrokerTitle: "c", PropertyType: "Co-op for sale", Beds: -1, Bath: 1, SquareFeet: 650, SubLocality: "Queens", Price: 480000},
		{BrokerTitle: "d", PropertyType: "Condo for sale", Beds: 1, Bath: 1, SquareFeet: 0, SubLocality: "Manhattan", Price: 500000},
	}

	cleaned, stats := NewCleaner().Clean(listings)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 clean listing, got %d", len(cleaned))
	}
	if stats.TotalProcessed != 4 || stats.Rejected != 3 || stats.Passed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Issues["nonpositive_price"] != 1 {
		t.Fatalf("expected one nonpositive_price issue: %v", stats.Issues)
	}
	if stats.Issues["negative_rooms"] != 1 {
		t.Fatalf("expected one negative_rooms issue: %v", stats.Issues)
	}
}

func TestCleanTrimsOutliers(t *testing.T) {
	listings := make([]Listing, 0, 202)
	for i := 0; i < 200; i++ {
		listings = append(listings, Listing{
			BrokerTitle: "a", PropertyType: "Condo for sale", Beds: 2, Bath: 1,
			SquareFeet: 800 + float64(i), SubLocality: "Manhattan",
			Price: 500000 + float64(i)*1000,
		})
	}
	// Extremes far outside the 1st-99th percentile band.
	listings = append(listings,
		Listing{BrokerTitle: "b", PropertyType: "Condo for sale", Beds: 2, Bath: 1, SquareFeet: 900, SubLocality: "Manhattan", Price: 2147000000},
		Listing{BrokerTitle: "c", PropertyType: "Condo for sale", Beds: 2, Bath: 1, SquareFeet: 90000, SubLocality: "Manhattan", Price: 600000},
	)

	cleaned, stats := NewCleaner().Clean(listings)
	if len(cleaned) >= len(listings) {
		t.Fatalf("outliers should have been trimmed: %d of %d kept", len(cleaned), len(listings))
	}
	if stats.Issues["price_outlier"] == 0 {
		t.Fatalf("expected price outlier rejections: %v", stats.Issues)
	}
	if stats.Issues["sqft_outlier"] == 0 {
		t.Fatalf("expected sqft outlier rejections: %v", stats.Issues)
	}
}

func TestCleanSkipsTrimmingSmallSamples(t *testing.T) {
	listings := []Listing{
		{BrokerTitle: "a", PropertyType: "Condo for sale", Beds: 2, Bath: 1, SquareFeet: 800, SubLocality: "Manhattan", Price: 500000},
		{BrokerTitle: "b", PropertyType: "Condo for sale", Beds: 2, Bath: 1, SquareFeet: 900, SubLocality: "Manhattan", Price: 90000000},
	}

	cleaned, _ := NewCleaner().Clean(listings)
	if len(cleaned) != 2 {
		t.Fatalf("small samples should not be trimmed, got %d", len(cleaned))
	}
}
