package db

import (
	"path/filepath"
	"testing"

	"nyhousing/pipeline"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestRecordFitRunIsIdempotentPerTimestamp(t *testing.T) {
	openTestDB(t)

	first, err := RecordFitRun("20251025_1430", 100, 90)
	if err != nil {
		t.Fatalf("record fit run: %v", err)
	}
	second, err := RecordFitRun("20251025_1430", 120, 110)
	if err != nil {
		t.Fatalf("record fit run again: %v", err)
	}
	if first != second {
		t.Fatalf("refit with the same timestamp returned id %d, want %d", second, first)
	}

	other, err := RecordFitRun("20251026_0900", 100, 95)
	if err != nil {
		t.Fatalf("record other fit run: %v", err)
	}
	if other == first {
		t.Fatal("distinct timestamps must get distinct fit run ids")
	}
}

func TestSaveListingsTagsFitRun(t *testing.T) {
	openTestDB(t)

	runID, err := RecordFitRun("20251025_1430", 2, 2)
	if err != nil {
		t.Fatalf("record fit run: %v", err)
	}

	listings := []pipeline.Listing{
		{BrokerTitle: "Brokered by COMPASS", PropertyType: "Condo for sale", Beds: 2, Bath: 1, SquareFeet: 800, SubLocality: "Manhattan", Price: 750000},
		{BrokerTitle: "Brokered by Serhant", PropertyType: "House for sale", Beds: 3, Bath: 2, SquareFeet: 1200, SubLocality: "Brooklyn", Price: 980000},
	}
	if err := SaveListings(runID, listings); err != nil {
		t.Fatalf("save listings: %v", err)
	}

	count, err := CountListings(runID)
	if err != nil {
		t.Fatalf("count listings: %v", err)
	}
	if count != 2 {
		t.Fatalf("stored %d listings, want 2", count)
	}
}
