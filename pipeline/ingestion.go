// Package pipeline ingests and cleans tabular listing data: CSV uploads
// for batch prediction and the raw dataset consumed by the encoder-fitting
// tool.
package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nyhousing/property"
)

// MaxBatchRows bounds a single batch upload.
const MaxBatchRows = 10000

// ReadRecords parses a CSV upload into raw per-row records for the batch
// runner. The header must contain all six listing fields; extra columns are
// ignored. Empty cells are dropped from the row map so the validator
// reports them as missing fields. Malformed rows are not rejected here;
// per-row failure handling belongs to the batch runner.
func ReadRecords(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, field := range property.RequiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header missing columns: %s", strings.Join(missing, ", "))
	}

	var records []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(records)+1, err)
		}
		if len(records) >= MaxBatchRows {
			return nil, fmt.Errorf("batch exceeds %d rows", MaxBatchRows)
		}

		record := make(map[string]any, len(property.RequiredFields))
		for _, field := range property.RequiredFields {
			idx := columns[field]
			if idx >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[idx])
			if value == "" {
				continue
			}
			record[field] = value
		}
		records = append(records, record)
	}
	return records, nil
}

// Listing is one row of the raw training dataset, price included.
type Listing struct {
	BrokerTitle  string
	PropertyType string
	Beds         int
	Bath         float64
	SquareFeet   float64
	SubLocality  string
	Price        float64
}

// ReadListings parses the raw dataset CSV used for encoder fitting. Rows
// that fail to parse are skipped and counted; the cleaner handles semantic
// filtering afterwards.
func ReadListings(r io.Reader) ([]Listing, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	required := append([]string{}, property.RequiredFields...)
	required = append(required, "price")
	for _, field := range required {
		if _, ok := columns[field]; !ok {
			return nil, 0, fmt.Errorf("dataset missing column %q", field)
		}
	}

	var listings []Listing
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		listing, ok := parseListing(row, columns)
		if !ok {
			skipped++
			continue
		}
		listings = append(listings, listing)
	}
	return listings, skipped, nil
}

func parseListing(row []string, columns map[string]int) (Listing, bool) {
	cell := func(field string) string {
		idx := columns[field]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	beds, err := strconv.Atoi(cell(property.FieldBeds))
	if err != nil {
		return Listing{}, false
	}
	bath, err := strconv.ParseFloat(cell(property.FieldBath), 64)
	if err != nil {
		return Listing{}, false
	}
	sqft, err := strconv.ParseFloat(cell(property.FieldSquareFeet), 64)
	if err != nil {
		return Listing{}, false
	}
	price, err := strconv.ParseFloat(cell("price"), 64)
	if err != nil {
		return Listing{}, false
	}

	listing := Listing{
		BrokerTitle:  cell(property.FieldBrokerTitle),
		PropertyType: cell(property.FieldPropertyType),
		Beds:         beds,
		Bath:         bath,
		SquareFeet:   sqft,
		SubLocality:  cell(property.FieldSubLocality),
		Price:        price,
	}
	if listing.BrokerTitle == "" || listing.PropertyType == "" || listing.SubLocality == "" {
		return Listing{}, false
	}
	return listing, true
}
