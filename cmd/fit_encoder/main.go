// Command fit_encoder refits the frequency encoders and numeric scalers
// from a listings CSV and writes a fresh metadata file for the server to
// pick up on its next restart. The fit is recorded in sqlite alongside the
// cleaned listings it was computed from.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"nyhousing/db"
	"nyhousing/ml"
	"nyhousing/pipeline"
	"nyhousing/property"
)

func main() {
	var (
		dataPath  = flag.String("data", "data/NY-House-Dataset.csv", "listings csv to fit against")
		outDir    = flag.String("out", "models", "directory for the metadata file")
		dbPath    = flag.String("db", "nyhousing.db", "sqlite database path")
		modelName = flag.String("model", "xgboost_freq", "model name recorded in the metadata")
	)
	flag.Parse()

	file, err := os.Open(*dataPath)
	if err != nil {
		log.Fatalf("open dataset: %v", err)
	}
	defer file.Close()

	listings, skipped, err := pipeline.ReadListings(file)
	if err != nil {
		log.Fatalf("read dataset: %v", err)
	}
	log.Printf("read %d listings (%d unparseable rows skipped)", len(listings), skipped)

	cleaner := pipeline.NewCleaner()
	cleaned, stats := cleaner.Clean(listings)
	log.Printf("cleaning: %d in, %d kept, %d rejected", stats.TotalProcessed, stats.Passed, stats.Rejected)
	for issue, count := range stats.Issues {
		log.Printf("  %s: %d", issue, count)
	}
	if len(cleaned) == 0 {
		log.Fatal("no listings survived cleaning")
	}

	metadata, err := fitMetadata(cleaned, *modelName)
	if err != nil {
		log.Fatalf("fit encoders: %v", err)
	}

	outPath := filepath.Join(*outDir,
		fmt.Sprintf("model_metadata_%s_%s.json", *modelName, metadata.ModelInfo.CreatedTimestamp))
	if err := writeMetadata(outPath, metadata); err != nil {
		log.Fatalf("write metadata: %v", err)
	}
	log.Printf("metadata written to %s", outPath)

	if err := db.InitDB(*dbPath); err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	runID, err := db.RecordFitRun(metadata.ModelInfo.CreatedTimestamp, len(listings), len(cleaned))
	if err != nil {
		log.Fatalf("record fit run: %v", err)
	}
	if err := db.SaveListings(runID, cleaned); err != nil {
		log.Fatalf("save listings: %v", err)
	}
	log.Printf("fit run %d stored with %d listings", runID, len(cleaned))
}

// fitMetadata fits one frequency table per categorical column and one
// scaler per numeric column, preserving the serving feature order.
func fitMetadata(listings []pipeline.Listing, modelName string) (ml.Metadata, error) {
	columns := map[string][]string{
		property.FieldBrokerTitle:  make([]string, 0, len(listings)),
		property.FieldPropertyType: make([]string, 0, len(listings)),
		property.FieldSubLocality:  make([]string, 0, len(listings)),
	}
	numeric := map[string][]float64{
		property.FieldBeds:       make([]float64, 0, len(listings)),
		property.FieldBath:       make([]float64, 0, len(listings)),
		property.FieldSquareFeet: make([]float64, 0, len(listings)),
	}
	for _, listing := range listings {
		columns[property.FieldBrokerTitle] = append(columns[property.FieldBrokerTitle], listing.BrokerTitle)
		columns[property.FieldPropertyType] = append(columns[property.FieldPropertyType], listing.PropertyType)
		columns[property.FieldSubLocality] = append(columns[property.FieldSubLocality], listing.SubLocality)
		numeric[property.FieldBeds] = append(numeric[property.FieldBeds], float64(listing.Beds))
		numeric[property.FieldBath] = append(numeric[property.FieldBath], listing.Bath)
		numeric[property.FieldSquareFeet] = append(numeric[property.FieldSquareFeet], listing.SquareFeet)
	}

	encoders := make(map[string]ml.FrequencyTable, len(columns))
	for name, column := range columns {
		table, err := ml.FitFrequencyTable(column)
		if err != nil {
			return ml.Metadata{}, fmt.Errorf("fit %s: %w", name, err)
		}
		encoders[name] = table
	}

	scalers := make(map[string]ml.ScalerParams, len(numeric))
	for name, values := range numeric {
		scalers[name] = fitScaler(values)
	}

	categorical := []string{property.FieldBrokerTitle, property.FieldPropertyType, property.FieldSubLocality}
	numerical := []string{property.FieldBeds, property.FieldBath, property.FieldSquareFeet}

	return ml.Metadata{
		ModelInfo: ml.ModelInfo{
			Name:             modelName,
			CreatedTimestamp: time.Now().Format("20060102_1504"),
		},
		DataInfo: ml.DataInfo{
			SelectedFeatures:    property.RequiredFields,
			CategoricalFeatures: categorical,
			NumericalFeatures:   numerical,
		},
		Encoders:     encoders,
		Scalers:      scalers,
		UseLogTarget: true,
	}, nil
}

func fitScaler(values []float64) ml.ScalerParams {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return ml.ScalerParams{Mean: mean, Std: math.Sqrt(variance)}
}

func writeMetadata(path string, metadata ml.Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
