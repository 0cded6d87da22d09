// Package ml holds the model artifact, its feature encoding and inference.
package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"nyhousing/property"
)

// ArtifactLoadError reports a model or metadata file that could not be
// loaded. Missing files, unreadable payloads and format-version mismatches
// all surface through it.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// ModelInfo identifies the trained model.
type ModelInfo struct {
	Name             string `json:"name"`
	CreatedTimestamp string `json:"created_timestamp"`
}

// Performance holds validation metrics computed at training time.
type Performance struct {
	ValidationR2   float64 `json:"validation_r2"`
	ValidationRMSE float64 `json:"validation_rmse"`
	ValidationMAE  float64 `json:"validation_mae"`
}

// DataInfo describes the feature layout the model expects.
type DataInfo struct {
	SelectedFeatures    []string `json:"selected_features"`
	CategoricalFeatures []string `json:"categorical_features"`
	NumericalFeatures   []string `json:"numerical_features"`
}

// ScalerParams standardizes a numeric feature the way the training
// pipeline did.
type ScalerParams struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Metadata is the serialized companion of the model binary. Frequency
// tables travel here so inference never needs the training data.
type Metadata struct {
	ModelInfo    ModelInfo                 `json:"model_info"`
	DataInfo     DataInfo                  `json:"data_info"`
	Performance  Performance               `json:"performance"`
	Encoders     map[string]FrequencyTable `json:"encoders"`
	Scalers      map[string]ScalerParams   `json:"scalers"`
	UseLogTarget bool                      `json:"use_log_target"`
}

// Artifact is the read-only view the prediction service depends on. Tests
// substitute a fake; production uses *ModelArtifact.
type Artifact interface {
	Predict(vector []float64) (float64, error)
	FeatureOrder() []string
	Encode(record property.Record) ([]float64, error)
	Metadata() Metadata
}

// ModelArtifact pairs the loaded ensemble with its metadata. Immutable
// after Load; safe for concurrent readers without locking.
type ModelArtifact struct {
	model    *GradientBoostedTrees
	metadata Metadata
}

// Load deserializes the model and metadata files. Either failure yields an
// ArtifactLoadError; a half-loaded artifact is never returned.
func Load(modelPath, metadataPath string) (*ModelArtifact, error) {
	model, err := LoadGradientBoostedTrees(modelPath)
	if err != nil {
		return nil, &ArtifactLoadError{Path: modelPath, Err: err}
	}

	payload, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, &ArtifactLoadError{Path: metadataPath, Err: err}
	}
	var metadata Metadata
	if err := json.Unmarshal(payload, &metadata); err != nil {
		return nil, &ArtifactLoadError{Path: metadataPath, Err: fmt.Errorf("parse metadata: %w", err)}
	}
	if len(metadata.DataInfo.SelectedFeatures) == 0 {
		return nil, &ArtifactLoadError{Path: metadataPath, Err: fmt.Errorf("metadata declares no features")}
	}

	return &ModelArtifact{model: model, metadata: metadata}, nil
}

// FeatureOrder returns the ordered feature names the model expects.
func (a *ModelArtifact) FeatureOrder() []string {
	return a.metadata.DataInfo.SelectedFeatures
}

// Metadata returns the artifact metadata.
func (a *ModelArtifact) Metadata() Metadata {
	return a.metadata
}

// Encode builds the feature vector for a validated record, in the
// artifact's declared feature order. Categorical fields go through their
// fitted frequency table; numeric fields are standardized with the training
// scaler parameters when present.
func (a *ModelArtifact) Encode(record property.Record) ([]float64, error) {
	order := a.metadata.DataInfo.SelectedFeatures
	vector := make([]float64, 0, len(order))
	for _, feature := range order {
		switch feature {
		case property.FieldBrokerTitle:
			vector = append(vector, a.encodeCategorical(feature, record.BrokerTitle))
		case property.FieldPropertyType:
			vector = append(vector, a.encodeCategorical(feature, record.PropertyType))
		case property.FieldSubLocality:
			vector = append(vector, a.encodeCategorical(feature, record.SubLocality))
		case property.FieldBeds:
			vector = append(vector, a.scale(feature, float64(record.Beds)))
		case property.FieldBath:
			vector = append(vector, a.scale(feature, record.Bath))
		case property.FieldSquareFeet:
			vector = append(vector, a.scale(feature, record.SquareFeet))
		default:
			return nil, fmt.Errorf("artifact expects unknown feature %q", feature)
		}
	}
	return vector, nil
}

func (a *ModelArtifact) encodeCategorical(feature, value string) float64 {
	table, ok := a.metadata.Encoders[feature]
	if !ok {
		return UnseenCategoryScore
	}
	return table.Transform(value)
}

func (a *ModelArtifact) scale(feature string, value float64) float64 {
	params, ok := a.metadata.Scalers[feature]
	if !ok || params.Std == 0 {
		return value
	}
	return (value - params.Mean) / params.Std
}

// Predict runs inference on an encoded vector. The vector length must
// match the declared feature order; a mismatch fails fast rather than
// silently misaligning features. Models trained on log1p(price) are mapped
// back to dollars.
func (a *ModelArtifact) Predict(vector []float64) (float64, error) {
	if len(vector) != len(a.metadata.DataInfo.SelectedFeatures) {
		return 0, fmt.Errorf("feature vector length %d does not match model feature order length %d",
			len(vector), len(a.metadata.DataInfo.SelectedFeatures))
	}
	raw, err := a.model.Predict(vector)
	if err != nil {
		return 0, err
	}
	if a.metadata.UseLogTarget {
		return math.Expm1(raw), nil
	}
	return raw, nil
}

// Loader is the load-once gate in front of the artifact. The first caller
// pays the file I/O; every later caller gets the memoized artifact or the
// memoized error. Reloading requires a process restart.
type Loader struct {
	modelPath    string
	metadataPath string

	once     sync.Once
	artifact *ModelArtifact
	err      error
}

// NewLoader creates a Loader pinned to one model/metadata pair.
func NewLoader(modelPath, metadataPath string) *Loader {
	return &Loader{modelPath: modelPath, metadataPath: metadataPath}
}

// Get returns the cached artifact, loading it on first use.
func (l *Loader) Get() (*ModelArtifact, error) {
	l.once.Do(func() {
		l.artifact, l.err = Load(l.modelPath, l.metadataPath)
	})
	return l.artifact, l.err
}

// Loaded reports whether a usable artifact is available, loading through
// the gate on first call.
func (l *Loader) Loaded() bool {
	artifact, err := l.Get()
	return artifact != nil && err == nil
}
