// Package predict orchestrates validation, encoding, inference and
// response shaping for single and batch predictions.
package predict

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"nyhousing/ml"
	"nyhousing/property"
)

// InferenceError wraps any failure raised by the model during inference so
// it never crashes the caller. Inference is deterministic; callers must not
// retry.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ArtifactSource hands the service the shared read-only artifact. The
// production implementation is the load-once ml.Loader; tests substitute a
// fake without touching process state.
type ArtifactSource func() (ml.Artifact, error)

// Config tunes the service.
type Config struct {
	// PriceFloor clamps negative model outputs; a listing price cannot be
	// negative.
	PriceFloor float64 `yaml:"price_floor"`
	// CacheSize bounds the LRU memoization of identical requests.
	CacheSize int        `yaml:"cache_size"`
	Tiers     TierConfig `yaml:"tiers"`
}

// DefaultConfig matches the serving defaults the model shipped with.
func DefaultConfig() Config {
	return Config{PriceFloor: 0, CacheSize: 1000, Tiers: DefaultTierConfig()}
}

// Service runs the prediction pipeline for one record at a time:
// validate, encode, infer, clamp, format.
type Service struct {
	source    ArtifactSource
	formatter *Formatter
	floor     float64
	cache     *lru.Cache[string, Result]
	logger    *zap.Logger
}

// NewService wires a Service around an artifact source.
func NewService(source ArtifactSource, cfg Config, logger *zap.Logger) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("artifact source is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	cache, err := lru.New[string, Result](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:    source,
		formatter: NewFormatter(cfg.Tiers),
		floor:     cfg.PriceFloor,
		cache:     cache,
		logger:    logger,
	}, nil
}

// PredictOne runs the full pipeline for one raw request. Validation errors
// propagate unchanged; model failures come back as InferenceError; artifact
// load failures come back as ml.ArtifactLoadError.
func (s *Service) PredictOne(raw map[string]any) (Result, error) {
	record, err := property.Validate(raw)
	if err != nil {
		return Result{}, err
	}

	key := cacheKey(record)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	artifact, err := s.source()
	if err != nil {
		return Result{}, err
	}

	price, err := s.infer(artifact, record)
	if err != nil {
		s.logger.Error("inference failed",
			zap.String("sublocality", record.SubLocality),
			zap.Error(err))
		return Result{}, err
	}
	if price < s.floor {
		price = s.floor
	}

	result := s.formatter.Format(price, artifact.Metadata())
	s.cache.Add(key, result)
	return result, nil
}

// infer encodes and runs the model, converting panics and errors from the
// underlying model into InferenceError.
func (s *Service) infer(artifact ml.Artifact, record property.Record) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InferenceError{Err: fmt.Errorf("model panic: %v", r)}
		}
	}()

	vector, encodeErr := artifact.Encode(record)
	if encodeErr != nil {
		return 0, &InferenceError{Err: encodeErr}
	}
	price, predictErr := artifact.Predict(vector)
	if predictErr != nil {
		return 0, &InferenceError{Err: predictErr}
	}
	return price, nil
}

// CacheLen reports how many results are memoized.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

func cacheKey(r property.Record) string {
	return fmt.Sprintf("%s|%s|%d|%g|%g|%s",
		r.BrokerTitle, r.PropertyType, r.Beds, r.Bath, r.SquareFeet, r.SubLocality)
}
