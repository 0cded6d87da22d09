package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nyhousing/ml"
	"nyhousing/monitoring"
	"nyhousing/pipeline"
	"nyhousing/predict"
	"nyhousing/property"
)

// API bundles the serving dependencies behind the REST surface. All
// dependencies are injected so tests can substitute fakes without touching
// process state.
type API struct {
	service  *predict.Service
	artifact predict.ArtifactSource
	metrics  *monitoring.Metrics
	hub      *monitoring.Hub
	logger   *zap.Logger
}

// NewAPI creates the handler set.
func NewAPI(service *predict.Service, artifact predict.ArtifactSource, metrics *monitoring.Metrics, hub *monitoring.Hub, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &API{
		service:  service,
		artifact: artifact,
		metrics:  metrics,
		hub:      hub,
		logger:   logger,
	}
}

// Register mounts all routes.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", a.handlePredict)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /model_metadata_info", a.handleModelMetadata)
	mux.HandleFunc("POST /predict_batch", a.handlePredictBatch)
	mux.HandleFunc("GET /download-sample", a.handleDownloadSample)
	mux.HandleFunc("GET /api/options", a.handleOptions)
	mux.HandleFunc("GET /api/metrics", a.handleMetrics)
	if a.hub != nil {
		mux.HandleFunc("GET /api/ws/monitor", a.hub.HandleWebSocket)
	}
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	a.metrics.RecordRequest()

	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(input) == 0 {
		respondError(w, http.StatusBadRequest, "no input data provided")
		return
	}

	start := time.Now()
	result, err := a.service.PredictOne(input)
	if err != nil {
		a.recordFailure(err)
		status, message := statusForError(err)
		respondError(w, status, message)
		return
	}

	a.metrics.RecordPrediction(time.Since(start))
	if a.hub != nil {
		a.hub.Publish(monitoring.PredictionEvent, result)
	}
	respondJSON(w, a.logger, result)
}

func (a *API) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	a.metrics.RecordRequest()

	records, err := a.readBatch(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := a.service.PredictBatch(records)
	a.metrics.RecordBatch(outcome.Summary.Succeeded, outcome.Summary.Failed)
	if a.hub != nil {
		a.hub.Publish(monitoring.BatchEvent, outcome.Summary)
	}
	respondJSON(w, a.logger, outcome)
}

// readBatch accepts either a multipart CSV upload under the "file" field
// or a JSON array body.
func (a *API) readBatch(r *http.Request) ([]map[string]any, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var records []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
			return nil, errors.New("invalid request body")
		}
		return records, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("missing file upload")
	}
	defer file.Close()
	return pipeline.ReadRecords(file)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	artifact, err := a.artifact()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "unhealthy",
			"model_loaded": false,
			"error":        "model not loaded",
		})
		return
	}

	respondJSON(w, a.logger, map[string]any{
		"status":            "healthy",
		"model_loaded":      true,
		"model_type":        artifact.Metadata().ModelInfo.Name,
		"features_required": artifact.FeatureOrder(),
	})
}

func (a *API) handleModelMetadata(w http.ResponseWriter, r *http.Request) {
	artifact, err := a.artifact()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "model metadata not loaded")
		return
	}
	respondJSON(w, a.logger, artifact.Metadata())
}

func (a *API) handleDownloadSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sample_properties.csv"`)
	w.Write([]byte(sampleCSV))
}

// handleOptions serves the known category values and numeric bounds so a
// form can be populated without hardcoding them client-side.
func (a *API) handleOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, a.logger, map[string]any{
		"property_types": property.PropertyTypes,
		"sublocalities":  property.SubLocalities,
		"beds_range":     []float64{property.MinBeds, property.MaxBeds},
		"bath_range":     []float64{property.MinBath, property.MaxBath},
		"sqft_range":     []float64{property.MinSquareFeet, property.MaxSquareFeet},
	})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, a.logger, a.metrics.Snapshot())
}

const sampleCSV = "brokertitle,type,beds,bath,propertysqft,sublocality\n" +
	"Brokered by COMPASS,Condo for sale,2,1.0,800.0,Manhattan\n" +
	"Brokered by Douglas Elliman - 575 Madison Ave,House for sale,3,2.0,1200.0,Brooklyn\n"

func (a *API) recordFailure(err error) {
	var missing *property.MissingFieldsError
	var rangeErr *property.RangeError
	var typeErr *property.TypeError
	if errors.As(err, &missing) || errors.As(err, &rangeErr) || errors.As(err, &typeErr) {
		a.metrics.RecordValidationFailure()
		return
	}
	a.metrics.RecordPredictionFailure()
}

// statusForError maps the pipeline error taxonomy to HTTP statuses:
// validation errors are client faults, a missing artifact means the
// service cannot serve yet, inference failures are server faults.
func statusForError(err error) (int, string) {
	var missing *property.MissingFieldsError
	var rangeErr *property.RangeError
	var typeErr *property.TypeError
	var loadErr *ml.ArtifactLoadError
	var inferErr *predict.InferenceError

	switch {
	case errors.As(err, &missing), errors.As(err, &rangeErr), errors.As(err, &typeErr):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable, "model not loaded"
	case errors.As(err, &inferErr):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
