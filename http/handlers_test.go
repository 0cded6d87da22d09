package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nyhousing/ml"
	"nyhousing/monitoring"
	"nyhousing/predict"
	"nyhousing/property"
)

type fakeArtifact struct {
	price float64
	err   error
}

func (f *fakeArtifact) FeatureOrder() []string { return property.RequiredFields }

func (f *fakeArtifact) Metadata() ml.Metadata {
	return ml.Metadata{
		ModelInfo:   ml.ModelInfo{Name: "xgboost_freq", CreatedTimestamp: "20251025"},
		DataInfo:    ml.DataInfo{SelectedFeatures: property.RequiredFields},
		Performance: ml.Performance{ValidationR2: 0.82, ValidationRMSE: 412000},
	}
}

func (f *fakeArtifact) Encode(record property.Record) ([]float64, error) {
	return make([]float64, len(property.RequiredFields)), nil
}

func (f *fakeArtifact) Predict(vector []float64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func newTestMux(t *testing.T, source predict.ArtifactSource) *http.ServeMux {
	t.Helper()
	service, err := predict.NewService(source, predict.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	api := NewAPI(service, source, monitoring.NewMetrics(), nil, nil)
	mux := http.NewServeMux()
	api.Register(mux)
	return mux
}

func loadedSource(artifact ml.Artifact) predict.ArtifactSource {
	return func() (ml.Artifact, error) { return artifact, nil }
}

func failedSource() predict.ArtifactSource {
	loadErr := &ml.ArtifactLoadError{Path: "/missing/model.json", Err: errors.New("no such file")}
	return func() (ml.Artifact, error) { return nil, loadErr }
}

func predictBody() *bytes.Buffer {
	payload := map[string]any{
		"brokertitle":  "Brokered by COMPASS",
		"type":         "Condo for sale",
		"beds":         2,
		"bath":         1.0,
		"propertysqft": 800.0,
		"sublocality":  "Manhattan",
	}
	buf := &bytes.Buffer{}
	json.NewEncoder(buf).Encode(payload)
	return buf
}

func TestHandlePredict(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	req := httptest.NewRequest(http.MethodPost, "/predict", predictBody())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["predicted_price"].(float64) != 850000 {
		t.Fatalf("unexpected price: %v", payload["predicted_price"])
	}
	if payload["price_formatted"].(string) != "$850,000" {
		t.Fatalf("unexpected formatted price: %v", payload["price_formatted"])
	}
	tier := payload["price_tier"].(string)
	if tier != "Budget" && tier != "Mid-Range" && tier != "Luxury" {
		t.Fatalf("unexpected tier: %v", tier)
	}
	if payload["model_info"].(string) != "xgboost_freq" {
		t.Fatalf("unexpected model info: %v", payload["model_info"])
	}
}

func TestHandlePredictMissingField(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	body := map[string]any{"brokertitle": "Brokered by COMPASS"}
	buf := &bytes.Buffer{}
	json.NewEncoder(buf).Encode(body)

	req := httptest.NewRequest(http.MethodPost, "/predict", buf)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var payload map[string]string
	json.Unmarshal(w.Body.Bytes(), &payload)
	if !strings.Contains(payload["error"], "bath") {
		t.Fatalf("error should name missing fields: %q", payload["error"])
	}
}

func TestHandlePredictOutOfRange(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	payload := map[string]any{
		"brokertitle":  "Brokered by COMPASS",
		"type":         "Condo for sale",
		"beds":         9,
		"bath":         1.0,
		"propertysqft": 800.0,
		"sublocality":  "Manhattan",
	}
	buf := &bytes.Buffer{}
	json.NewEncoder(buf).Encode(payload)

	req := httptest.NewRequest(http.MethodPost, "/predict", buf)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlePredictInferenceFailure(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{err: errors.New("bad tree")}))

	req := httptest.NewRequest(http.MethodPost, "/predict", predictBody())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var payload map[string]string
	json.Unmarshal(w.Body.Bytes(), &payload)
	if payload["error"] == "" {
		t.Fatal("expected structured error payload")
	}
}

func TestHandlePredictModelNotLoaded(t *testing.T) {
	mux := newTestMux(t, failedSource())

	req := httptest.NewRequest(http.MethodPost, "/predict", predictBody())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]any
	json.Unmarshal(w.Body.Bytes(), &payload)
	if payload["status"] != "healthy" || payload["model_loaded"] != true {
		t.Fatalf("unexpected health payload: %v", payload)
	}
	features := payload["features_required"].([]any)
	if len(features) != 6 {
		t.Fatalf("expected 6 required features, got %d", len(features))
	}
}

func TestHandleHealthUnhealthy(t *testing.T) {
	mux := newTestMux(t, failedSource())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var payload map[string]any
	json.Unmarshal(w.Body.Bytes(), &payload)
	if payload["status"] != "unhealthy" || payload["model_loaded"] != false {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestHandleModelMetadata(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	req := httptest.NewRequest(http.MethodGet, "/model_metadata_info", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var metadata ml.Metadata
	if err := json.Unmarshal(w.Body.Bytes(), &metadata); err != nil {
		t.Fatalf("invalid metadata json: %v", err)
	}
	if metadata.ModelInfo.Name != "xgboost_freq" {
		t.Fatalf("unexpected metadata: %+v", metadata)
	}
}

func TestHandlePredictBatchUpload(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 700000}))

	csv := "brokertitle,type,beds,bath,propertysqft,sublocality\n" +
		"Brokered by COMPASS,Condo for sale,2,1.0,800.0,Manhattan\n" +
		"Brokered by Serhant,House for sale,3,2.0,1200.0,Brooklyn\n" +
		"Brokered by COMPASS,Co-op for sale,1,1.0,650.0,Queens\n" +
		"Brokered by COMPASS,Condo for sale,2,,900.0,Manhattan\n" +
		"Brokered by Serhant,House for sale,4,3.0,2200.0,Brooklyn\n"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "listings.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(csv))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/predict_batch", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var outcome predict.BatchOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if outcome.Summary.Succeeded != 4 || outcome.Summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 4/1", outcome.Summary)
	}
	if outcome.Results[3].Error == nil || !strings.Contains(outcome.Results[3].Error.Reason, "bath") {
		t.Fatalf("row 3 should carry an error naming bath: %+v", outcome.Results[3])
	}
}

func TestHandlePredictBatchJSON(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 700000}))

	rows := []map[string]any{
		{
			"brokertitle":  "Brokered by COMPASS",
			"type":         "Condo for sale",
			"beds":         2,
			"bath":         1.0,
			"propertysqft": 800.0,
			"sublocality":  "Manhattan",
		},
	}
	buf := &bytes.Buffer{}
	json.NewEncoder(buf).Encode(rows)

	req := httptest.NewRequest(http.MethodPost, "/predict_batch", buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var outcome predict.BatchOutcome
	json.Unmarshal(w.Body.Bytes(), &outcome)
	if outcome.Summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", outcome.Summary)
	}
}

func TestHandleDownloadSample(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 700000}))

	req := httptest.NewRequest(http.MethodGet, "/download-sample", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "brokertitle,type,beds,bath,propertysqft,sublocality") {
		t.Fatalf("unexpected sample: %q", w.Body.String())
	}
}

func TestHandleOptions(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]any
	json.Unmarshal(w.Body.Bytes(), &payload)
	if len(payload["property_types"].([]any)) != len(property.PropertyTypes) {
		t.Fatalf("unexpected property types: %v", payload["property_types"])
	}
	if len(payload["sublocalities"].([]any)) != len(property.SubLocalities) {
		t.Fatalf("unexpected sublocalities: %v", payload["sublocalities"])
	}
	beds := payload["beds_range"].([]any)
	if beds[0].(float64) != 0 || beds[1].(float64) != 8 {
		t.Fatalf("unexpected beds range: %v", beds)
	}
}

func TestHandleMetrics(t *testing.T) {
	mux := newTestMux(t, loadedSource(&fakeArtifact{price: 850000}))

	// Serve one prediction so counters move.
	req := httptest.NewRequest(http.MethodPost, "/predict", predictBody())
	mux.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snapshot monitoring.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snapshot)
	if snapshot.PredictionsTotal != 1 {
		t.Fatalf("predictions = %d, want 1", snapshot.PredictionsTotal)
	}
}
