package serving

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/ikape/platform/pkg/common/middleware"
	"github.com/ikape/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, svc *Service, prefix string) *mux.Router {
	t.Helper()
	router := mux.NewRouter()
	NewHTTPHandler(svc, HandlerOptions{MaxBody: 1 << 16, ModelDir: "/models"}).Mount(router, prefix)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPPredict(t *testing.T) {
	router := newTestRouter(t, NewService(newGeneration(defaultModels())), "/")

	rec := do(router, http.MethodPost, "/predict", `{"features": {"fertilizer_type": "Natural", "shade_tree_present": "Present"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.PredictionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1234.568, res.YieldKg)
	assert.Equal(t, "High-Quality Mix", res.GradeLabel)
}

func TestHTTPPredictWrongLength(t *testing.T) {
	router := newTestRouter(t, NewService(newGeneration(defaultModels())), "/")

	values := make([]string, 17)
	for i := range values {
		values[i] = "1"
	}
	rec := do(router, http.MethodPost, "/predict", `{"features": [`+strings.Join(values, ",")+`]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid feature length: expected 18, received 17", body.Detail)
}

func TestHTTPPredictBadJSON(t *testing.T) {
	router := newTestRouter(t, NewService(newGeneration(defaultModels())), "/")
	rec := do(router, http.MethodPost, "/predict", `{"features": [1,2`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPPredictModelFailure(t *testing.T) {
	y, f, p, c := defaultModels()
	c.err = errors.New("artifact corrupted")
	router := newTestRouter(t, NewService(newGeneration(y, f, p, c)), "/")

	rec := do(router, http.MethodPost, "/predict", `{"features": {}}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Prediction failed: artifact corrupted", body.Detail)
}

func TestHTTPPredictBatch(t *testing.T) {
	router := newTestRouter(t, NewService(newGeneration(defaultModels())), "/api")

	rec := do(router, http.MethodPost, "/api/predict/batch",
		`{"samples": [{"id": "farm-1", "features": {"soil_ph": 5.5}}, {"id": 7, "features": "abc"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Predictions []map[string]json.RawMessage `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Predictions, 2)
	assert.Contains(t, body.Predictions[0], "prediction")
	assert.NotContains(t, body.Predictions[0], "error")
	assert.Contains(t, body.Predictions[1], "error")
	assert.NotContains(t, body.Predictions[1], "prediction")
	assert.Equal(t, "7", string(body.Predictions[1]["id"]))
}

func TestHTTPPredictBatchEmpty(t *testing.T) {
	router := newTestRouter(t, NewService(newGeneration(defaultModels())), "/")
	rec := do(router, http.MethodPost, "/predict/batch", `{"samples": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"predictions": []}`, rec.Body.String())
}

func TestHTTPHealthAndMetadata(t *testing.T) {
	dir := t.TempDir()
	gen := newGeneration(defaultModels())
	gen.MetadataPath = filepath.Join(dir, "model_metadata.json")
	router := newTestRouter(t, NewService(gen), "/")

	rec := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.OK)
	assert.Equal(t, 18, health.ExpectedFeatures)
	assert.Equal(t, "simple", health.Schema)
	assert.Equal(t, "default", health.DataMode)
	assert.Empty(t, health.TrainedAtUTC)

	rec = do(router, http.MethodGet, "/model/metadata", "")
	assert.JSONEq(t, `{"available": false, "message": "No model metadata found. Prepare a dataset and train models with dataset-prep."}`, rec.Body.String())

	require.NoError(t, os.WriteFile(gen.MetadataPath, []byte(`{"trained_at_utc": "2026-01-01T00:00:00Z", "rows": 120}`), 0o644))

	rec = do(router, http.MethodGet, "/model/metadata", "")
	var meta models.ModelMetadataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.True(t, meta.Available)
	assert.Equal(t, 120.0, meta.Metadata["rows"])

	rec = do(router, http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "2026-01-01T00:00:00Z", health.TrainedAtUTC)
}

func TestHTTPBodyLimit(t *testing.T) {
	router := mux.NewRouter()
	NewHTTPHandler(NewService(newGeneration(defaultModels())), HandlerOptions{MaxBody: 16}).Register(router)

	rec := do(router, http.MethodPost, "/predict", `{"features": {"soil_ph": 5.5, "avg_temp_c": 21}}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTPPreflightReachesCORS(t *testing.T) {
	router := newTestRouter(t, NewService(newGeneration(defaultModels())), "/")
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	handler := middleware.CORS(router)

	for _, path := range []string{"/predict", "/predict/batch"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://dashboard.local")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}

	rec := do(handler, http.MethodPost, "/predict", `{"features": {}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
