package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminData = `{
  "users": [{"id": 1}, {"id": 2}],
  "clusters": [{"id": "c1"}, {"id": "c2"}, {"id": "c3"}],
  "harvest_records": [
    {"yield_kg": 120.5, "grade_fine": 40, "grade_premium": 50.25, "grade_commercial": 30},
    {"yield_kg": "79.5", "grade_fine": null, "grade_premium": 10, "grade_commercial": 5.0006}
  ]
}`

func writeAdminData(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synthetic_admin_data.json")
	require.NoError(t, os.WriteFile(path, []byte(adminData), 0o644))
	return path
}

func TestOverviewSynthetic(t *testing.T) {
	svc := NewService("Synthetic", writeAdminData(t))

	o := svc.Overview()
	assert.Equal(t, SourceSynthetic, o.Source)
	assert.Equal(t, 2, o.TotalFarmers)
	assert.Equal(t, 3, o.TotalClusters)
	assert.Equal(t, 200.0, o.TotalYieldKg)
	assert.Equal(t, 40.0, o.Charts.GradeMix.Fine)
	assert.Equal(t, 60.25, o.Charts.GradeMix.Premium)
	assert.Equal(t, 35.001, o.Charts.GradeMix.Commercial)
}

func TestOverviewFallback(t *testing.T) {
	path := writeAdminData(t)
	for _, svc := range []*Service{NewService("", path), NewService("synthetic", filepath.Join(t.TempDir(), "missing.json"))} {
		o := svc.Overview()
		assert.Equal(t, SourceFallback, o.Source)
		assert.Zero(t, o.TotalFarmers)
		assert.Zero(t, o.TotalYieldKg)
	}
}

func TestAdminDataHTTP(t *testing.T) {
	router := mux.NewRouter()
	NewHTTPHandler(NewService("", writeAdminData(t))).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/admin-data", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Available bool                   `json:"available"`
		Source    string                 `json:"source"`
		Data      map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
	assert.Equal(t, SourceSynthetic, body.Source)
	assert.Len(t, body.Data["users"], 2)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/overview", nil))
	assert.JSONEq(t, `{"total_farmers":0,"total_clusters":0,"total_yield_kg":0,"charts":{"grade_mix":{"Fine":0,"Premium":0,"Commercial":0}},"source":"fallback"}`, rec.Body.String())
}
