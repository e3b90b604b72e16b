package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ikape/platform/pkg/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteModelScores(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Model        string                   `json:"model"`
			FeaturesList []map[string]interface{} `json:"features_list"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([]float64, len(req.FeaturesList))
		for i, f := range req.FeaturesList {
			ph, _ := f["soil_ph"].(float64)
			scores[i] = ph * 10
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"scores": scores})
	}))
	defer srv.Close()

	m, err := NewRemoteModel(RemoteConfig{
		Name:       "v2/yield_kg",
		Endpoint:   srv.URL,
		InputWidth: features.Extended.Len(),
		Encoding:   features.EncodingFrame,
	})
	require.NoError(t, err)

	rec, err := features.NewAssembler(features.Extended, features.EncodingFrame).Assemble(map[string]interface{}{"soil_ph": 6.5})
	require.NoError(t, err)

	y, err := m.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 65.0, y)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "closed", m.BreakerState())
}

func TestRemoteModelClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad features", http.StatusBadRequest)
	}))
	defer srv.Close()

	m, err := NewRemoteModel(RemoteConfig{Name: "r", Endpoint: srv.URL, InputWidth: features.Simple.Len()})
	require.NoError(t, err)

	rec, err := features.NewAssembler(features.Simple, features.EncodingFrame).Assemble(map[string]interface{}{})
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteModelClientErrorsKeepBreakerClosed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad features", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m, err := NewRemoteModel(RemoteConfig{Name: "r", Endpoint: srv.URL, InputWidth: features.Simple.Len(), FailureThreshold: 2})
	require.NoError(t, err)

	rec, err := features.NewAssembler(features.Simple, features.EncodingFrame).Assemble(map[string]interface{}{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = m.Predict(context.Background(), rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=422")
	}
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, "closed", m.BreakerState())
}

func TestRemoteModelServerErrorsOpenBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewRemoteModel(RemoteConfig{Name: "r", Endpoint: srv.URL, InputWidth: features.Simple.Len(), Retries: 1, FailureThreshold: 2})
	require.NoError(t, err)

	rec, err := features.NewAssembler(features.Simple, features.EncodingFrame).Assemble(map[string]interface{}{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = m.Predict(context.Background(), rec)
		require.Error(t, err)
	}
	assert.Equal(t, "open", m.BreakerState())
}

func TestRemoteModelRequiresWidth(t *testing.T) {
	_, err := NewRemoteModel(RemoteConfig{Name: "r", Endpoint: "http://localhost"})
	require.Error(t, err)
}
