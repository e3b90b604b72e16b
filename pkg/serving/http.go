package serving

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/common/models"
	"github.com/ikape/platform/pkg/features"
)

type HTTPHandler struct {
	service  *Service
	maxBody  int64
	modelDir string
	dataMode string
	history  *Repository
}

type HandlerOptions struct {
	MaxBody  int64
	ModelDir string
	DataMode string
	// History enables GET /predictions/recent.
	History *Repository
}

func NewHTTPHandler(service *Service, opts HandlerOptions) *HTTPHandler {
	return &HTTPHandler{
		service:  service,
		maxBody:  opts.MaxBody,
		modelDir: opts.ModelDir,
		dataMode: opts.DataMode,
		history:  opts.History,
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/predict/batch", h.handlePredictBatch).Methods(http.MethodPost)
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/model/metadata", h.handleMetadata).Methods(http.MethodGet)
	if h.history != nil {
		router.HandleFunc("/predictions/recent", h.handleRecent).Methods(http.MethodGet)
	}
}

// Mount registers the handler under prefix; "/" registers at the root.
func (h *HTTPHandler) Mount(router *mux.Router, prefix string) {
	if prefix == "" || prefix == "/" {
		h.Register(router)
		return
	}
	h.Register(router.PathPrefix(prefix).Subrouter())
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		logger.Log.WithError(err).Warn("invalid prediction payload")
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "invalid request body")
		return false
	}
	return true
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.PredictOne(r.Context(), req.Features)
	if err != nil {
		if features.IsValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req models.PredictBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := h.service.PredictBatch(r.Context(), req.Samples)
	writeJSON(w, http.StatusOK, models.PredictBatchResponse{Predictions: items})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	gen := h.service.Generation()
	trainedAt := gen.TrainedAtUTC
	if meta, ok := ReadMetadata(gen.MetadataPath); ok {
		if v, ok := meta["trained_at_utc"].(string); ok && v != "" {
			trainedAt = v
		}
	}
	dataMode := h.dataMode
	if dataMode == "" {
		dataMode = "default"
	}
	writeJSON(w, http.StatusOK, models.HealthStatus{
		OK:               true,
		ModelsLoaded:     true,
		Generation:       gen.Name,
		Schema:           gen.Schema.Name,
		Encoding:         string(gen.Encoding),
		ModelDir:         h.modelDir,
		ExpectedFeatures: gen.Schema.Len(),
		TrainedAtUTC:     trainedAt,
		DataMode:         dataMode,
	})
}

func (h *HTTPHandler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, ok := ReadMetadata(h.service.Generation().MetadataPath)
	if !ok {
		writeJSON(w, http.StatusOK, models.ModelMetadataResponse{
			Available: false,
			Message:   "No model metadata found. Prepare a dataset and train models with dataset-prep.",
		})
		return
	}
	writeJSON(w, http.StatusOK, models.ModelMetadataResponse{Available: true, Metadata: meta})
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.history.Recent(r.Context(), h.service.Generation().Name, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch prediction logs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// ReadMetadata loads a JSON object from path. Missing, unreadable or
// non-object files report false.
func ReadMetadata(path string) (map[string]interface{}, bool) {
	if path == "" {
		return nil, false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(content, &meta); err != nil || len(meta) == 0 {
		return nil, false
	}
	return meta, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}
