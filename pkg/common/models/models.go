package models

import "time"

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // prediction.requested, prediction.completed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Prediction requests. Features is either an ordered list of scalars or a
// mapping of feature name to scalar; anything else is rejected by the
// assembler.
type PredictRequest struct {
	Features interface{} `json:"features"`
}

type BatchSample struct {
	ID       interface{} `json:"id"` // string or number
	Features interface{} `json:"features"`
}

type PredictBatchRequest struct {
	Samples []BatchSample `json:"samples"`
}

type PredictionResult struct {
	YieldKg            float64 `json:"yield_kg"`
	FineGradePct       float64 `json:"fine_grade_pct"`
	PremiumGradePct    float64 `json:"premium_grade_pct"`
	CommercialGradePct float64 `json:"commercial_grade_pct"`
	DominantGrade      string  `json:"dominant_grade,omitempty"`
	GradeLabel         string  `json:"grade_label,omitempty"`
}

// BatchItem carries either Prediction or Error, never both.
type BatchItem struct {
	ID         interface{}       `json:"id"`
	Prediction *PredictionResult `json:"prediction,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type PredictBatchResponse struct {
	Predictions []BatchItem `json:"predictions"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Status probe
type HealthStatus struct {
	OK               bool   `json:"ok"`
	ModelsLoaded     bool   `json:"models_loaded"`
	Generation       string `json:"generation"`
	Schema           string `json:"schema"`
	Encoding         string `json:"encoding"`
	ModelDir         string `json:"model_dir"`
	ExpectedFeatures int    `json:"expected_features"`
	TrainedAtUTC     string `json:"trained_at_utc,omitempty"`
	DataMode         string `json:"data_mode"`
}

// Analytics
type GradeMix struct {
	Fine       float64 `json:"Fine"`
	Premium    float64 `json:"Premium"`
	Commercial float64 `json:"Commercial"`
}

type AnalyticsCharts struct {
	GradeMix GradeMix `json:"grade_mix"`
}

type AnalyticsOverview struct {
	TotalFarmers  int             `json:"total_farmers"`
	TotalClusters int             `json:"total_clusters"`
	TotalYieldKg  float64         `json:"total_yield_kg"`
	Charts        AnalyticsCharts `json:"charts"`
	Source        string          `json:"source"`
}

type ModelMetadataResponse struct {
	Available bool                   `json:"available"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AdminDataResponse struct {
	Available bool                   `json:"available"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
