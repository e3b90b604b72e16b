package training

import (
	"time"

	"github.com/google/uuid"
	"github.com/ikape/platform/pkg/dataset"
	"github.com/ikape/platform/pkg/ml/linear"
	"gorm.io/datatypes"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected" // a quality gate was missed
)

// RunModel records one training run.
type RunModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Schema       string            `gorm:"column:schema"`
	DatasetPath  string            `gorm:"column:dataset_path"`
	Status       string            `gorm:"column:status"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ArtifactDir  string            `gorm:"column:artifact_dir"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (RunModel) TableName() string {
	return "training_runs"
}

// Options controls the baseline fit. A zero gate disables it.
type Options struct {
	TestSize    float64
	RandomState int64
	MinYieldR2  float64
	MinGradeR2  float64
	Linear      linear.Options
}

type TargetSummary struct {
	Artifact     string         `json:"artifact"`
	Algorithm    string         `json:"algorithm"`
	TrainRows    int            `json:"train_rows"`
	TestRows     int            `json:"test_rows"`
	TrainMetrics linear.Metrics `json:"train_metrics"`
	TestMetrics  linear.Metrics `json:"test_metrics"`
}

// Report is written as model_metadata.json next to the artifacts.
type Report struct {
	TrainedAtUTC   string                   `json:"trained_at_utc"`
	DatasetPath    string                   `json:"dataset_path,omitempty"`
	Schema         string                   `json:"schema"`
	Encoding       string                   `json:"encoding"`
	RandomState    int64                    `json:"random_state"`
	TestSize       float64                  `json:"test_size"`
	FeatureKeys    []string                 `json:"feature_keys"`
	TargetKeys     []string                 `json:"target_keys"`
	DatasetQuality dataset.QualityReport    `json:"dataset_quality"`
	Targets        map[string]TargetSummary `json:"targets"`
	QualityGates   map[string]float64       `json:"quality_gates"`
}
