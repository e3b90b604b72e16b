package serving

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PredictionLog is the persistence model for served predictions.
type PredictionLog struct {
	ID            uuid.UUID         `gorm:"primaryKey;column:id"`
	Generation    string            `gorm:"column:generation;index"`
	SampleID      string            `gorm:"column:sample_id"`
	Features      datatypes.JSONMap `gorm:"column:features"`
	Prediction    datatypes.JSONMap `gorm:"column:prediction"`
	DominantGrade string            `gorm:"column:dominant_grade"`
	GradeLabel    string            `gorm:"column:grade_label"`
	Cached        bool              `gorm:"column:cached"`
	LatencyMs     float64           `gorm:"column:latency_ms"`
	CreatedAt     time.Time         `gorm:"column:created_at;index"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository handles prediction log queries. It is also a Sink.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) Record(ctx context.Context, entry Entry) error {
	log := newPredictionLog(entry)
	return r.db.WithContext(ctx).Create(&log).Error
}

func newPredictionLog(entry Entry) PredictionLog {
	var sampleID string
	if entry.SampleID != nil {
		sampleID = fmt.Sprint(entry.SampleID)
	}
	return PredictionLog{
		ID:            entry.ID,
		Generation:    entry.Generation,
		SampleID:      sampleID,
		Features:      datatypes.JSONMap(entry.Features),
		Prediction:    datatypes.JSONMap(resultMap(entry.Result)),
		DominantGrade: entry.Result.DominantGrade,
		GradeLabel:    entry.Result.GradeLabel,
		Cached:        entry.Cached,
		LatencyMs:     float64(entry.Latency.Microseconds()) / 1000.0,
		CreatedAt:     entry.CreatedAt,
	}
}

// Recent returns the most recent prediction logs up to limit, optionally for
// one generation.
func (r *Repository) Recent(ctx context.Context, generation string, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if generation != "" {
		q = q.Where("generation = ?", generation)
	}
	var logs []PredictionLog
	err := q.Find(&logs).Error
	return logs, err
}
