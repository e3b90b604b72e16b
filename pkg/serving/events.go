package serving

import (
	"context"

	"github.com/ikape/platform/pkg/common/models"
)

const EventPredictionCompleted = "prediction.completed"

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// EventSink publishes one prediction.completed event per scored sample.
type EventSink struct {
	publisher Publisher
	source    string
}

func NewEventSink(publisher Publisher, source string) *EventSink {
	return &EventSink{publisher: publisher, source: source}
}

func (s *EventSink) Record(ctx context.Context, entry Entry) error {
	return s.publisher.PublishEvent(ctx, EventPredictionCompleted, s.source, map[string]interface{}{
		"prediction_id": entry.ID.String(),
		"generation":    entry.Generation,
		"sample_id":     entry.SampleID,
		"cached":        entry.Cached,
		"latency_ms":    float64(entry.Latency.Microseconds()) / 1000.0,
		"prediction":    resultMap(entry.Result),
	})
}

func resultMap(r models.PredictionResult) map[string]interface{} {
	return map[string]interface{}{
		"yield_kg":             r.YieldKg,
		"fine_grade_pct":       r.FineGradePct,
		"premium_grade_pct":    r.PremiumGradePct,
		"commercial_grade_pct": r.CommercialGradePct,
		"dominant_grade":       r.DominantGrade,
		"grade_label":          r.GradeLabel,
	}
}
