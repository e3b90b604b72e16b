package serving

import (
	"context"
	"fmt"

	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/common/models"
)

const EventPredictionRequested = "prediction.requested"

// Worker answers prediction.requested events with one prediction.completed
// event carrying the batch result.
type Worker struct {
	service   *Service
	publisher Publisher
	source    string
}

func NewWorker(service *Service, publisher Publisher, source string) *Worker {
	return &Worker{service: service, publisher: publisher, source: source}
}

// Handle matches kafka.EventHandler. Malformed requests are answered with a
// completed event carrying an error; only a failed publish is returned so
// the message is retried.
func (w *Worker) Handle(ctx context.Context, event models.Event) error {
	if event.Type != EventPredictionRequested {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("Skipping event")
		return nil
	}

	samples, err := decodeSamples(event.Data)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Error("Malformed prediction request")
		return w.reply(ctx, event.ID, map[string]interface{}{"error": err.Error()})
	}

	items := w.service.PredictBatch(ctx, samples)
	if err := w.reply(ctx, event.ID, map[string]interface{}{"predictions": items}); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id": event.ID,
		"samples":  len(samples),
	}).Info("Prediction request processed")
	return nil
}

func (w *Worker) reply(ctx context.Context, requestID string, data map[string]interface{}) error {
	data["request_event_id"] = requestID
	data["generation"] = w.service.Generation().Name
	if err := w.publisher.PublishEvent(ctx, EventPredictionCompleted, w.source, data); err != nil {
		return fmt.Errorf("publish result for %s: %w", requestID, err)
	}
	return nil
}

func decodeSamples(data map[string]interface{}) ([]models.BatchSample, error) {
	raw, ok := data["samples"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("samples must be a list, got %T", data["samples"])
	}
	samples := make([]models.BatchSample, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("sample %d must be an object, got %T", i, item)
		}
		samples[i] = models.BatchSample{ID: obj["id"], Features: obj["features"]}
	}
	return samples, nil
}
