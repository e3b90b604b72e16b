package serving

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ikape/platform/pkg/common/kafka"
	"github.com/ikape/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) PublishEvent(context.Context, string, string, map[string]interface{}) error {
	return errors.New("broker down")
}

func TestWorkerAnswersRequest(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(NewService(newGeneration(defaultModels())), pub, "prediction-worker")

	event, err := kafka.DecodeEvent([]byte(`{
		"id": "evt-1",
		"type": "prediction.requested",
		"data": {"samples": [
			{"id": 7, "features": {"soil_ph": 6.5}},
			{"id": "bad", "features": "nope"}
		]}
	}`))
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), event))

	assert.Equal(t, EventPredictionCompleted, pub.eventType)
	assert.Equal(t, "evt-1", pub.data["request_event_id"])
	items := pub.data["predictions"].([]models.BatchItem)
	require.Len(t, items, 2)
	assert.Equal(t, json.Number("7"), items[0].ID)
	require.NotNil(t, items[0].Prediction)
	assert.Equal(t, "features must be either a list or an object", items[1].Error)
}

func TestWorkerSkipsOtherEvents(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(NewService(newGeneration(defaultModels())), pub, "prediction-worker")
	require.NoError(t, w.Handle(context.Background(), models.Event{ID: "x", Type: EventPredictionCompleted}))
	assert.Empty(t, pub.eventType)

}

func TestWorkerAnswersMalformedRequest(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(NewService(newGeneration(defaultModels())), pub, "prediction-worker")

	require.NoError(t, w.Handle(context.Background(), models.Event{ID: "y", Type: EventPredictionRequested, Data: map[string]interface{}{"samples": "all"}}))
	assert.Equal(t, EventPredictionCompleted, pub.eventType)
	assert.Equal(t, "y", pub.data["request_event_id"])
	assert.Equal(t, "samples must be a list, got string", pub.data["error"])
	assert.NotContains(t, pub.data, "predictions")

	require.NoError(t, w.Handle(context.Background(), models.Event{ID: "z", Type: EventPredictionRequested, Data: map[string]interface{}{}}))
	assert.Equal(t, "z", pub.data["request_event_id"])
	assert.Equal(t, "samples must be a list, got <nil>", pub.data["error"])
}

func TestWorkerRetriesFailedPublish(t *testing.T) {
	w := NewWorker(NewService(newGeneration(defaultModels())), failingPublisher{}, "prediction-worker")
	err := w.Handle(context.Background(), models.Event{
		ID:   "evt-2",
		Type: EventPredictionRequested,
		Data: map[string]interface{}{"samples": []interface{}{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-2")
}
