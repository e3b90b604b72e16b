package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ikape/platform/pkg/common/config"
	"github.com/ikape/platform/pkg/common/kafka"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/observability/metrics"
	"github.com/ikape/platform/pkg/serving"
	"github.com/ikape/platform/pkg/serving/predictor"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	manifest, err := predictor.LoadManifest(cfg.ModelManifest, predictor.DefaultManifest(cfg.ModelSchema, cfg.ModelEncoding))
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to read model manifest")
	}
	generations, err := predictor.LoadGenerations(manifest, predictor.LoaderOptions{
		ModelDir:      cfg.ModelDir,
		RemoteTimeout: cfg.ModelServerTimeout,
		TokenURL:      cfg.ModelServerTokenURL,
		ClientID:      cfg.ModelServerClientID,
		ClientSecret:  cfg.ModelServerClientSecret,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load models")
	}

	// Requests are scored by the generation served at the root, or the
	// first one listed.
	gen := generations[0]
	for _, g := range generations {
		if g.RoutePrefix == "/" {
			gen = g
			break
		}
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PredictionResultTopic)
	defer producer.Close()
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.PredictionRequestTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	service := serving.NewService(gen, serving.WithMaxConcurrency(cfg.BatchMaxConcurrency))
	worker := serving.NewWorker(service, producer, "prediction-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Log.WithFields(map[string]interface{}{
		"generation":    gen.Name,
		"request_topic": cfg.PredictionRequestTopic,
		"result_topic":  cfg.PredictionResultTopic,
	}).Info("Prediction Worker started")

	if err := consumer.Consume(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithError(err).Error("Consumer stopped")
	}

	logger.Log.Info("Prediction Worker stopped")
}
