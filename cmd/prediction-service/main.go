package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/ikape/platform/pkg/analytics"
	"github.com/ikape/platform/pkg/common/config"
	"github.com/ikape/platform/pkg/common/database"
	"github.com/ikape/platform/pkg/common/kafka"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/common/middleware"
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

	opts := []serving.Option{serving.WithMaxConcurrency(cfg.BatchMaxConcurrency)}
	var sinks []serving.Sink

	if cfg.PredictionCacheEnabled {
		opts = append(opts, serving.WithCache(serving.NewRedisCache(database.GetRedis(cfg), cfg.PredictionCacheTTL)))
		defer database.CloseRedis()
	}

	var history *serving.Repository
	if cfg.PredictionLogEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		history = serving.NewRepository(db)
		if err := history.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction log")
		}
		sinks = append(sinks, history)
		defer database.ClosePostgres()
	}

	if cfg.PredictionEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PredictionEventsTopic)
		defer producer.Close()
		sinks = append(sinks, serving.NewEventSink(producer, "prediction-service"))
	}
	if len(sinks) > 0 {
		opts = append(opts, serving.WithSinks(sinks...))
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	for _, gen := range generations {
		handler := serving.NewHTTPHandler(serving.NewService(gen, opts...), serving.HandlerOptions{
			MaxBody:  cfg.MaxRequestBody,
			ModelDir: cfg.ModelDir,
			DataMode: cfg.DataMode,
			History:  history,
		})
		handler.Mount(router, gen.RoutePrefix)
	}

	analytics.NewHTTPHandler(analytics.NewService(cfg.DataMode, cfg.SyntheticAdminDataPath)).Register(router)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	// Preflights match no route, so CORS wraps the router instead of joining the chain.
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      middleware.CORS(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":        cfg.ServerHost,
			"port":        cfg.ServerPort,
			"generations": len(generations),
		}).Info("Prediction Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Prediction Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Prediction Service stopped")
}
