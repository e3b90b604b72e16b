package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/ikape/platform/pkg/common/config"
	"github.com/ikape/platform/pkg/common/database"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/dataset"
	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/ml/linear"
	"github.com/ikape/platform/pkg/training"
)

func main() {
	logger.Init()
	cfg := config.Load()

	datasetPath := flag.String("dataset", "", "CSV export with feature and target columns (required)")
	schemaName := flag.String("schema", cfg.ModelSchema, "feature schema the dataset is prepared for")
	modelDir := flag.String("model-dir", cfg.ModelDir, "directory for artifacts and model_metadata.json")
	output := flag.String("output", "", "write the cleaned canonical CSV here")
	reportPath := flag.String("report", "", "write the dataset quality report here")
	train := flag.Bool("train", false, "fit baseline linear artifacts after preparing")
	minRows := flag.Int("min-rows", dataset.DefaultMinRows, "minimum rows required after cleaning")
	testSize := flag.Float64("test-size", training.DefaultTestSize, "holdout fraction")
	randomState := flag.Int64("random-state", training.DefaultRandomState, "split seed")
	epochs := flag.Int("epochs", 500, "gradient descent epochs")
	l2 := flag.Float64("l2", 0.001, "ridge penalty")
	minYieldR2 := flag.Float64("min-yield-r2", 0.7, "holdout R2 gate for yield_kg (0 disables)")
	minGradeR2 := flag.Float64("min-grade-r2", 0.65, "holdout R2 gate for grade targets (0 disables)")
	recordRun := flag.Bool("record-run", false, "record the training run in PostgreSQL")
	flag.Parse()

	if *datasetPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	schema, err := features.Lookup(*schemaName)
	if err != nil {
		logger.Log.WithError(err).Fatal("Unknown schema")
	}

	if !*train {
		prepareOnly(*datasetPath, schema, dataset.Options{MinRows: *minRows}, *output, *reportPath)
		return
	}

	var repo *training.Repository
	if *recordRun {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		defer database.ClosePostgres()
		repo = training.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate training runs")
		}
	}

	svc, err := training.NewService(repo, *modelDir)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to create model directory")
	}
	result, err := svc.Run(context.Background(), training.RunInput{
		DatasetPath: *datasetPath,
		Schema:      schema,
		Prepare:     dataset.Options{MinRows: *minRows},
		Training: training.Options{
			TestSize:    *testSize,
			RandomState: *randomState,
			MinYieldR2:  *minYieldR2,
			MinGradeR2:  *minGradeR2,
			Linear:      linear.Options{Epochs: *epochs, L2: *l2},
		},
		CanonicalCSV: *output,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Training failed")
	}
	if *reportPath != "" {
		writeJSON(*reportPath, result.Report.DatasetQuality)
	}

	for key, summary := range result.Report.Targets {
		logger.Log.WithFields(map[string]interface{}{
			"target": key,
			"rmse":   summary.TestMetrics.RMSE,
			"mae":    summary.TestMetrics.MAE,
			"r2":     summary.TestMetrics.R2,
		}).Info("Target trained")
	}
	logger.Log.WithField("model_dir", *modelDir).Info("Training complete")
}

func prepareOnly(path string, schema *features.Schema, opts dataset.Options, output, reportPath string) {
	in, err := os.Open(path)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open dataset")
	}
	defer in.Close()

	prep, report, err := dataset.Prepare(in, schema, opts)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to prepare dataset")
	}
	if output != "" {
		out, err := os.Create(output)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to create output")
		}
		if err := dataset.WriteCSV(out, prep); err != nil {
			logger.Log.WithError(err).Fatal("Failed to write canonical dataset")
		}
		if err := out.Close(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to write canonical dataset")
		}
	}
	if reportPath != "" {
		writeJSON(reportPath, report)
	}

	logger.Log.WithFields(map[string]interface{}{
		"initial_rows":       report.InitialRows,
		"dropped_duplicates": report.DroppedDuplicates,
		"rows":               report.RowsAfterCleaning,
	}).Info("Dataset prepared")
}

func writeJSON(path string, v interface{}) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to encode report")
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		logger.Log.WithError(err).Fatal("Failed to write report")
	}
}
