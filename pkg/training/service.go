package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/dataset"
	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/serving/predictor"
)

// ErrQualityGate is returned when a fitted model misses its R2 gate. The
// artifacts are then written under failed_training instead of the model
// directory.
var ErrQualityGate = errors.New("quality gate failed")

type Service struct {
	repo     *Repository
	modelDir string
}

// NewService creates the model directory. repo may be nil, in which case
// runs are not recorded.
func NewService(repo *Repository, modelDir string) (*Service, error) {
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, err
	}
	return &Service{repo: repo, modelDir: modelDir}, nil
}

// RunInput describes one training run from a CSV export.
type RunInput struct {
	DatasetPath  string
	Schema       *features.Schema
	Prepare      dataset.Options
	Training     Options
	CanonicalCSV string
}

func (s *Service) Run(ctx context.Context, input RunInput) (*Result, error) {
	runID := uuid.New()
	start := time.Now().UTC()
	if s.repo != nil {
		run := &RunModel{
			ID:          runID,
			Schema:      input.Schema.Name,
			DatasetPath: input.DatasetPath,
			Status:      StatusRunning,
			CreatedAt:   start,
			UpdatedAt:   start,
			StartedAt:   &start,
		}
		if err := s.repo.Create(ctx, run); err != nil {
			logger.Log.WithError(err).Error("failed to record training run")
		}
	}

	result, dir, err := s.run(input)
	s.finish(ctx, runID, result, dir, err)
	return result, err
}

func (s *Service) run(input RunInput) (*Result, string, error) {
	f, err := os.Open(input.DatasetPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	prep, quality, err := dataset.Prepare(f, input.Schema, input.Prepare)
	if err != nil {
		return nil, "", err
	}
	logger.Log.WithFields(map[string]interface{}{
		"dataset": input.DatasetPath,
		"rows":    prep.Len(),
		"dropped": quality.DroppedDuplicates,
		"schema":  input.Schema.Name,
	}).Info("Dataset prepared")

	if input.CanonicalCSV != "" {
		if err := writeCanonical(input.CanonicalCSV, prep); err != nil {
			return nil, "", fmt.Errorf("write canonical dataset: %w", err)
		}
	}

	result, err := Train(prep, quality, input.Training)
	if err != nil {
		return nil, "", err
	}
	if abs, err := filepath.Abs(input.DatasetPath); err == nil {
		result.Report.DatasetPath = abs
	}

	dir := s.modelDir
	if len(result.GateFailures) > 0 {
		dir = filepath.Join(s.modelDir, "failed_training", time.Now().UTC().Format("20060102T150405Z"))
	}
	if err := WriteResult(dir, result); err != nil {
		return result, dir, err
	}
	if len(result.GateFailures) > 0 {
		return result, dir, fmt.Errorf("%w: artifacts saved under %s:\n%s", ErrQualityGate, dir, strings.Join(result.GateFailures, "\n"))
	}
	return result, dir, nil
}

func (s *Service) finish(ctx context.Context, runID uuid.UUID, result *Result, dir string, runErr error) {
	status := StatusCompleted
	message := ""
	switch {
	case errors.Is(runErr, ErrQualityGate):
		status = StatusRejected
		message = runErr.Error()
	case runErr != nil:
		status = StatusFailed
		message = runErr.Error()
		logger.Log.WithError(runErr).Error("training run failed")
	}
	if s.repo == nil {
		return
	}
	var metrics map[string]interface{}
	if result != nil {
		metrics = make(map[string]interface{}, len(result.Report.Targets))
		for key, summary := range result.Report.Targets {
			metrics[key] = summary.TestMetrics
		}
	}
	if err := s.repo.Finish(ctx, runID, status, metrics, dir, message); err != nil {
		logger.Log.WithError(err).Error("failed to update training run")
	}
}

// WriteResult writes one artifact per target plus the metadata report.
func WriteResult(dir string, result *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for key, artifact := range result.Artifacts {
		name, ok := predictor.DefaultArtifactFiles[key]
		if !ok {
			name = key + ".json"
		}
		if err := predictor.WriteArtifact(filepath.Join(dir, name), artifact); err != nil {
			return fmt.Errorf("write %s artifact: %w", key, err)
		}
	}
	payload, err := json.MarshalIndent(result.Report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, predictor.DefaultMetadataFile), payload, 0o644)
}

func writeCanonical(path string, prep *dataset.Prepared) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(out, prep); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
