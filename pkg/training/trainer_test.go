package training

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ikape/platform/pkg/dataset"
	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/ml/linear"
	"github.com/ikape/platform/pkg/serving/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticHarvest builds n farms whose yield is linear in elevation and
// fertilizer type, with fixed grade shares.
func syntheticHarvest(t *testing.T, n int) *dataset.Prepared {
	t.Helper()
	asm := features.NewAssembler(features.Extended, features.EncodingFrame)
	prep := &dataset.Prepared{Schema: features.Extended}
	for i := 0; i < n; i++ {
		elevation := 1000 + 3*float64(i)
		fertilizer, bonus := "organic", 20.0
		if i%2 == 1 {
			fertilizer, bonus = "non-organic", 0
		}
		rec, err := asm.Assemble(map[string]interface{}{
			"elevation_m":     elevation,
			"fertilizer_type": fertilizer,
			"soil_ph":         6.2,
		})
		require.NoError(t, err)
		prep.Records = append(prep.Records, rec)
		prep.Targets = append(prep.Targets, []float64{elevation/2 + bonus, 30, 50, 20})
	}
	return prep
}

var fastFit = Options{RandomState: DefaultRandomState, Linear: linear.Options{Epochs: 2000}}

func TestTrainFitsEveryTarget(t *testing.T) {
	prep := syntheticHarvest(t, 60)
	result, err := Train(prep, dataset.QualityReport{RowsAfterCleaning: 60}, fastFit)
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 4)
	summary := result.Report.Targets["yield_kg"]
	assert.Equal(t, 48, summary.TrainRows)
	assert.Equal(t, 12, summary.TestRows)
	assert.Greater(t, summary.TestMetrics.R2, 0.99)
	assert.Equal(t, "trained_yield_model_RF.json", summary.Artifact)
	assert.Empty(t, result.GateFailures)

	pre := result.Artifacts["yield_kg"].Model.Preprocessing
	require.NotNil(t, pre)
	assert.Equal(t, []string{"non-organic", "organic"}, pre.Categories["fertilizer_type"])
	assert.Equal(t, 6.2, pre.NumericImpute["soil_ph"])
	assert.Equal(t, 0.0, pre.NumericImpute["bean_moisture"])
}

func TestTrainedArtifactPredictsThroughFileModel(t *testing.T) {
	prep := syntheticHarvest(t, 60)
	result, err := Train(prep, dataset.QualityReport{}, fastFit)
	require.NoError(t, err)

	m, err := predictor.NewFileModel("yield", result.Artifacts["yield_kg"], features.Extended)
	require.NoError(t, err)

	rec, err := features.NewAssembler(features.Extended, features.EncodingFrame).Assemble(map[string]interface{}{
		"elevation_m":     1090,
		"fertilizer_type": "Organic",
		"soil_ph":         "6.2",
	})
	require.NoError(t, err)
	y, err := m.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.InDelta(t, 565.0, y, 0.5)
}

func TestTrainReportsQualityGates(t *testing.T) {
	opts := fastFit
	opts.MinYieldR2 = 1.5
	result, err := Train(syntheticHarvest(t, 30), dataset.QualityReport{}, opts)
	require.NoError(t, err)
	require.Len(t, result.GateFailures, 1)
	assert.Contains(t, result.GateFailures[0], "yield_kg: R2=")
	assert.Equal(t, 1.5, result.Report.QualityGates["min_yield_r2"])
}

func TestSplitIsSeeded(t *testing.T) {
	trainA, testA := split(50, 0.2, 7)
	trainB, testB := split(50, 0.2, 7)
	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)
	assert.Len(t, testA, 10)
	assert.Len(t, trainA, 40)

	train, test := split(1, 0.5, 7)
	assert.Len(t, train, 1)
	assert.Empty(t, test)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}

func TestServiceRunWritesLoadableGeneration(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "harvest.csv")
	out, err := os.Create(csvPath)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteCSV(out, syntheticHarvest(t, 40)))
	require.NoError(t, out.Close())

	modelDir := filepath.Join(dir, "models")
	svc, err := NewService(nil, modelDir)
	require.NoError(t, err)

	canonical := filepath.Join(dir, "canonical.csv")
	result, err := svc.Run(context.Background(), RunInput{
		DatasetPath:  csvPath,
		Schema:       features.Extended,
		Prepare:      dataset.Options{MinRows: 10},
		Training:     fastFit,
		CanonicalCSV: canonical,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, result.Report.DatasetQuality.RowsAfterCleaning)
	assert.FileExists(t, canonical)

	spec := predictor.DefaultManifest("extended", "frame").Generations[0]
	gen, err := predictor.LoadGeneration(spec, predictor.LoaderOptions{ModelDir: modelDir})
	require.NoError(t, err)
	assert.Equal(t, result.Report.TrainedAtUTC, gen.TrainedAtUTC)

	content, err := os.ReadFile(gen.MetadataPath)
	require.NoError(t, err)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &meta))
	assert.Equal(t, "extended", meta["schema"])
	assert.Contains(t, meta, "dataset_quality")
}

func TestServiceRunRejectsWeakModels(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "harvest.csv")
	out, err := os.Create(csvPath)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteCSV(out, syntheticHarvest(t, 20)))
	require.NoError(t, out.Close())

	modelDir := filepath.Join(dir, "models")
	svc, err := NewService(nil, modelDir)
	require.NoError(t, err)

	opts := fastFit
	opts.MinGradeR2 = 0.5
	_, err = svc.Run(context.Background(), RunInput{
		DatasetPath: csvPath,
		Schema:      features.Extended,
		Prepare:     dataset.Options{MinRows: 10},
		Training:    opts,
	})
	require.ErrorIs(t, err, ErrQualityGate)
	assert.NoFileExists(t, filepath.Join(modelDir, predictor.DefaultMetadataFile))

	failed, err := filepath.Glob(filepath.Join(modelDir, "failed_training", "*", predictor.DefaultMetadataFile))
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}
