package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/ikape/platform/pkg/dataset"
	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/ml/linear"
	"github.com/ikape/platform/pkg/serving/predictor"
)

const (
	DefaultTestSize    = 0.2
	DefaultRandomState = 42
	AlgorithmRidgeGD   = "ridge_gradient_descent"
)

// Result holds the fitted artifacts keyed by target.
type Result struct {
	Artifacts    map[string]predictor.Artifact
	Report       Report
	GateFailures []string
}

// Train fits one standardized ridge regression per target on a seeded
// holdout split of prep. Rows missing a target are left out of that
// target's fit and evaluation.
func Train(prep *dataset.Prepared, quality dataset.QualityReport, opts Options) (*Result, error) {
	if opts.TestSize <= 0 || opts.TestSize >= 1 {
		opts.TestSize = DefaultTestSize
	}
	schema := prep.Schema
	trainIdx, testIdx := split(prep.Len(), opts.TestSize, opts.RandomState)
	if len(trainIdx) == 0 {
		return nil, fmt.Errorf("not enough rows to train: %d", prep.Len())
	}

	trainRecs := pick(prep.Records, trainIdx)
	pre := fitPreprocessing(schema, trainRecs)
	rawTrain, err := predictor.DesignMatrix(schema, pre, trainRecs)
	if err != nil {
		return nil, err
	}
	rawTest, err := predictor.DesignMatrix(schema, pre, pick(prep.Records, testIdx))
	if err != nil {
		return nil, err
	}
	means, scales := linear.FitStandardizer(rawTrain)
	pre.Standardize = &predictor.Standardizer{Mean: means, Scale: scales}
	xTrain := standardizeAll(rawTrain, means, scales)
	xTest := standardizeAll(rawTest, means, scales)

	trainedAt := time.Now().UTC().Format(time.RFC3339)
	result := &Result{
		Artifacts: make(map[string]predictor.Artifact, len(schema.Targets)),
		Report: Report{
			TrainedAtUTC:   trainedAt,
			Schema:         schema.Name,
			Encoding:       string(features.EncodingFrame),
			RandomState:    opts.RandomState,
			TestSize:       opts.TestSize,
			FeatureKeys:    schema.Keys(),
			TargetKeys:     schema.TargetKeys(),
			DatasetQuality: quality,
			Targets:        make(map[string]TargetSummary, len(schema.Targets)),
			QualityGates:   map[string]float64{"min_yield_r2": opts.MinYieldR2, "min_grade_r2": opts.MinGradeR2},
		},
	}

	for _, key := range schema.TargetKeys() {
		labels, err := prep.Target(key)
		if err != nil {
			return nil, err
		}
		xs, ys := labelled(xTrain, labels, trainIdx)
		if len(xs) == 0 {
			return nil, fmt.Errorf("target %s has no labelled training rows", key)
		}
		weights, trainMetrics := linear.TrainRegression(xs, ys, opts.Linear)
		tx, ty := labelled(xTest, labels, testIdx)
		testMetrics := linear.Evaluate(weights, tx, ty)

		result.Artifacts[key] = predictor.Artifact{Model: predictor.ArtifactModel{
			Type:          predictor.TypeLinear,
			Algorithm:     AlgorithmRidgeGD,
			Target:        key,
			Encoding:      string(features.EncodingFrame),
			FeatureNames:  schema.Keys(),
			TrainedAtUTC:  trainedAt,
			Preprocessing: clonePreprocessing(pre),
			Weights:       &weights,
		}}
		result.Report.Targets[key] = TargetSummary{
			Artifact:     predictor.DefaultArtifactFiles[key],
			Algorithm:    AlgorithmRidgeGD,
			TrainRows:    len(xs),
			TestRows:     len(tx),
			TrainMetrics: roundMetrics(trainMetrics),
			TestMetrics:  roundMetrics(testMetrics),
		}

		required := opts.MinGradeR2
		if key == "yield_kg" {
			required = opts.MinYieldR2
		}
		if required > 0 && testMetrics.R2 < required {
			result.GateFailures = append(result.GateFailures,
				fmt.Sprintf("%s: R2=%.4f is below required %.4f", key, testMetrics.R2, required))
		}
	}
	return result, nil
}

// split shuffles row indices with seed and holds out ceil(n*testSize) of
// them, keeping at least one training row.
func split(n int, testSize float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	holdout := int(math.Ceil(float64(n) * testSize))
	if holdout >= n {
		holdout = n - 1
	}
	if holdout < 0 {
		holdout = 0
	}
	test = append(test, perm[:holdout]...)
	train = append(train, perm[holdout:]...)
	return train, test
}

func pick(recs []*features.Record, idx []int) []*features.Record {
	out := make([]*features.Record, len(idx))
	for i, j := range idx {
		out[i] = recs[j]
	}
	return out
}

// labelled pairs design rows with the labels of the rows they came from,
// skipping missing labels.
func labelled(x [][]float64, labels []float64, idx []int) ([][]float64, []float64) {
	var xs [][]float64
	var ys []float64
	for i, j := range idx {
		if math.IsNaN(labels[j]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, labels[j])
	}
	return xs, ys
}

func standardizeAll(rows [][]float64, means, scales []float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = linear.Standardize(row, means, scales)
	}
	return out
}

// fitPreprocessing imputes numeric keys with the median and categorical keys
// with the most frequent value, and one-hot encodes the categories seen.
func fitPreprocessing(schema *features.Schema, recs []*features.Record) predictor.Preprocessing {
	pre := predictor.Preprocessing{
		NumericImpute:     map[string]float64{},
		CategoricalImpute: map[string]string{},
		Categories:        map[string][]string{},
	}
	for i, f := range schema.Fields {
		if f.Kind == features.KindCategorical {
			counts := map[string]int{}
			for _, rec := range recs {
				if v := rec.Values[i]; !v.Missing() {
					counts[v.String()]++
				}
			}
			cats := make([]string, 0, len(counts))
			for c := range counts {
				cats = append(cats, c)
			}
			sort.Strings(cats)
			pre.Categories[f.Key] = cats
			best := ""
			for _, c := range cats {
				if best == "" || counts[c] > counts[best] {
					best = c
				}
			}
			pre.CategoricalImpute[f.Key] = best
			continue
		}
		var values []float64
		for _, rec := range recs {
			if v := rec.Values[i].Float(); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		pre.NumericImpute[f.Key] = median(values)
	}
	return pre
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func clonePreprocessing(pre predictor.Preprocessing) *predictor.Preprocessing {
	out := pre
	if pre.Standardize != nil {
		st := *pre.Standardize
		out.Standardize = &st
	}
	return &out
}

func roundMetrics(m linear.Metrics) linear.Metrics {
	return linear.Metrics{RMSE: round6(m.RMSE), MAE: round6(m.MAE), R2: round6(m.R2)}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
