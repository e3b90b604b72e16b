package predictor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/ml/linear"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorArtifact(schema *features.Schema, bias float64, coef map[string]float64) Artifact {
	coefficients := make([]float64, schema.Len())
	for i, k := range schema.Keys() {
		coefficients[i] = coef[k]
	}
	return Artifact{Model: ArtifactModel{
		Type:       TypeLinear,
		Encoding:   string(features.EncodingVector),
		InputWidth: schema.Len(),
		Weights:    &linear.Weights{Bias: bias, Coefficients: coefficients},
	}}
}

func framePreprocessing(schema *features.Schema) *Preprocessing {
	pre := &Preprocessing{
		NumericImpute:     map[string]float64{},
		CategoricalImpute: map[string]string{},
		Categories:        map[string][]string{},
	}
	for _, f := range schema.Fields {
		if f.Kind == features.KindCategorical {
			pre.Categories[f.Key] = f.Domain.Members
		}
	}
	return pre
}

func TestLinearVectorArtifact(t *testing.T) {
	m, err := NewFileModel("yield", vectorArtifact(features.Extended, 1, map[string]float64{"soil_ph": 2}), features.Extended)
	require.NoError(t, err)

	rec, err := features.NewAssembler(features.Extended, features.EncodingVector).Assemble(map[string]interface{}{"soil_ph": "6"})
	require.NoError(t, err)

	y, err := m.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 13.0, y)
	assert.Equal(t, 39, m.InputWidth())
}

func TestLinearFrameArtifactOneHot(t *testing.T) {
	schema := features.Simple
	pre := framePreprocessing(schema)
	pre.NumericImpute["soil_ph"] = 5

	// design: 13 numerics + shade flag + 2+2+4+4 one-hot columns.
	d, err := newDesign(schema, features.EncodingFrame, pre)
	require.NoError(t, err)
	require.Equal(t, 14+12, d.width)

	coef := make([]float64, d.width)
	// fertilizer_type sits at index 2, its one-hot block starts there.
	coef[2] = 10 // organic
	coef[3] = 20 // non-organic
	artifact := Artifact{Model: ArtifactModel{
		Type:          TypeLinear,
		Encoding:      "frame",
		FeatureNames:  schema.Keys(),
		Preprocessing: pre,
		Weights:       &linear.Weights{Bias: 0.5, Coefficients: coef},
	}}
	m, err := NewFileModel("fine", artifact, schema)
	require.NoError(t, err)

	a := features.NewAssembler(schema, features.EncodingFrame)
	cases := map[string]float64{"natural": 10.5, "chemical": 20.5, "unknown stuff": 0.5}
	for in, want := range cases {
		rec, err := a.Assemble(map[string]interface{}{"fertilizer_type": in})
		require.NoError(t, err)
		got, err := m.Predict(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestFrameArtifactImputesMissingNumerics(t *testing.T) {
	schema := features.Extended
	pre := framePreprocessing(schema)
	pre.NumericImpute["elevation_m"] = 1000
	pre.CategoricalImpute["flood_risk_level"] = "low"

	d, err := newDesign(schema, features.EncodingFrame, pre)
	require.NoError(t, err)

	rec, err := features.NewAssembler(schema, features.EncodingFrame).Assemble(map[string]interface{}{})
	require.NoError(t, err)
	x, err := d.build(rec)
	require.NoError(t, err)
	require.Len(t, x, d.width)
	assert.Equal(t, 1000.0, x[3])
	for _, v := range x {
		assert.False(t, math.IsNaN(v), "design vector holds NaN")
	}

	// flood_risk_level block: none, low, medium, high, severe.
	offset := 0
	for _, f := range schema.Fields {
		if f.Key == "flood_risk_level" {
			break
		}
		if f.Kind == features.KindCategorical {
			offset += len(f.Domain.Members)
		} else {
			offset++
		}
	}
	assert.Equal(t, []float64{0, 1, 0, 0, 0}, x[offset:offset+5])
}

func TestDesignRejectsForeignRecords(t *testing.T) {
	m, err := NewFileModel("yield", vectorArtifact(features.Extended, 0, nil), features.Extended)
	require.NoError(t, err)
	rec, err := features.NewAssembler(features.Extended, features.EncodingFrame).Assemble(map[string]interface{}{})
	require.NoError(t, err)
	_, err = m.Predict(context.Background(), rec)
	require.Error(t, err)
}

func TestTreeEnsembleAggregation(t *testing.T) {
	stump := func(feature int, threshold, left, right float64) Tree {
		return Tree{Nodes: []Node{
			{Feature: feature, Threshold: threshold, Left: 1, Right: 2},
			{Feature: -1, Value: left},
			{Feature: -1, Value: right},
		}}
	}
	trees := []Tree{stump(0, 5, 1, 3), stump(1, 0, 10, 20)}

	forest, err := newTreeEnsemble(trees, AggregateMean, 0, 0)
	require.NoError(t, err)
	require.NoError(t, forest.validate(2))
	assert.Equal(t, 5.5, forest.evaluate([]float64{4, 0}))
	assert.Equal(t, 11.5, forest.evaluate([]float64{6, 1}))

	boosted, err := newTreeEnsemble(trees, AggregateSum, 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 106.5, boosted.evaluate([]float64{6, 0}))

	_, err = newTreeEnsemble(trees, "median", 0, 0)
	require.Error(t, err)
}

func TestTreeValidation(t *testing.T) {
	cyclic := Tree{Nodes: []Node{{Feature: 0, Left: 0, Right: 1}, {Feature: -1}}}
	require.Error(t, cyclic.validate(1))

	outOfRange := Tree{Nodes: []Node{{Feature: 3, Left: 1, Right: 2}, {Feature: -1}, {Feature: -1}}}
	require.Error(t, outOfRange.validate(2))

	require.Error(t, Tree{}.validate(1))
}

func writeArtifacts(t *testing.T, dir string, artifacts map[string]Artifact) {
	t.Helper()
	for target, a := range artifacts {
		require.NoError(t, WriteArtifact(filepath.Join(dir, DefaultArtifactFiles[target]), a))
	}
}

func vectorSet(schema *features.Schema) map[string]Artifact {
	return map[string]Artifact{
		"yield_kg":             vectorArtifact(schema, 100, nil),
		"fine_grade_pct":       vectorArtifact(schema, 30, nil),
		"premium_grade_pct":    vectorArtifact(schema, 40, nil),
		"commercial_grade_pct": vectorArtifact(schema, 30, nil),
	}
}

func TestLoadDefaultGeneration(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, vectorSet(features.Extended))

	m, err := LoadManifest(filepath.Join(dir, "models.yaml"), DefaultManifest("extended", "vector"))
	require.NoError(t, err)
	gens, err := LoadGenerations(m, LoaderOptions{ModelDir: dir})
	require.NoError(t, err)
	require.Len(t, gens, 1)

	g := gens[0]
	assert.Equal(t, "/", g.RoutePrefix)
	assert.Equal(t, features.EncodingVector, g.Encoding)
	for _, target := range Targets {
		assert.NotNil(t, g.Models.ByTarget(target), target)
	}
}

func TestLoadRejectsWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	set := vectorSet(features.Extended)
	writeArtifacts(t, dir, set)

	_, err := LoadGenerations(DefaultManifest("simple", "vector"), LoaderOptions{ModelDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature map mismatch")
}

func TestLoadRejectsEncodingMismatch(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, vectorSet(features.Extended))

	_, err := LoadGenerations(DefaultManifest("extended", "frame"), LoaderOptions{ModelDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector encoded")
}

func TestLoadRejectsMissingTarget(t *testing.T) {
	dir := t.TempDir()
	set := vectorSet(features.Extended)
	delete(set, "premium_grade_pct")
	writeArtifacts(t, dir, set)

	_, err := LoadGenerations(DefaultManifest("extended", "vector"), LoaderOptions{ModelDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "premium_grade_pct")
}

func TestLoadRejectsReorderedFeatureNames(t *testing.T) {
	schema := features.Simple
	keys := schema.Keys()
	keys[0], keys[1] = keys[1], keys[0]

	pre := framePreprocessing(schema)
	d, err := newDesign(schema, features.EncodingFrame, pre)
	require.NoError(t, err)
	artifact := Artifact{Model: ArtifactModel{
		Type:          TypeLinear,
		Encoding:      "frame",
		FeatureNames:  keys,
		Preprocessing: pre,
		Weights:       &linear.Weights{Coefficients: make([]float64, d.width)},
	}}
	err = checkFeatureNames(artifact.Model, schema, features.EncodingFrame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plant_age_months")
}

func TestLoadManifestYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	content := `
generations:
  - name: v2
    schema: extended
    encoding: frame
    route_prefix: /
    models:
      yield_kg: {file: v2/yield.json}
      fine_grade_pct: {file: v2/fine.json}
      premium_grade_pct: {file: v2/premium.json}
      commercial_grade_pct: {type: remote, endpoint: "http://models:8501/score", input_width: 39}
  - name: v1
    schema: simple
    encoding: frame
    route_prefix: api/
    models: {}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadManifest(path, Manifest{})
	require.NoError(t, err)
	require.Len(t, m.Generations, 2)
	assert.Equal(t, "/api", m.Generations[1].RoutePrefix)
	assert.Equal(t, "remote", m.Generations[0].Models["commercial_grade_pct"].Type)
	assert.Equal(t, 39, m.Generations[0].Models["commercial_grade_pct"].InputWidth)
}

func TestManifestRejectsSharedPrefix(t *testing.T) {
	m := Manifest{Generations: []GenerationSpec{
		{Name: "a", RoutePrefix: "/api"},
		{Name: "b", RoutePrefix: "api/"},
	}}
	require.Error(t, m.Validate())
}

func TestCleanPrefix(t *testing.T) {
	assert.Equal(t, "/", CleanPrefix(""))
	assert.Equal(t, "/", CleanPrefix("/"))
	assert.Equal(t, "/api", CleanPrefix("/api/"))
	assert.Equal(t, "/v2", CleanPrefix(" v2 "))
}
