package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ikape/platform/pkg/features"
	"github.com/ikape/platform/pkg/ml/linear"
)

const (
	TypeLinear       = "linear"
	TypeTreeEnsemble = "tree_ensemble"
)

// Artifact is the on-disk JSON form of a trained model.
type Artifact struct {
	Model ArtifactModel `json:"model"`
}

type ArtifactModel struct {
	Type         string   `json:"type"`
	Algorithm    string   `json:"algorithm,omitempty"`
	Target       string   `json:"target,omitempty"`
	Encoding     string   `json:"encoding"`
	FeatureNames []string `json:"feature_names,omitempty"`
	// InputWidth is only read when FeatureNames is empty.
	InputWidth    int            `json:"input_width,omitempty"`
	TrainedAtUTC  string         `json:"trained_at_utc,omitempty"`
	Preprocessing *Preprocessing `json:"preprocessing,omitempty"`

	Weights      *linear.Weights `json:"weights,omitempty"`
	Trees        []Tree          `json:"trees,omitempty"`
	Aggregation  string          `json:"aggregation,omitempty"`
	BaseScore    float64         `json:"base_score,omitempty"`
	LearningRate float64         `json:"learning_rate,omitempty"`
}

// Preprocessing turns a frame record into the design vector the estimator
// was fitted on: numeric keys are imputed, categorical keys are imputed and
// one-hot encoded over Categories. A category not seen in training encodes
// as all zeros. Standardize, when present, is applied last.
type Preprocessing struct {
	NumericImpute     map[string]float64  `json:"numeric_impute,omitempty"`
	CategoricalImpute map[string]string   `json:"categorical_impute,omitempty"`
	Categories        map[string][]string `json:"categories,omitempty"`
	Standardize       *Standardizer       `json:"standardize,omitempty"`
}

type Standardizer struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// DeclaredWidth is the number of canonical keys the artifact was fitted on.
func (am ArtifactModel) DeclaredWidth() int {
	if len(am.FeatureNames) > 0 {
		return len(am.FeatureNames)
	}
	return am.InputWidth
}

func ReadArtifact(path string) (Artifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	var artifact Artifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return artifact, nil
}

func WriteArtifact(path string, artifact Artifact) error {
	content, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

// design builds the estimator input for one record.
type design struct {
	schema   *features.Schema
	encoding features.Encoding
	pre      *Preprocessing
	width    int
}

func newDesign(schema *features.Schema, encoding features.Encoding, pre *Preprocessing) (*design, error) {
	d := &design{schema: schema, encoding: encoding, pre: pre}
	if encoding == features.EncodingVector || pre == nil {
		d.width = schema.Len()
	} else {
		for _, f := range schema.Fields {
			if f.Kind == features.KindCategorical {
				cats, ok := pre.Categories[f.Key]
				if !ok {
					return nil, fmt.Errorf("preprocessing has no categories for %s", f.Key)
				}
				d.width += len(cats)
				continue
			}
			d.width++
		}
	}
	if encoding == features.EncodingFrame && pre == nil && len(schema.KeysOfKind(features.KindCategorical)) > 0 {
		return nil, fmt.Errorf("frame artifact for schema %s needs preprocessing", schema.Name)
	}
	if st := d.standardizer(); st != nil && (len(st.Mean) != d.width || len(st.Scale) != d.width) {
		return nil, fmt.Errorf("standardizer width %d/%d, design width %d", len(st.Mean), len(st.Scale), d.width)
	}
	return d, nil
}

func (d *design) standardizer() *Standardizer {
	if d.pre == nil {
		return nil
	}
	return d.pre.Standardize
}

func (d *design) build(rec *features.Record) ([]float64, error) {
	if rec.Schema != d.schema {
		return nil, fmt.Errorf("record schema %s, model schema %s", rec.Schema.Name, d.schema.Name)
	}
	if rec.Encoding != d.encoding {
		return nil, fmt.Errorf("record encoding %s, model encoding %s", rec.Encoding, d.encoding)
	}

	var x []float64
	if d.encoding == features.EncodingVector || d.pre == nil {
		x = rec.Vector()
		for i, v := range x {
			if math.IsNaN(v) {
				x[i] = 0
			}
		}
	} else {
		x = make([]float64, 0, d.width)
		for i, f := range d.schema.Fields {
			v := rec.Values[i]
			if f.Kind == features.KindCategorical {
				value := v.String()
				if v.Missing() {
					value = d.pre.CategoricalImpute[f.Key]
				}
				for _, c := range d.pre.Categories[f.Key] {
					if c == value {
						x = append(x, 1)
					} else {
						x = append(x, 0)
					}
				}
				continue
			}
			num := v.Float()
			if math.IsNaN(num) {
				num = d.pre.NumericImpute[f.Key]
			}
			x = append(x, num)
		}
	}

	if st := d.standardizer(); st != nil {
		for i := range x {
			if st.Scale[i] != 0 {
				x[i] = (x[i] - st.Mean[i]) / st.Scale[i]
			} else {
				x[i] -= st.Mean[i]
			}
		}
	}
	return x, nil
}

// DesignMatrix lays recs out the way a frame artifact with pre would see
// them, before standardization.
func DesignMatrix(schema *features.Schema, pre Preprocessing, recs []*features.Record) ([][]float64, error) {
	pre.Standardize = nil
	d, err := newDesign(schema, features.EncodingFrame, &pre)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(recs))
	for i, rec := range recs {
		if out[i], err = d.build(rec); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

// estimator is the fitted function over the design vector.
type estimator interface {
	evaluate(x []float64) float64
	validate(width int) error
}

// FileModel is a model evaluated in-process from a JSON artifact.
type FileModel struct {
	name      string
	width     int
	encoding  features.Encoding
	trainedAt string
	design    *design
	est       estimator
}

func (m *FileModel) Name() string                { return m.name }
func (m *FileModel) InputWidth() int             { return m.width }
func (m *FileModel) Encoding() features.Encoding { return m.encoding }
func (m *FileModel) TrainedAtUTC() string        { return m.trainedAt }

func (m *FileModel) Predict(ctx context.Context, rec *features.Record) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x, err := m.design.build(rec)
	if err != nil {
		return 0, err
	}
	y := m.est.evaluate(x)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("model %s produced a non-finite value", m.name)
	}
	return y, nil
}

// NewFileModel validates artifact against schema and builds an evaluable
// model. name is used in errors and logs.
func NewFileModel(name string, artifact Artifact, schema *features.Schema) (*FileModel, error) {
	am := artifact.Model
	encoding, err := features.ParseEncoding(am.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	width := am.DeclaredWidth()
	if width == 0 {
		return nil, fmt.Errorf("%s: artifact declares no input width", name)
	}

	d, err := newDesign(schema, encoding, am.Preprocessing)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var est estimator
	switch am.Type {
	case TypeLinear:
		if am.Weights == nil {
			return nil, fmt.Errorf("%s: linear artifact without weights", name)
		}
		est = linearEstimator{weights: *am.Weights}
	case TypeTreeEnsemble:
		est, err = newTreeEnsemble(am.Trees, am.Aggregation, am.BaseScore, am.LearningRate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported artifact type %q", name, am.Type)
	}
	if err := est.validate(d.width); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &FileModel{
		name:      name,
		width:     width,
		encoding:  encoding,
		trainedAt: am.TrainedAtUTC,
		design:    d,
		est:       est,
	}, nil
}
