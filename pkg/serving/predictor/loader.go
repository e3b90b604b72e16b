package predictor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ikape/platform/pkg/common/logger"
	"github.com/ikape/platform/pkg/features"
)

// Generation is one immutable, fully validated model set together with the
// schema and encoding its artifacts were fitted on.
type Generation struct {
	Name         string
	RoutePrefix  string
	Schema       *features.Schema
	Encoding     features.Encoding
	Models       Set
	TrainedAtUTC string
	// MetadataPath points at the training report, which may not exist.
	MetadataPath string
}

// LoaderOptions carries settings shared by every generation.
type LoaderOptions struct {
	ModelDir      string
	RemoteTimeout time.Duration
	TokenURL      string
	ClientID      string
	ClientSecret  string
}

// LoadGenerations loads every generation of m. Any invalid artifact aborts
// the whole load.
func LoadGenerations(m Manifest, opts LoaderOptions) ([]*Generation, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := make([]*Generation, 0, len(m.Generations))
	for _, spec := range m.Generations {
		g, err := LoadGeneration(spec, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func LoadGeneration(spec GenerationSpec, opts LoaderOptions) (*Generation, error) {
	schemaName := spec.Schema
	if schemaName == "" {
		schemaName = spec.Name
	}
	schema, err := features.Lookup(schemaName)
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", spec.Name, err)
	}
	encoding, err := features.ParseEncoding(spec.Encoding)
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", spec.Name, err)
	}

	metadata := spec.Metadata
	if metadata == "" {
		metadata = DefaultMetadataFile
	}
	if !filepath.IsAbs(metadata) {
		metadata = filepath.Join(opts.ModelDir, metadata)
	}

	g := &Generation{
		Name:         spec.Name,
		RoutePrefix:  CleanPrefix(spec.RoutePrefix),
		Schema:       schema,
		Encoding:     encoding,
		MetadataPath: metadata,
	}
	for _, target := range Targets {
		as, ok := spec.Models[target]
		if !ok {
			return nil, fmt.Errorf("generation %s: no model configured for %s", spec.Name, target)
		}
		model, trainedAt, err := loadModel(spec.Name, target, as, schema, encoding, opts)
		if err != nil {
			return nil, fmt.Errorf("generation %s: %w", spec.Name, err)
		}
		if model.InputWidth() != schema.Len() {
			return nil, fmt.Errorf("generation %s: %w", spec.Name, widthMismatch(model.Name(), model.InputWidth(), schema))
		}
		if model.Encoding() != encoding {
			return nil, fmt.Errorf("generation %s: %s is %s encoded, generation is %s",
				spec.Name, model.Name(), model.Encoding(), encoding)
		}
		if trainedAt != "" && g.TrainedAtUTC == "" {
			g.TrainedAtUTC = trainedAt
		}
		g.Models.assign(target, model)
	}

	logger.Log.WithFields(map[string]interface{}{
		"generation":   g.Name,
		"schema":       schema.Name,
		"encoding":     encoding,
		"route_prefix": g.RoutePrefix,
	}).Info("Model generation loaded")
	return g, nil
}

func loadModel(generation, target string, as ArtifactSpec, schema *features.Schema, encoding features.Encoding, opts LoaderOptions) (Model, string, error) {
	name := generation + "/" + target
	switch strings.ToLower(as.Type) {
	case "", "file":
		if as.File == "" {
			return nil, "", fmt.Errorf("%s: no artifact file", name)
		}
		path := as.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.ModelDir, path)
		}
		artifact, err := ReadArtifact(path)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", name, err)
		}
		if w := artifact.Model.DeclaredWidth(); w != schema.Len() {
			return nil, "", widthMismatch(name, w, schema)
		}
		if err := checkFeatureNames(artifact.Model, schema, encoding); err != nil {
			return nil, "", fmt.Errorf("%s: %w", name, err)
		}
		m, err := NewFileModel(name, artifact, schema)
		if err != nil {
			return nil, "", err
		}
		return m, m.TrainedAtUTC(), nil
	case "remote":
		m, err := NewRemoteModel(RemoteConfig{
			Name:         name,
			Endpoint:     as.Endpoint,
			ModelName:    as.ModelName,
			InputWidth:   as.InputWidth,
			Encoding:     encoding,
			Timeout:      opts.RemoteTimeout,
			Retries:      as.Retries,
			TokenURL:     opts.TokenURL,
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
		})
		return m, "", err
	default:
		return nil, "", fmt.Errorf("%s: unknown model type %q", name, as.Type)
	}
}

// checkFeatureNames requires frame artifacts that list their inputs to list
// exactly the schema keys in canonical order.
func checkFeatureNames(am ArtifactModel, schema *features.Schema, encoding features.Encoding) error {
	if encoding != features.EncodingFrame || len(am.FeatureNames) == 0 {
		return nil
	}
	keys := schema.Keys()
	for i, k := range keys {
		if am.FeatureNames[i] != k {
			return fmt.Errorf("feature %d is %q, schema %s expects %q", i, am.FeatureNames[i], schema.Name, k)
		}
	}
	return nil
}

func widthMismatch(name string, width int, schema *features.Schema) error {
	return fmt.Errorf("feature map mismatch: %s expects %d features, schema %s has %d", name, width, schema.Name, schema.Len())
}
