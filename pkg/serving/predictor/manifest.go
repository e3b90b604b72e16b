package predictor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ArtifactSpec locates the model for one target.
type ArtifactSpec struct {
	// Type is "file" (default) or "remote".
	Type       string `yaml:"type" json:"type"`
	File       string `yaml:"file" json:"file,omitempty"`
	Endpoint   string `yaml:"endpoint" json:"endpoint,omitempty"`
	ModelName  string `yaml:"model" json:"model,omitempty"`
	InputWidth int    `yaml:"input_width" json:"input_width,omitempty"`
	Retries    int    `yaml:"retries" json:"retries,omitempty"`
}

// GenerationSpec is one deployable model set.
type GenerationSpec struct {
	Name        string                  `yaml:"name" json:"name"`
	Schema      string                  `yaml:"schema" json:"schema"`
	Encoding    string                  `yaml:"encoding" json:"encoding"`
	RoutePrefix string                  `yaml:"route_prefix" json:"route_prefix"`
	Metadata    string                  `yaml:"metadata" json:"metadata,omitempty"`
	Models      map[string]ArtifactSpec `yaml:"models" json:"models"`
}

type Manifest struct {
	Generations []GenerationSpec `yaml:"generations" json:"generations"`
}

// DefaultMetadataFile holds training metrics written next to the artifacts.
const DefaultMetadataFile = "model_metadata.json"

// DefaultArtifactFiles are the artifact names used when no manifest exists.
var DefaultArtifactFiles = map[string]string{
	"yield_kg":             "trained_yield_model_RF.json",
	"fine_grade_pct":       "trained_grade_model_fine_grade_pct.json",
	"premium_grade_pct":    "trained_grade_model_premium_grade_pct.json",
	"commercial_grade_pct": "trained_grade_model_commercial_grade_pct.json",
}

// DefaultManifest describes a single generation served at the root, read
// from the default artifact files.
func DefaultManifest(schema, encoding string) Manifest {
	models := make(map[string]ArtifactSpec, len(DefaultArtifactFiles))
	for target, file := range DefaultArtifactFiles {
		models[target] = ArtifactSpec{Type: "file", File: file}
	}
	return Manifest{Generations: []GenerationSpec{{
		Name:        schema,
		Schema:      schema,
		Encoding:    encoding,
		RoutePrefix: "/",
		Models:      models,
	}}}
}

// LoadManifest reads a yaml manifest. An empty path or a missing file
// yields fallback.
func LoadManifest(path string, fallback Manifest) (Manifest, error) {
	if path == "" {
		return fallback, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate checks names and prefixes. Artifact content is checked at load.
func (m Manifest) Validate() error {
	if len(m.Generations) == 0 {
		return errors.New("no model generations configured")
	}
	names := map[string]struct{}{}
	prefixes := map[string]string{}
	for i := range m.Generations {
		g := &m.Generations[i]
		if g.Name == "" {
			return fmt.Errorf("generation %d has no name", i)
		}
		if _, dup := names[g.Name]; dup {
			return fmt.Errorf("duplicate generation %s", g.Name)
		}
		names[g.Name] = struct{}{}
		if g.Schema == "" {
			g.Schema = g.Name
		}
		g.RoutePrefix = CleanPrefix(g.RoutePrefix)
		if other, dup := prefixes[g.RoutePrefix]; dup {
			return fmt.Errorf("generations %s and %s share route prefix %s", other, g.Name, g.RoutePrefix)
		}
		prefixes[g.RoutePrefix] = g.Name
	}
	return nil
}

// CleanPrefix normalizes a route prefix to "/" or "/segment" without a
// trailing slash.
func CleanPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	return "/" + prefix
}
