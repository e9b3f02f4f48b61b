// Package config loads the model document and the service settings. The model
// document is a single YAML or JSON file holding the six model sections plus
// the KPI and insight-rule configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfjson "github.com/knadh/koanf/parsers/json"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/driftlab/stockflow/internal/model"
)

// ModelFileName is the default model document name.
const ModelFileName = "stockflow.yaml"

// ModelFileNameAlt is the alternate model document name.
const ModelFileNameAlt = "stockflow.yml"

// envPrefix scopes environment overrides, e.g. STOCKFLOW_SIMULATION_STEPS.
const envPrefix = "STOCKFLOW_"

// LoadModel loads a model document from the given path. The parser is chosen
// by extension: .json parses as JSON, anything else as YAML. Environment
// variables prefixed STOCKFLOW_ override document values, with underscores
// mapping to section separators.
func LoadModel(path string) (*model.Model, error) {
	k := koanf.New(".")

	parser := pickParser(path)
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading model document %s: %w", path, err)
	}

	// Only the first underscore separates the section, so
	// STOCKFLOW_SIMULATION_T_END maps to simulation.t_end.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	m := model.New()
	if err := k.Unmarshal("", m); err != nil {
		return nil, fmt.Errorf("decoding model document %s: %w", path, err)
	}

	if errs := m.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("model document %s is invalid:\n  %s", path, strings.Join(errs, "\n  "))
	}

	return m, nil
}

func pickParser(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return koanfjson.Parser()
	}
	return koanfyaml.Parser()
}

// FindModelFile looks for the default model document in the given directory.
// Returns an empty string when neither name exists.
func FindModelFile(dir string) string {
	for _, name := range []string{ModelFileName, ModelFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
