// Package cli provides the stockflow command-line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/driftlab/stockflow/internal/ai"
)

// Settings holds the service-level configuration: where the model document
// and draft store live and how the server runs. The model document itself is
// loaded separately.
type Settings struct {
	ModelPath string    `koanf:"model_path"`
	StorePath string    `koanf:"store_path"`
	Port      int       `koanf:"port"`
	Watch     bool      `koanf:"watch"`
	Verbose   bool      `koanf:"verbose"`
	AI        ai.Config `koanf:"ai"`
}

// Default settings values.
const (
	DefaultModelPath = "stockflow.yaml"
	DefaultStorePath = ".stockflow/drafts.db"
	DefaultPort      = 8080
)

// settingsFileNames are the auto-discovered settings file names, checked in
// order when no --config flag is given.
var settingsFileNames = []string{"stockflow.server.yaml", "stockflow.server.yml"}

// LoadSettings loads settings with the usual precedence: defaults, then the
// settings file, then STOCKFLOW_* environment variables, then explicitly set
// flags.
func LoadSettings(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"model_path": DefaultModelPath,
		"store_path": DefaultStorePath,
		"port":       DefaultPort,
		"watch":      false,
		"verbose":    false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		for _, name := range settingsFileNames {
			if _, err := os.Stat(name); err == nil {
				cfgFile = name
				break
			}
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading settings file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider("STOCKFLOW_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "STOCKFLOW_"))
		// Top-level keys are flat snake_case; only the ai section nests,
		// so STOCKFLOW_AI_BASE_URL maps to ai.base_url.
		if rest, ok := strings.CutPrefix(key, "ai_"); ok {
			return "ai." + rest
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// --model and --store are short flag names for longer config keys.
			switch key {
			case "model":
				key = "model_path"
			case "store":
				key = "store_path"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	return &settings, nil
}
