package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftlab/stockflow/internal/ai"
	"github.com/driftlab/stockflow/internal/config"
	"github.com/driftlab/stockflow/internal/factory"
	"github.com/driftlab/stockflow/internal/server"
	"github.com/driftlab/stockflow/internal/store"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var withAI bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

The server loads the model document, compiles it, and exposes the draft,
simulation, and graph endpoints under /api. With --watch the document is
reloaded whenever it changes on disk. With --ai, patch generation through a
local Ollama instance is enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := GetSettings(cmd.Context())
			logger := GetLogger(cmd.Context())

			modelPath, err := resolveModelPath(settings.ModelPath)
			if err != nil {
				return err
			}

			f := factory.New(modelPath, logger)
			if err := f.Init(); err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}

			storeDir := filepath.Dir(settings.StorePath)
			if storeDir != "." && storeDir != "" {
				if err := os.MkdirAll(storeDir, 0750); err != nil {
					return fmt.Errorf("failed to create store directory: %w", err)
				}
			}
			st, err := store.Open(settings.StorePath, logger)
			if err != nil {
				return fmt.Errorf("failed to open draft store: %w", err)
			}
			defer st.Close()

			var generator *ai.Generator
			if withAI {
				generator = ai.NewGenerator(ai.NewClient(settings.AI))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{
				Factory:   f,
				Store:     st,
				Generator: generator,
				Port:      settings.Port,
				Watch:     settings.Watch,
				Logger:    logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().BoolVar(&withAI, "ai", false, "Enable AI patch generation via Ollama")
	return cmd
}

// resolveModelPath checks that the configured model document exists, falling
// back to auto-discovery in the working directory when the default name is
// configured but absent.
func resolveModelPath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if path == DefaultModelPath {
		if found := config.FindModelFile("."); found != "" {
			return found, nil
		}
	}
	return "", fmt.Errorf("model document not found: %s", path)
}
