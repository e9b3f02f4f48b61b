package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlab/stockflow/internal/config"
	"github.com/driftlab/stockflow/internal/patch"
	"github.com/driftlab/stockflow/internal/sim"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [draft.json]",
		Short: "Validate the model document, optionally with a draft applied",
		Long: `Validate the model document, optionally with a draft applied.

Without arguments the model document is loaded and every equation, KPI
formula, and insight condition is compiled. With a draft file the draft's
changes are merged onto the document first and the effective model is
validated instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := GetSettings(cmd.Context())
			logger := GetLogger(cmd.Context())
			out := cmd.OutOrStdout()

			modelPath, err := resolveModelPath(settings.ModelPath)
			if err != nil {
				return err
			}
			m, err := config.LoadModel(modelPath)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read draft file: %w", err)
				}
				var draft patch.Draft
				if err := json.Unmarshal(data, &draft); err != nil {
					return fmt.Errorf("failed to decode draft file %s: %w", args[0], err)
				}

				result := patch.NewMerger(m, logger).Merge(&draft)
				for _, warning := range result.Warnings {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
				for _, skipped := range result.SkippedChanges {
					fmt.Fprintf(out, "skipped: %s\n", skipped.Error)
				}
				if !result.Success {
					for _, e := range result.Errors {
						fmt.Fprintf(out, "error: %s\n", e)
					}
					return fmt.Errorf("draft produces an invalid model")
				}
				m = result.EffectiveModel
				fmt.Fprintf(out, "draft merged: %d applied, %d skipped\n",
					len(result.AppliedChanges), len(result.SkippedChanges))
			}

			if _, err := sim.CompileModel(m, logger); err != nil {
				return err
			}

			fmt.Fprintf(out, "%s is valid: %d states, %d parameters, %d relations, %d scenarios\n",
				modelPath, len(m.States), len(m.Parameters), len(m.Relations), len(m.Scenarios))
			return nil
		},
	}
	return cmd
}
