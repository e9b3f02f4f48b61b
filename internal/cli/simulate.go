package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/driftlab/stockflow/internal/config"
	"github.com/driftlab/stockflow/internal/sim"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	var (
		scenario     string
		allScenarios bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulation against the model document",
		Long: `Run a simulation against the model document.

By default the baseline scenario is simulated and the final state values,
KPIs, and insights are printed as tables. Use --scenario to pick a named
scenario, --all to run every scenario, or --json for machine-readable
output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := GetSettings(cmd.Context())
			logger := GetLogger(cmd.Context())

			modelPath, err := resolveModelPath(settings.ModelPath)
			if err != nil {
				return err
			}
			m, err := config.LoadModel(modelPath)
			if err != nil {
				return err
			}
			system, err := sim.CompileModel(m, logger)
			if err != nil {
				return err
			}

			if allScenarios {
				results, err := system.SimulateAllScenarios(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, results)
				}
				names := make([]string, 0, len(results))
				for name := range results {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "Scenario: %s\n", name)
					renderRun(cmd, system, results[name])
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			}

			result, err := system.Simulate(sim.Options{Scenario: scenario})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, map[string]any{
					"result":   result,
					"kpis":     system.EvaluateKPIs(result),
					"insights": system.GenerateInsights(result),
				})
			}
			renderRun(cmd, system, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenario, "scenario", "s", "", "Scenario to simulate (default: baseline)")
	cmd.Flags().BoolVar(&allScenarios, "all", false, "Simulate every scenario")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of tables")
	return cmd
}

func renderRun(cmd *cobra.Command, system *sim.System, result *sim.Result) {
	out := cmd.OutOrStdout()
	final := len(result.T) - 1

	symbols := make([]string, 0, len(result.States))
	for sym := range result.States {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"State", "Initial", "Final", "Change"})
	for _, sym := range symbols {
		initial := result.States[sym][0]
		last := result.States[sym][final]
		t.AppendRow(table.Row{sym, fmt.Sprintf("%.4f", initial), fmt.Sprintf("%.4f", last), fmt.Sprintf("%+.4f", last-initial)})
	}
	t.Render()

	kpis := system.EvaluateKPIs(result)
	if len(kpis) > 0 {
		kpiIDs := make([]string, 0, len(kpis))
		for id := range kpis {
			kpiIDs = append(kpiIDs, id)
		}
		sort.Strings(kpiIDs)

		kt := table.NewWriter()
		kt.SetOutputMirror(out)
		kt.SetStyle(table.StyleLight)
		kt.AppendHeader(table.Row{"KPI", "Value", "Change %", "Status"})
		for _, id := range kpiIDs {
			kpi := kpis[id]
			if kpi.Error != "" {
				kt.AppendRow(table.Row{id, "-", "-", kpi.Status + " (" + kpi.Error + ")"})
				continue
			}
			kt.AppendRow(table.Row{id, fmt.Sprintf("%.4f", kpi.Value), fmt.Sprintf("%+.1f", kpi.Change), kpi.Status})
		}
		kt.Render()
	}

	for _, insight := range system.GenerateInsights(result) {
		fmt.Fprintf(out, "[%s] %s: %s\n", insight.Type, insight.Title, insight.Description)
	}
}

func printJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
