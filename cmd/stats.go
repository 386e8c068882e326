package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcphost/internal/formatting"
	"mcphost/pkg/logging"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregated tool-call statistics without entering the shell",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsFormat, "format", "console", "output format: console|json|yaml|table")
}

func runStats(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	rt, err := buildRuntime(cmd.Context(), configPathFlag)
	if err != nil {
		return fmt.Errorf("starting mcphost: %w", err)
	}
	defer rt.shutdown()

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: formatting.OutputFormat(statsFormat)})

	snapshot := rt.telemetry.Stats()
	var rows []formatting.StatRow
	for tool, s := range snapshot.PerTool {
		avg := 0.0
		if s.Calls > 0 {
			avg = float64(s.TotalDurationMs) / float64(s.Calls)
		}
		rows = append(rows, formatting.StatRow{
			Tool:          tool,
			Calls:         s.Calls,
			Success:       s.Success,
			Errors:        s.Errors,
			AvgDurationMs: avg,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatStats(rows))
	return nil
}
