package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcphost/internal/formatting"
	"mcphost/pkg/logging"
)

var toolsFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List every currently visible tool without entering the shell",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "console", "output format: console|json|yaml|table")
}

func runTools(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	rt, err := buildRuntime(cmd.Context(), configPathFlag)
	if err != nil {
		return fmt.Errorf("starting mcphost: %w", err)
	}
	defer rt.shutdown()

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: formatting.OutputFormat(toolsFormat)})

	var rows []formatting.ToolRow
	for _, t := range rt.manager.GetTools() {
		rows = append(rows, formatting.ToolRow{
			Exposed:     t.Exposed,
			Plugin:      t.Plugin,
			Local:       t.Local,
			Description: t.Export.Description,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTools(rows))
	return nil
}
