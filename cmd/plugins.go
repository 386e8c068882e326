package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mcphost/internal/formatting"
	"mcphost/pkg/logging"
)

var pluginsFormat string

var pluginsCmd = &cobra.Command{
	Use:   "plugins [list|enable|disable] [name]",
	Short: "Inspect or toggle loaded plugins without entering the shell",
	Args:  cobra.ArbitraryArgs,
	RunE:  runPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
	pluginsCmd.Flags().StringVar(&pluginsFormat, "format", "console", "output format for \"plugins list\": console|json|yaml|table")
}

func runPlugins(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	rt, err := buildRuntime(cmd.Context(), configPathFlag)
	if err != nil {
		return fmt.Errorf("starting mcphost: %w", err)
	}
	defer rt.shutdown()

	if len(args) == 0 || args[0] == "list" {
		out, err := formatPluginsList(rt)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	line := "plugins " + strings.Join(args, " ")
	result, err := rt.registry.Resolve(cmd.Context(), line, rt)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	return nil
}

func formatPluginsList(rt *runtime) (string, error) {
	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: formatting.OutputFormat(pluginsFormat)})

	var rows []formatting.PluginRow
	for _, name := range rt.manager.Names() {
		inst, err := rt.manager.Get(name)
		if err != nil {
			continue
		}
		rows = append(rows, formatting.PluginRow{
			Name:        inst.Name(),
			Enabled:     inst.Enabled(),
			Indicator:   string(inst.Plugin().Status().Indicator),
			StatusText:  inst.Plugin().Status().Text,
			Description: inst.Plugin().Manifest().Description,
		})
	}
	return formatter.FormatPlugins(rows), nil
}
