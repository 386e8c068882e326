package cmd

import (
	"fmt"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"mcphost/internal/repl"
	"mcphost/pkg/logging"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start the interactive shell (default)",
	RunE:  runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	logCh := logging.InitForTUI(logging.LevelInfo)
	defer logging.CloseTUIChannel()

	s := spinner.New(spinner.CharSets[11], spinnerInterval)
	s.Suffix = " loading plugins..."
	s.Start()
	rt, err := buildRuntime(cmd.Context(), configPathFlag)
	s.Stop()
	if err != nil {
		return fmt.Errorf("starting mcphost: %w", err)
	}
	defer rt.shutdown()

	shell := repl.New(rt.registry, rt).WithLogChannel(logCh)
	return shell.Run(cmd.Context())
}
