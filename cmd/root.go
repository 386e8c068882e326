package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes (spec §6): 0 on clean shutdown, 1 on fatal initialization
// failure.
const (
	exitSuccess = 0
	exitError   = 1
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "mcphost",
	Short: "A universal host for Model Context Protocol servers",
	Long: `mcphost aggregates plugin-contributed CLI verbs and MCP tools behind
one runtime, exposes them over both a process-stdio and an HTTP/SSE MCP
transport, and can itself proxy an external MCP server's tools into the
aggregate.

Running mcphost with no subcommand starts the interactive shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config-path", "", "custom config directory (default: <home>/.mcp-cli)")
}

// SetVersion sets the version reported by `mcphost version`, injected by
// main() at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command, translating a returned error into the
// process's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mcphost: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
