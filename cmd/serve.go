package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcphost/pkg/logging"
)

const (
	defaultSSEHost = "0.0.0.0"
	defaultSSEPort = 3000
	spinnerInterval = 100 * time.Millisecond
)

var (
	serveMode string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server without the interactive shell",
	Long: `serve loads the configured plugins and exposes their tools over one
MCP transport, then blocks until interrupted.

--mode stdio speaks line-delimited JSON-RPC over the process's own
standard input/output, for direct use as an MCP client's child process.
--mode sse (the default) starts the HTTP/SSE transport on --port.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveMode, "mode", "sse", "transport to serve: stdio|sse")
	serveCmd.Flags().IntVar(&servePort, "port", defaultSSEPort, "port for the sse transport")
}

func runServe(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelInfo, os.Stderr)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, configPathFlag)
	if err != nil {
		return fmt.Errorf("starting mcphost: %w", err)
	}
	defer rt.shutdown()

	switch serveMode {
	case "stdio":
		return rt.mcpSrv.ServeStdio(ctx)
	case "sse":
		port := servePort
		if port <= 0 {
			port = rt.cfg.MCP.Port
		}
		if err := rt.mcpSrv.ServeSSE(ctx, defaultSSEHost, port); err != nil {
			return fmt.Errorf("starting sse transport: %w", err)
		}
		logging.Info("Serve", "mcphost serving on %s:%d, press Ctrl-C to stop", defaultSSEHost, port)
		<-ctx.Done()
		return nil
	default:
		return fmt.Errorf("unknown --mode %q, expected stdio or sse", serveMode)
	}
}
