// Package cmd wires the runtime's subsystems together behind a cobra CLI:
// config load, the Telemetry Store, the Plugin Manager (with every
// compiled-in module registered), the Tool Dispatcher, the Command
// Registry, and the MCP server.
//
// Grounded on the teacher's cmd/serve.go and cmd/standalone.go: a single
// constructor function builds the application object the chosen
// subcommand drives, and serve/agent-equivalent modes share it rather
// than duplicating setup.
package cmd

import (
	"context"
	"fmt"
	"os"

	"mcphost/internal/command"
	"mcphost/internal/config"
	"mcphost/internal/dispatcher"
	"mcphost/internal/mcpserver"
	"mcphost/internal/plugin"
	"mcphost/internal/pluginapi"
	"mcphost/internal/proxy"
	"mcphost/internal/telemetry"
	"mcphost/pkg/logging"

	demoecho "mcphost/plugins/echo"
)

func init() {
	plugin.RegisterModule(proxy.ModuleSpecifier, func() pluginapi.Plugin { return proxy.New() })
	plugin.RegisterModule(demoecho.ModuleSpecifier, func() pluginapi.Plugin { return demoecho.New() })
}

// runtime bundles every long-lived subsystem, built once per process.
type runtime struct {
	cfg        config.Config
	telemetry  *telemetry.Store
	manager    *plugin.Manager
	dispatcher *dispatcher.Dispatcher
	registry   *command.Registry
	mcpSrv     *mcpserver.Server
}

func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	configDir := configPath
	if configDir == "" {
		dir, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving config directory: %w", err)
		}
		configDir = dir
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	stateDir, err := telemetry.DefaultStateDir()
	if err != nil {
		return nil, fmt.Errorf("resolving telemetry state directory: %w", err)
	}
	store, err := telemetry.New(stateDir)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry store: %w", err)
	}

	manager := plugin.NewManager()
	if err := manager.LoadAll(ctx, cfg.Plugins); err != nil {
		logging.Warn("Runtime", "one or more plugins failed to load: %v", err)
	}

	disp := dispatcher.New(manager.ToolLookup, store)

	registry := command.NewRegistry()
	pluginView := plugin.NewCommandView(manager)
	telemetryView := telemetry.NewCommandView(store)

	mcpSrv := mcpserver.New(manager, disp, store)

	// rt is addressed by the exit hook below before it is fully populated;
	// the hook only runs the shutdown sequence once a user actually types
	// exit/quit, by which point buildRuntime has long since returned.
	rt := &runtime{}

	deps := command.Deps{
		Plugins:    pluginView,
		Dispatcher: disp,
		Telemetry:  telemetryView,
		Server:     mcpServerAdapter{mcpSrv},
		Exit: func(code int) {
			rt.shutdown()
			os.Exit(code)
		},
	}
	command.RegisterBuiltins(registry, deps)
	setPluginVerbs := func() {
		cmds := pluginView.CliCommands()
		for _, c := range cmds {
			if registry.RefusedCollision(c.Export.Name) {
				logging.Warn("CommandRegistry", "plugin %s verb %q collides with a built-in; ignored", c.Plugin, c.Export.Name)
			}
		}
		registry.SetPluginVerbs(cmds)
	}
	setPluginVerbs()
	manager.Subscribe(func(plugin.Event) { setPluginVerbs() })

	rt.cfg = cfg
	rt.telemetry = store
	rt.manager = manager
	rt.dispatcher = disp
	rt.registry = registry
	rt.mcpSrv = mcpSrv
	return rt, nil
}

// mcpServerAdapter exposes the subset of *mcpserver.Server the `serve`/
// `stop` built-ins drive: starting/stopping the SSE transport from the
// interactive shell without also tearing down a parent `serve` process.
type mcpServerAdapter struct {
	s *mcpserver.Server
}

func (a mcpServerAdapter) Serve(port int) error {
	if port <= 0 {
		port = defaultSSEPort
	}
	return a.s.ServeSSE(context.Background(), defaultSSEHost, port)
}

func (a mcpServerAdapter) Stop() error {
	return a.s.Stop()
}

func (r *runtime) shutdown() {
	r.manager.Shutdown()
	if err := r.mcpSrv.Stop(); err != nil {
		logging.Warn("Runtime", "error stopping MCP server: %v", err)
	}
	r.telemetry.Shutdown()
}
