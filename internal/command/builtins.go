package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mcphost/internal/pluginapi"
)

// PluginView is the slice of the Plugin Manager's API the built-in verbs
// need. It is declared here (rather than imported from package plugin)
// so command stays usable in isolation and in tests with a fake.
type PluginView interface {
	Names() []string
	Get(name string) (PluginInfo, error)
	EnablePlugin(name string) error
	DisablePlugin(name string) error
	EnableTool(plugin, tool string) error
	DisableTool(plugin, tool string) error
	Tools() []ToolInfo
}

// PluginInfo is a read-only summary of one loaded plugin instance.
type PluginInfo struct {
	Name    string
	Enabled bool
	Status  pluginapi.Status
	Help    pluginapi.Help
}

// ToolInfo is a read-only summary of one visible tool.
type ToolInfo struct {
	Plugin  string
	Local   string
	Exposed string
}

// Dispatcher invokes a fully-qualified tool by name, used by the `call`
// built-in. Its result is already stringified the way a handler's return
// value would be for the MCP transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID, toolName string, params map[string]any) (string, error)
}

// Telemetry is the slice of the telemetry store the `logs`/`stats`
// built-ins need.
type Telemetry interface {
	Tail(n int) []string
	SubscribeUI(on bool)
	ClearHistory()
	StatsSummary(tool string) string
	ResetStats()
}

// Server lets `serve`/`stop` control the SSE listener from the shell.
type Server interface {
	Serve(port int) error
	Stop() error
}

// Deps wires the runtime subsystems the built-ins that cross a package
// boundary need. Every field may be nil; built-ins report a clear error
// rather than panicking when an unwired dependency is invoked.
type Deps struct {
	Plugins    PluginView
	Dispatcher Dispatcher
	Telemetry  Telemetry
	Server     Server
	Exit       func(code int)
}

// RegisterBuiltins installs the runtime's fixed verb set (spec §4.7) onto r.
func RegisterBuiltins(r *Registry, deps Deps) {
	r.RegisterBuiltin(helpBuiltin(r))
	r.RegisterBuiltin(pluginsBuiltin(deps))
	r.RegisterBuiltin(toolsBuiltin(deps))
	r.RegisterBuiltin(callBuiltin(deps))
	r.RegisterBuiltin(logsBuiltin(deps))
	r.RegisterBuiltin(statsBuiltin(deps))
	r.RegisterBuiltin(serveBuiltin(deps))
	r.RegisterBuiltin(stopBuiltin(deps))
	r.RegisterBuiltin(clearBuiltin())
	r.RegisterBuiltin(exitBuiltin(deps))
}

func ok(output string) (pluginapi.Result, error) {
	return pluginapi.Result{Output: output, Success: true}, nil
}

func fail(format string, args ...any) (pluginapi.Result, error) {
	return pluginapi.Result{Success: false}, fmt.Errorf(format, args...)
}

func helpBuiltin(r *Registry) *Builtin {
	return &Builtin{
		Name:        "help",
		Description: "list available verbs, or describe one",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if len(args) > 0 {
				verb := strings.ToLower(args[0])
				for _, b := range r.Builtins() {
					if strings.ToLower(b.Name) == verb {
						return ok(fmt.Sprintf("%s: %s", b.Name, b.Description))
					}
				}
				return ok(fmt.Sprintf("no help for %q", args[0]))
			}
			var sb strings.Builder
			sb.WriteString("built-in verbs:\n")
			for _, b := range r.Builtins() {
				fmt.Fprintf(&sb, "  %-10s %s\n", b.Name, b.Description)
			}
			verbs := r.Verbs()
			sort.Strings(verbs)
			sb.WriteString("all resolvable verbs: " + strings.Join(verbs, ", "))
			return ok(sb.String())
		},
	}
}

func pluginsBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "plugins",
		Description: "plugins [list|enable|disable] [name]",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Plugins == nil {
				return fail("plugin manager not wired")
			}
			sub := "list"
			if len(args) > 0 {
				sub = args[0]
			}
			switch sub {
			case "list":
				var sb strings.Builder
				for _, name := range deps.Plugins.Names() {
					info, err := deps.Plugins.Get(name)
					if err != nil {
						continue
					}
					state := "enabled"
					if !info.Enabled {
						state = "disabled"
					}
					fmt.Fprintf(&sb, "%-20s %-10s %s (%s)\n", info.Name, state, info.Status.Indicator, info.Status.Text)
				}
				return ok(sb.String())
			case "enable":
				if len(args) < 2 {
					return fail("usage: plugins enable <name>")
				}
				if err := deps.Plugins.EnablePlugin(args[1]); err != nil {
					return fail("%v", err)
				}
				return ok(fmt.Sprintf("enabled %s", args[1]))
			case "disable":
				if len(args) < 2 {
					return fail("usage: plugins disable <name>")
				}
				if err := deps.Plugins.DisablePlugin(args[1]); err != nil {
					return fail("%v", err)
				}
				return ok(fmt.Sprintf("disabled %s", args[1]))
			default:
				return fail("usage: plugins [list|enable|disable] [name]")
			}
		},
	}
}

func toolsBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "tools",
		Description: "tools [list|enable|disable] [plugin] [tool]",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Plugins == nil {
				return fail("plugin manager not wired")
			}
			sub := "list"
			if len(args) > 0 {
				sub = args[0]
			}
			switch sub {
			case "list":
				var sb strings.Builder
				for _, t := range deps.Plugins.Tools() {
					fmt.Fprintf(&sb, "%s\n", t.Exposed)
				}
				return ok(sb.String())
			case "enable", "disable":
				if len(args) < 3 {
					return fail("usage: tools %s <plugin> <tool>", sub)
				}
				var err error
				if sub == "enable" {
					err = deps.Plugins.EnableTool(args[1], args[2])
				} else {
					err = deps.Plugins.DisableTool(args[1], args[2])
				}
				if err != nil {
					return fail("%v", err)
				}
				return ok(fmt.Sprintf("%sd %s_%s", sub, args[1], args[2]))
			default:
				return fail("usage: tools [list|enable|disable] [plugin] [tool]")
			}
		},
	}
}

func callBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "call",
		Description: "call <plugin> <tool> [key=value ...]",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Dispatcher == nil {
				return fail("dispatcher not wired")
			}
			if len(args) < 2 {
				return fail("usage: call <plugin> <tool> [key=value ...]")
			}
			toolName := args[0] + "_" + args[1]
			params := make(map[string]any)
			for _, kv := range args[2:] {
				k, v, found := strings.Cut(kv, "=")
				if !found {
					return fail("malformed argument %q, expected key=value", kv)
				}
				var decoded any
				if err := json.Unmarshal([]byte(v), &decoded); err == nil {
					params[k] = decoded
				} else {
					params[k] = v
				}
			}
			out, err := deps.Dispatcher.Dispatch(ctx, "cli", toolName, params)
			if err != nil {
				return fail("%v", err)
			}
			return ok(out)
		},
	}
}

func logsBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "logs",
		Description: "logs [on|off|clear|<count>]",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Telemetry == nil {
				return fail("telemetry store not wired")
			}
			if len(args) == 0 {
				return fail("usage: logs [on|off|clear|<count>]")
			}
			switch args[0] {
			case "on":
				deps.Telemetry.SubscribeUI(true)
				return ok("log streaming attached")
			case "off":
				deps.Telemetry.SubscribeUI(false)
				return ok("log streaming detached")
			case "clear":
				deps.Telemetry.ClearHistory()
				return ok("history cleared")
			default:
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fail("usage: logs [on|off|clear|<count>]")
				}
				return ok(strings.Join(deps.Telemetry.Tail(n), "\n"))
			}
		},
	}
}

func statsBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "stats",
		Description: "stats [<tool>|reset]",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Telemetry == nil {
				return fail("telemetry store not wired")
			}
			if len(args) > 0 && args[0] == "reset" {
				deps.Telemetry.ResetStats()
				return ok("stats reset")
			}
			tool := ""
			if len(args) > 0 {
				tool = args[0]
			}
			return ok(deps.Telemetry.StatsSummary(tool))
		},
	}
}

func serveBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "serve",
		Description: "serve [port]",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Server == nil {
				return fail("server not wired")
			}
			port := 0
			if len(args) > 0 {
				p, err := strconv.Atoi(args[0])
				if err != nil {
					return fail("invalid port %q", args[0])
				}
				port = p
			}
			if err := deps.Server.Serve(port); err != nil {
				return fail("%v", err)
			}
			return ok("serving")
		},
	}
}

func stopBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "stop",
		Description: "stop the SSE listener",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Server == nil {
				return fail("server not wired")
			}
			if err := deps.Server.Stop(); err != nil {
				return fail("%v", err)
			}
			return ok("stopped")
		},
	}
}

func clearBuiltin() *Builtin {
	return &Builtin{
		Name:        "clear",
		Description: "clear the screen",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			return ok("\033[2J\033[H")
		},
	}
}

func exitBuiltin(deps Deps) *Builtin {
	return &Builtin{
		Name:        "exit",
		Aliases:     []string{"quit"},
		Description: "exit the shell",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			if deps.Exit != nil {
				deps.Exit(0)
			}
			return ok("bye")
		},
	}
}
