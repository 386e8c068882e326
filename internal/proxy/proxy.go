package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphost/internal/pluginapi"
)

// Reconnect backoff after the child unexpectedly exits, grounded on the
// teacher's internal/services/mcpserver/service.go consecutive-failure
// backoff (InitialBackoff/MaxBackoff/BackoffMultiplier), scaled down for a
// local child process instead of a remote server.
const (
	initialReconnectBackoff = time.Second
	maxReconnectBackoff     = time.Minute
	reconnectBackoffFactor  = 2.0
)

// exitNotifier is implemented by child clients that can report their own
// unexpected exit (currently only StdioChildClient; an SSE child has no
// subprocess to watch).
type exitNotifier interface {
	SetOnExit(cb func(error))
}

// ModuleSpecifier is the config "package" value that selects this plugin.
// cmd/runtime.go registers it against the Plugin Manager's loader registry
// with plugin.RegisterModule(ModuleSpecifier, func() pluginapi.Plugin { return proxy.New() }).
const ModuleSpecifier = "mcphost/proxy"

// childFactory builds a ChildClient from a validated config; overridable
// in tests to substitute a fake child.
type childFactory func(cfg childConfig) ChildClient

type childConfig struct {
	command     string
	args        []string
	env         map[string]string
	url         string
	autoConnect bool
}

// Plugin is one proxy instance: it owns at most one live child connection
// and re-exports that child's tools as native ToolExports.
type Plugin struct {
	mu             sync.RWMutex
	cfg            childConfig
	factory        childFactory
	child          ChildClient
	tools          []mcp.Tool
	lastErr        error
	registeredName string
	log            func(string)
	notify         func()

	stopOnce            sync.Once
	stopCh              chan struct{}
	failureMu           sync.Mutex
	consecutiveFailures int
}

// New creates an unconfigured proxy plugin instance. Init supplies config.
func New() *Plugin {
	return &Plugin{factory: defaultChildFactory, stopCh: make(chan struct{})}
}

func defaultChildFactory(cfg childConfig) ChildClient {
	if cfg.url != "" {
		return NewSSEChildClient(cfg.url)
	}
	return NewStdioChildClient(cfg.command, cfg.args, cfg.env)
}

func (p *Plugin) Manifest() pluginapi.Manifest {
	return pluginapi.Manifest{Name: "proxy", Version: "1.0.0", Description: "re-exports an external MCP server's tools"}
}

func (p *Plugin) Init(ctx context.Context, pctx *pluginapi.Context) error {
	p.registeredName = pctx.RegisteredName()
	p.log = pctx.Log
	p.notify = pctx.NotifyStateChange

	cfg, err := parseConfig(pctx.Config())
	if err != nil {
		return &pluginapi.InvalidPluginError{Name: p.registeredName, Reason: err.Error()}
	}
	p.cfg = cfg

	if cfg.autoConnect {
		if err := p.connect(ctx); err != nil {
			p.mu.Lock()
			p.lastErr = err
			p.mu.Unlock()
			p.log(fmt.Sprintf("autoConnect failed: %v", err))
		}
	}
	return nil
}

func parseConfig(raw map[string]any) (childConfig, error) {
	cfg := childConfig{}
	command, hasCommand := raw["command"].(string)
	url, hasURL := raw["url"].(string)
	hasCommand = hasCommand && command != ""
	hasURL = hasURL && url != ""

	if hasCommand == hasURL {
		return cfg, fmt.Errorf("exactly one of command or url must be set")
	}

	cfg.command = command
	cfg.url = url

	if argsRaw, ok := raw["args"].([]any); ok {
		for _, a := range argsRaw {
			if s, ok := a.(string); ok {
				cfg.args = append(cfg.args, s)
			}
		}
	}
	if envRaw, ok := raw["env"].(map[string]any); ok {
		cfg.env = make(map[string]string, len(envRaw))
		for k, v := range envRaw {
			if s, ok := v.(string); ok {
				cfg.env[k] = s
			}
		}
	}
	if autoConnect, ok := raw["autoConnect"].(bool); ok {
		cfg.autoConnect = autoConnect
	}
	return cfg, nil
}

func (p *Plugin) Destroy() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	return p.disconnect()
}

// connect establishes the child transport, performs the MCP handshake,
// and caches its tool list. Returns an error if already connected.
func (p *Plugin) connect(ctx context.Context) error {
	p.mu.Lock()
	if p.child != nil {
		p.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	factory := p.factory
	cfg := p.cfg
	p.mu.Unlock()

	child := factory(cfg)
	if notifier, ok := child.(exitNotifier); ok {
		notifier.SetOnExit(p.handleChildExit)
	}
	if err := child.Initialize(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	tools, err := child.ListTools(ctx)
	if err != nil {
		_ = child.Close()
		return fmt.Errorf("listing tools: %w", err)
	}

	p.mu.Lock()
	p.child = child
	p.tools = tools
	p.lastErr = nil
	p.mu.Unlock()

	if p.notify != nil {
		p.notify()
	}
	return nil
}

// disconnect closes the child connection and clears the cached tool list.
// Idempotent.
func (p *Plugin) disconnect() error {
	p.mu.Lock()
	child := p.child
	p.child = nil
	p.tools = nil
	p.mu.Unlock()

	if child == nil {
		return nil
	}
	err := child.Close()
	if p.notify != nil {
		p.notify()
	}
	return err
}

// restart disconnects (if connected) and reconnects.
func (p *Plugin) restart(ctx context.Context) error {
	_ = p.disconnect()
	return p.connect(ctx)
}

// handleChildExit is the StdioChildClient exit callback: it marks the
// plugin disconnected, records a ChildExitedError as lastErr, notifies the
// Plugin Manager so the dead tools drop out of tools/list, and - if this
// instance was configured to auto-connect - starts a backoff reconnect
// loop rather than waiting for the user to run `connect` by hand.
func (p *Plugin) handleChildExit(err error) {
	p.mu.Lock()
	if p.child == nil {
		// Already disconnected via an explicit disconnect/restart; nothing
		// to report.
		p.mu.Unlock()
		return
	}
	p.child = nil
	p.tools = nil
	p.lastErr = &pluginapi.ChildExitedError{Plugin: p.registeredName, Err: err}
	autoConnect := p.cfg.autoConnect
	p.mu.Unlock()

	if p.log != nil {
		p.log(fmt.Sprintf("child exited: %v", err))
	}
	if p.notify != nil {
		p.notify()
	}
	if autoConnect {
		go p.reconnectWithBackoff()
	}
}

// reconnectWithBackoff retries connect with exponential backoff until it
// succeeds, the instance is destroyed, or a concurrent manual
// connect/restart beats it to the punch.
func (p *Plugin) reconnectWithBackoff() {
	delay := initialReconnectBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case <-time.After(delay):
		}

		p.mu.RLock()
		alreadyConnected := p.child != nil
		p.mu.RUnlock()
		if alreadyConnected {
			return
		}

		if err := p.connect(context.Background()); err == nil {
			p.failureMu.Lock()
			p.consecutiveFailures = 0
			p.failureMu.Unlock()
			return
		}

		p.failureMu.Lock()
		p.consecutiveFailures++
		p.failureMu.Unlock()

		delay = time.Duration(float64(delay) * reconnectBackoffFactor)
		if delay > maxReconnectBackoff {
			delay = maxReconnectBackoff
		}
	}
}

func (p *Plugin) Exports() map[string]pluginapi.Export {
	exports := map[string]pluginapi.Export{
		"connect":    {Cli: &pluginapi.CliExport{Name: "connect", Description: "connect to the child MCP server", Execute: p.cliConnect}},
		"disconnect": {Cli: &pluginapi.CliExport{Name: "disconnect", Description: "disconnect from the child MCP server", Execute: p.cliDisconnect}},
		"restart":    {Cli: &pluginapi.CliExport{Name: "restart", Description: "disconnect then reconnect", Execute: p.cliRestart}},
		"status":     {Cli: &pluginapi.CliExport{Name: "status", Description: "show connection status", Execute: p.cliStatus}},
		"debug":      {Cli: &pluginapi.CliExport{Name: "debug", Description: "dump config, last error, and recent child stderr", Execute: p.cliDebug}},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.tools {
		t := t
		exports[t.Name] = pluginapi.Export{Tool: &pluginapi.ToolExport{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Handler:     p.toolHandler(t.Name),
		}}
	}
	return exports
}

func (p *Plugin) toolHandler(name string) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, params map[string]any) (any, error) {
		p.mu.RLock()
		child := p.child
		p.mu.RUnlock()
		if child == nil {
			return nil, fmt.Errorf("not connected")
		}

		result, err := child.CallTool(ctx, name, params)
		if err != nil {
			return nil, err
		}
		return firstText(result), nil
	}
}

func firstText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func (p *Plugin) cliConnect(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
	if err := p.connect(ctx); err != nil {
		return pluginapi.Result{Success: false, Output: err.Error()}, err
	}
	p.mu.RLock()
	n := len(p.tools)
	p.mu.RUnlock()
	return pluginapi.Result{Success: true, Output: fmt.Sprintf("connected, %d tools discovered", n)}, nil
}

func (p *Plugin) cliDisconnect(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
	if err := p.disconnect(); err != nil {
		return pluginapi.Result{Success: false, Output: err.Error()}, err
	}
	return pluginapi.Result{Success: true, Output: "disconnected"}, nil
}

func (p *Plugin) cliRestart(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
	if err := p.restart(ctx); err != nil {
		return pluginapi.Result{Success: false, Output: err.Error()}, err
	}
	return pluginapi.Result{Success: true, Output: "restarted"}, nil
}

func (p *Plugin) cliStatus(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
	return pluginapi.Result{Success: true, Output: p.Status().Text}, nil
}

func (p *Plugin) cliDebug(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
	p.mu.RLock()
	cfg := p.cfg
	lastErr := p.lastErr
	child := p.child
	p.mu.RUnlock()

	out := fmt.Sprintf("command=%q url=%q args=%v autoConnect=%v", cfg.command, cfg.url, cfg.args, cfg.autoConnect)
	if lastErr != nil {
		out += fmt.Sprintf("\nlastError: %v", lastErr)
	}
	if tailer, ok := child.(stderrTailer); ok {
		out += "\nrecent stderr:\n"
		for _, line := range tailer.Stderr() {
			out += line + "\n"
		}
	}
	return pluginapi.Result{Success: true, Output: out}, nil
}

func (p *Plugin) Status() pluginapi.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.child != nil {
		return pluginapi.Status{Indicator: pluginapi.StatusGreen, Text: fmt.Sprintf("%d tools", len(p.tools))}
	}
	if p.lastErr != nil {
		return pluginapi.Status{Indicator: pluginapi.StatusRed, Text: "error"}
	}
	return pluginapi.Status{Indicator: pluginapi.StatusGray, Text: "disconnected"}
}

func (p *Plugin) Help() pluginapi.Help {
	return pluginapi.Help{
		Summary: "proxies an external MCP server, re-exporting its tools",
		Verbs:   []string{"connect", "disconnect", "restart", "status", "debug"},
	}
}
