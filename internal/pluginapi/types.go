// Package pluginapi defines the contract every mcphost plugin is built
// against: the Plugin interface, its manifest, its exports (CLI verbs and
// MCP tools), and the context handed to it at load time.
//
// A plugin module is registered as a Factory. A factory that returns a
// fresh Plugin on each call lets the same package (notably the proxy
// plugin, see internal/proxy) be loaded multiple times under different
// registered names; a single-instance module returns the same value.
package pluginapi

import "context"

// Manifest describes a plugin package, independent of the name it is
// registered under.
type Manifest struct {
	Name        string
	Version     string
	Description string
}

// StatusIndicator is the coarse health signal a plugin reports via Status.
type StatusIndicator string

const (
	StatusGreen  StatusIndicator = "green"
	StatusYellow StatusIndicator = "yellow"
	StatusRed    StatusIndicator = "red"
	StatusGray   StatusIndicator = "gray"
)

// Status is a plugin's current self-reported health.
type Status struct {
	Indicator StatusIndicator
	Text      string
}

// Help is the structured documentation a plugin returns for the `help` verb.
type Help struct {
	Summary string
	Verbs   []string
	Tools   []string
}

// Result is the outcome of a CLI verb execution.
type Result struct {
	Output  string
	Success bool
}

// Arg describes one argument accepted by a CliExport.
type Arg struct {
	Name     string
	Required bool
	// Choices, when non-empty, is used only for shell completion; the
	// runtime never enforces that a supplied value is one of these.
	Choices []string
}

// CliExport is a textual command a plugin contributes to the interactive shell.
type CliExport struct {
	Name        string
	Description string
	Args        []Arg
	Execute     func(ctx context.Context, args []string, state any) (Result, error)
}

// ToolExport is a schema-typed callable a plugin exposes over MCP.
type ToolExport struct {
	Name        string
	Description string
	// InputSchema is a JSON-Schema object (map[string]any after unmarshal,
	// or any value produced by a schema generator such as invopop/jsonschema).
	InputSchema any
	Handler     func(ctx context.Context, params map[string]any) (any, error)
}

// Export is a tagged sum of a plugin's two export kinds. Exactly one of
// Cli / Tool is non-nil.
type Export struct {
	Cli  *CliExport
	Tool *ToolExport
}

// Plugin is the interface every plugin module must satisfy, whether
// obtained directly or via a factory function.
type Plugin interface {
	Manifest() Manifest
	Init(ctx context.Context, pctx *Context) error
	Destroy() error
	Exports() map[string]Export
	Status() Status
	Help() Help
}

// OnEnabler is implemented by plugins that want a callback when they
// transition to enabled. Optional.
type OnEnabler interface {
	OnEnable() error
}

// OnDisabler is implemented by plugins that want a callback when they
// transition to disabled. Optional.
type OnDisabler interface {
	OnDisable() error
}

// Factory is the shape a plugin module exports when it needs one fresh
// Plugin instance per registered name (the proxy's case). A module
// exposing a single shared instance simply returns the same closed-over
// value from its factory, keeping the call site uniform.
type Factory func() Plugin

// Context is handed to a plugin's Init. It is the only way a plugin
// talks back to the runtime.
type Context struct {
	registeredName string
	config         map[string]any
	notify         func()
	log            func(msg string)
}

// NewContext constructs a PluginContext for a given registered plugin instance.
func NewContext(registeredName string, config map[string]any, notify func(), log func(string)) *Context {
	return &Context{registeredName: registeredName, config: config, notify: notify, log: log}
}

// RegisteredName is the config-key name this instance was loaded under.
func (c *Context) RegisteredName() string { return c.registeredName }

// Config returns an immutable view of this instance's per-plugin options.
func (c *Context) Config() map[string]any {
	view := make(map[string]any, len(c.config))
	for k, v := range c.config {
		view[k] = v
	}
	return view
}

// NotifyStateChange re-emits a stateChange event upstream through the
// Plugin Manager's event bus, which in turn triggers MCP
// notifications/tools/list_changed on every live session.
func (c *Context) NotifyStateChange() {
	if c.notify != nil {
		c.notify()
	}
}

// Log writes to the plugin's side-channel log. This never touches the
// stdio MCP transport's standard output.
func (c *Context) Log(msg string) {
	if c.log != nil {
		c.log(msg)
	}
}
