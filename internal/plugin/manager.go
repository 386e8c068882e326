// Package plugin implements the plugin lifecycle and registry: loading
// plugin modules, owning instances, mediating enable/disable at the
// plugin and tool level, and publishing lifecycle events for the MCP
// server and command registry to react to.
//
// Modeled on the teacher's AggregatorManager/ServerRegistry split
// (internal/aggregator/manager.go, registry.go in giantswarm-muster): a
// manager coordinates lifecycle and event plumbing, while a plain map
// under a single lock holds the instances themselves.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"mcphost/internal/config"
	"mcphost/internal/pluginapi"
	"mcphost/pkg/logging"
)

// Manager loads, owns, and mediates plugin instances.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	order     []string // registration order, for stable listings

	bus *EventBus
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*Instance),
		bus:       NewEventBus(),
	}
}

// Subscribe registers a callback for every lifecycle/state event the
// Manager publishes. See EventBus.Subscribe.
func (m *Manager) Subscribe(cb func(Event)) {
	m.bus.Subscribe(cb)
}

// LoadPlugin resolves moduleSpecifier, obtains a Plugin (calling the
// factory once), validates its shape, constructs a Context, and invokes
// Init. See spec §4.1 for the full contract.
func (m *Manager) LoadPlugin(ctx context.Context, registeredName, moduleSpecifier string, cfg map[string]any, disabledTools []string) error {
	m.mu.Lock()
	if _, exists := m.instances[registeredName]; exists {
		m.mu.Unlock()
		return &pluginapi.DuplicateNameError{Name: registeredName}
	}
	m.mu.Unlock()

	factory, ok := resolveModule(moduleSpecifier)
	if !ok {
		return &pluginapi.InvalidPluginError{Name: registeredName, Reason: errUnknownModule(moduleSpecifier).Error()}
	}

	p := factory()
	if p == nil {
		return &pluginapi.InvalidPluginError{Name: registeredName, Reason: "factory returned a nil plugin"}
	}

	if err := validateShape(registeredName, p); err != nil {
		return err
	}

	inst := newInstance(registeredName, p, disabledTools)

	pctx := pluginapi.NewContext(registeredName, cfg,
		func() { m.bus.Publish(Event{Type: EventStateChange, Plugin: registeredName}) },
		func(msg string) { logging.Info("Plugin:"+registeredName, "%s", msg) },
	)

	if err := p.Init(ctx, pctx); err != nil {
		return &pluginapi.LoadFailureError{Name: registeredName, Err: err}
	}

	m.mu.Lock()
	// Re-check for a racing duplicate load between the initial check and now.
	if _, exists := m.instances[registeredName]; exists {
		m.mu.Unlock()
		_ = p.Destroy()
		return &pluginapi.DuplicateNameError{Name: registeredName}
	}
	m.instances[registeredName] = inst
	m.order = append(m.order, registeredName)
	m.mu.Unlock()

	logging.Info("PluginManager", "loaded plugin %s", registeredName)
	m.bus.Publish(Event{Type: EventPluginLoaded, Plugin: registeredName})
	return nil
}

// LoadAll loads every entry in plugins concurrently so one slow child
// process's Init does not serialize startup behind the others. A failing
// plugin never cancels its siblings' loads; every failure is collected
// and returned together as a joined error, or nil if all succeeded.
func (m *Manager) LoadAll(ctx context.Context, plugins map[string]config.PluginEntry) error {
	var g errgroup.Group
	var mu sync.Mutex
	var errs []error

	for name, entry := range plugins {
		name, entry := name, entry
		g.Go(func() error {
			if err := m.LoadPlugin(ctx, name, entry.Package, entry.Config, entry.DisabledTools); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("loading plugin %q: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// validateShape checks the structural invariants LoadPlugin must enforce
// before Init is ever called: a non-empty manifest name, and no two tools
// sharing a local name within the plugin (spec §9, Open Question).
func validateShape(registeredName string, p pluginapi.Plugin) error {
	manifest := p.Manifest()
	if manifest.Name == "" {
		return &pluginapi.InvalidPluginError{Name: registeredName, Reason: "manifest has an empty name"}
	}

	seenTools := make(map[string]struct{})
	for _, exp := range p.Exports() {
		if exp.Tool == nil {
			continue
		}
		if _, dup := seenTools[exp.Tool.Name]; dup {
			return &pluginapi.InvalidPluginError{
				Name:   registeredName,
				Reason: fmt.Sprintf("two tools share the local name %q", exp.Tool.Name),
			}
		}
		seenTools[exp.Tool.Name] = struct{}{}
	}
	return nil
}

// UnloadPlugin destroys and removes a plugin instance.
func (m *Manager) UnloadPlugin(name string) error {
	m.mu.Lock()
	inst, exists := m.instances[name]
	if !exists {
		m.mu.Unlock()
		return &pluginapi.UnknownPluginError{Name: name}
	}
	delete(m.instances, name)
	m.order = removeName(m.order, name)
	m.mu.Unlock()

	if err := inst.Plugin().Destroy(); err != nil {
		logging.Warn("PluginManager", "error destroying plugin %s: %v", name, err)
	}

	logging.Info("PluginManager", "unloaded plugin %s", name)
	m.bus.Publish(Event{Type: EventPluginUnloaded, Plugin: name})
	return nil
}

// EnablePlugin enables a disabled plugin. Idempotent.
func (m *Manager) EnablePlugin(name string) error {
	inst, err := m.get(name)
	if err != nil {
		return err
	}
	if inst.Enabled() {
		return nil
	}
	inst.setEnabled(true)
	if hook, ok := inst.Plugin().(pluginapi.OnEnabler); ok {
		if err := hook.OnEnable(); err != nil {
			logging.Warn("PluginManager", "plugin %s OnEnable hook failed: %v", name, err)
		}
	}
	m.bus.Publish(Event{Type: EventPluginEnabled, Plugin: name})
	return nil
}

// DisablePlugin disables an enabled plugin. Idempotent.
func (m *Manager) DisablePlugin(name string) error {
	inst, err := m.get(name)
	if err != nil {
		return err
	}
	if !inst.Enabled() {
		return nil
	}
	inst.setEnabled(false)
	if hook, ok := inst.Plugin().(pluginapi.OnDisabler); ok {
		if err := hook.OnDisable(); err != nil {
			logging.Warn("PluginManager", "plugin %s OnDisable hook failed: %v", name, err)
		}
	}
	m.bus.Publish(Event{Type: EventPluginDisabled, Plugin: name})
	return nil
}

// EnableTool removes localName from the plugin's disabled-tool mask.
// Permissive: no error if the tool was not masked, or doesn't exist.
func (m *Manager) EnableTool(pluginName, localName string) error {
	inst, err := m.get(pluginName)
	if err != nil {
		return err
	}
	inst.enableTool(localName)
	m.bus.Publish(Event{Type: EventStateChange, Plugin: pluginName})
	return nil
}

// DisableTool adds localName to the plugin's disabled-tool mask, after
// verifying the tool exists.
func (m *Manager) DisableTool(pluginName, localName string) error {
	inst, err := m.get(pluginName)
	if err != nil {
		return err
	}
	if _, exists := findTool(inst.Plugin(), localName); !exists {
		return &pluginapi.UnknownToolError{Plugin: pluginName, Tool: localName}
	}
	inst.disableTool(localName)
	m.bus.Publish(Event{Type: EventStateChange, Plugin: pluginName})
	return nil
}

func findTool(p pluginapi.Plugin, localName string) (pluginapi.ToolExport, bool) {
	for _, exp := range p.Exports() {
		if exp.Tool != nil && exp.Tool.Name == localName {
			return *exp.Tool, true
		}
	}
	return pluginapi.ToolExport{}, false
}

// Tool is a tool export annotated with its origin plugin and
// fully-qualified exposed name.
type Tool struct {
	Plugin  string
	Local   string
	Exposed string
	Export  pluginapi.ToolExport
}

// GetTools returns every tool currently visible: contributed by an enabled
// plugin and not individually masked, renamed to its fully-qualified form
// "<pluginName>_<toolLocalName>".
func (m *Manager) GetTools() []Tool {
	m.mu.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	m.mu.RUnlock()

	var out []Tool
	for _, name := range names {
		inst, err := m.get(name)
		if err != nil || !inst.Enabled() {
			continue
		}
		for _, exp := range inst.Plugin().Exports() {
			if exp.Tool == nil {
				continue
			}
			if inst.ToolDisabled(exp.Tool.Name) {
				continue
			}
			out = append(out, Tool{
				Plugin:  name,
				Local:   exp.Tool.Name,
				Exposed: FullyQualifiedName(name, exp.Tool.Name),
				Export:  *exp.Tool,
			})
		}
	}
	return out
}

// Cli is a CLI verb export annotated with its origin plugin.
type Cli struct {
	Plugin string
	Export pluginapi.CliExport
}

// GetCliCommands returns every CLI verb currently visible, tagged with
// origin plugin, from enabled plugins only.
func (m *Manager) GetCliCommands() []Cli {
	m.mu.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	m.mu.RUnlock()

	var out []Cli
	for _, name := range names {
		inst, err := m.get(name)
		if err != nil || !inst.Enabled() {
			continue
		}
		for _, exp := range inst.Plugin().Exports() {
			if exp.Cli == nil {
				continue
			}
			out = append(out, Cli{Plugin: name, Export: *exp.Cli})
		}
	}
	return out
}

// FullyQualifiedName builds the "<plugin>_<tool>" name MCP clients see.
func FullyQualifiedName(pluginName, localName string) string {
	return pluginName + "_" + localName
}

// Get returns the instance registered under name.
func (m *Manager) Get(name string) (*Instance, error) {
	return m.get(name)
}

func (m *Manager) get(name string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, exists := m.instances[name]
	if !exists {
		return nil, &pluginapi.UnknownPluginError{Name: name}
	}
	return inst, nil
}

// Names returns every registered plugin name, in load order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// All returns a stable-sorted snapshot of every instance. Callers get a
// copy of the slice so they never observe the Manager's map mutating
// underneath them mid-iteration.
func (m *Manager) All() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.instances))
	for _, name := range m.order {
		out = append(out, m.instances[name])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Shutdown destroys every loaded plugin instance, used during process shutdown.
func (m *Manager) Shutdown() {
	for _, name := range m.Names() {
		if err := m.UnloadPlugin(name); err != nil {
			logging.Warn("PluginManager", "error unloading %s during shutdown: %v", name, err)
		}
	}
}

func removeName(names []string, target string) []string {
	out := names[:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
