package plugin

import (
	"sync"

	"mcphost/internal/pluginapi"
)

// Instance is the Manager's bookkeeping for one loaded plugin: the plugin
// value itself, the name it was registered under (from the config key, not
// its manifest), whether it is currently enabled, and the set of its tools
// that have been individually disabled.
type Instance struct {
	mu sync.RWMutex

	name    string
	plugin  pluginapi.Plugin
	enabled bool

	disabledTools map[string]struct{}
}

func newInstance(name string, p pluginapi.Plugin, disabledTools []string) *Instance {
	mask := make(map[string]struct{}, len(disabledTools))
	for _, t := range disabledTools {
		mask[t] = struct{}{}
	}
	return &Instance{
		name:          name,
		plugin:        p,
		enabled:       true,
		disabledTools: mask,
	}
}

// Name is the registered name this instance was loaded under.
func (i *Instance) Name() string { return i.name }

// Plugin returns the underlying plugin value.
func (i *Instance) Plugin() pluginapi.Plugin { return i.plugin }

// Enabled reports whether the instance currently accepts tool/verb calls.
func (i *Instance) Enabled() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.enabled
}

func (i *Instance) setEnabled(v bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.enabled = v
}

// ToolDisabled reports whether localName has been masked out for this instance.
func (i *Instance) ToolDisabled(localName string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, disabled := i.disabledTools[localName]
	return disabled
}

func (i *Instance) disableTool(localName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.disabledTools[localName] = struct{}{}
}

// enableTool removes localName from the disabled set. Removing a name that
// was never in the set is a no-op, matching the permissive contract.
func (i *Instance) enableTool(localName string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.disabledTools, localName)
}
