package plugin

import "mcphost/internal/pluginapi"

// ToolLookup is a dispatcher.ToolLookup-shaped method: on every call it
// scans m's currently visible tools (GetTools) for fullyQualifiedName.
// The Tool Dispatcher's algorithm requires a fresh lookup per spec §4.3
// step 1, so nothing is cached between calls.
func (m *Manager) ToolLookup(fullyQualifiedName string) (pluginapi.ToolExport, bool) {
	for _, t := range m.GetTools() {
		if t.Exposed == fullyQualifiedName {
			return t.Export, true
		}
	}
	return pluginapi.ToolExport{}, false
}
