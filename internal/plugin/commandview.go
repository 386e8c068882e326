package plugin

import (
	"mcphost/internal/command"
)

// CommandView adapts a Manager to the command.PluginView interface the
// built-in verbs use, translating *Instance/Tool into the plain summary
// types command stays decoupled with.
type CommandView struct {
	m *Manager
}

// NewCommandView wraps m for use as a command.Deps.Plugins value.
func NewCommandView(m *Manager) *CommandView {
	return &CommandView{m: m}
}

func (v *CommandView) Names() []string { return v.m.Names() }

func (v *CommandView) Get(name string) (command.PluginInfo, error) {
	inst, err := v.m.Get(name)
	if err != nil {
		return command.PluginInfo{}, err
	}
	return command.PluginInfo{
		Name:    inst.Name(),
		Enabled: inst.Enabled(),
		Status:  inst.Plugin().Status(),
		Help:    inst.Plugin().Help(),
	}, nil
}

func (v *CommandView) EnablePlugin(name string) error  { return v.m.EnablePlugin(name) }
func (v *CommandView) DisablePlugin(name string) error { return v.m.DisablePlugin(name) }

func (v *CommandView) EnableTool(pluginName, tool string) error {
	return v.m.EnableTool(pluginName, tool)
}

func (v *CommandView) DisableTool(pluginName, tool string) error {
	return v.m.DisableTool(pluginName, tool)
}

func (v *CommandView) Tools() []command.ToolInfo {
	tools := v.m.GetTools()
	out := make([]command.ToolInfo, len(tools))
	for i, t := range tools {
		out[i] = command.ToolInfo{Plugin: t.Plugin, Local: t.Local, Exposed: t.Exposed}
	}
	return out
}

// CliCommands translates the Manager's visible CLI verbs into
// command.PluginCommand values ready for Registry.SetPluginVerbs.
func (v *CommandView) CliCommands() []command.PluginCommand {
	cmds := v.m.GetCliCommands()
	out := make([]command.PluginCommand, len(cmds))
	for i, c := range cmds {
		out[i] = command.PluginCommand{Plugin: c.Plugin, Export: c.Export}
	}
	return out
}
