// Package echo is a compiled-in demo plugin: one tool, "say", that
// echoes its input back with an optional upper-casing flag, and one CLI
// verb, "greet". It exists to exercise the plugin contract end to end
// and to give github.com/invopop/jsonschema a concrete input schema to
// reflect from, the way a real tool-bearing plugin would declare one.
//
// Grounded on the other_examples grafana-mcp-grafana handler, which
// reflects a tool's JSON schema from its Go argument struct via
// jsonschema.Reflector rather than hand-writing a schema map.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"mcphost/internal/pluginapi"
)

// ModuleSpecifier is the config "package" value that selects this plugin.
const ModuleSpecifier = "mcphost/echo"

var schemaReflector = jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// sayParams is reflected into the "say" tool's InputSchema.
type sayParams struct {
	Text  string `json:"text" jsonschema:"required,description=text to echo back"`
	Upper bool   `json:"upper,omitempty" jsonschema:"description=uppercase the echoed text"`
}

// Plugin is the echo demo's single instance.
type Plugin struct {
	greeting string
}

// New creates an unconfigured echo plugin. Init supplies its greeting.
func New() *Plugin {
	return &Plugin{greeting: "hello"}
}

func (p *Plugin) Manifest() pluginapi.Manifest {
	return pluginapi.Manifest{Name: "echo", Version: "1.0.0", Description: "demo plugin: echoes text back"}
}

func (p *Plugin) Init(ctx context.Context, pctx *pluginapi.Context) error {
	if greeting, ok := pctx.Config()["greeting"].(string); ok && greeting != "" {
		p.greeting = greeting
	}
	return nil
}

func (p *Plugin) Destroy() error { return nil }

func (p *Plugin) Exports() map[string]pluginapi.Export {
	return map[string]pluginapi.Export{
		"say": {Tool: &pluginapi.ToolExport{
			Name:        "say",
			Description: "echoes the given text back, optionally uppercased",
			InputSchema: schemaReflector.Reflect(sayParams{}),
			Handler:     p.say,
		}},
		"greet": {Cli: &pluginapi.CliExport{
			Name:        "greet",
			Description: "greet <name>",
			Args:        []pluginapi.Arg{{Name: "name", Required: true}},
			Execute:     p.greet,
		}},
	}
}

func (p *Plugin) say(ctx context.Context, params map[string]any) (any, error) {
	text, _ := params["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("missing required argument %q", "text")
	}
	upper, _ := params["upper"].(bool)
	if upper {
		text = strings.ToUpper(text)
	}
	return text, nil
}

func (p *Plugin) greet(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
	if len(args) == 0 {
		return pluginapi.Result{Success: false}, fmt.Errorf("usage: greet <name>")
	}
	return pluginapi.Result{Success: true, Output: fmt.Sprintf("%s, %s!", p.greeting, args[0])}, nil
}

func (p *Plugin) Status() pluginapi.Status {
	return pluginapi.Status{Indicator: pluginapi.StatusGreen, Text: "ready"}
}

func (p *Plugin) Help() pluginapi.Help {
	return pluginapi.Help{
		Summary: "demo echo plugin",
		Verbs:   []string{"greet"},
		Tools:   []string{"say"},
	}
}
