// Package command implements the verb-routing layer shared by the
// interactive shell and the `call` built-in: a fixed table of built-in
// verbs layered over the plugins' dynamically contributed ones, with
// collision resolution (router verbs) and case-insensitive lookup.
//
// Grounded on the teacher's internal/agent/commands package (verb
// dispatch table keyed by name+aliases) and internal/aggregator/registry.go
// (collision handling between statically-registered and dynamically
// discovered names), adapted from MCP-tool-name collisions to CLI-verb
// collisions per the spec's router-verb rule.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mcphost/internal/pluginapi"
)

// Builtin is one of the runtime's fixed verbs.
type Builtin struct {
	Name        string
	Aliases     []string
	Description string
	Execute     func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error)
}

type bindingKind int

const (
	bindDirect bindingKind = iota
	bindRouter
)

// pluginBinding is the Registry's resolution for a verb contributed by one
// or more plugins (never a built-in; those are matched first and are
// never displaced).
type pluginBinding struct {
	kind      bindingKind
	claimants []string // registration names, sorted; len==1 for bindDirect
}

// Registry resolves a typed verb to a handler: built-ins first, then
// plugin-contributed verbs, with router-verb collision handling.
type Registry struct {
	mu sync.RWMutex

	builtins    map[string]*Builtin // by lowercased name/alias
	builtinList []*Builtin          // registration order, for help listing

	pluginExports map[string]map[string]pluginapi.CliExport // verb -> plugin -> export
	bindings      map[string]*pluginBinding                 // verb -> current resolution
}

// NewRegistry creates a Registry with no verbs bound yet. Call
// RegisterBuiltin for each built-in, then SetPluginVerbs whenever the
// Plugin Manager's visible CLI commands change.
func NewRegistry() *Registry {
	return &Registry{
		builtins:      make(map[string]*Builtin),
		pluginExports: make(map[string]map[string]pluginapi.CliExport),
		bindings:      make(map[string]*pluginBinding),
	}
}

// RegisterBuiltin adds a built-in verb. Built-ins are never displaced by
// plugin-contributed verbs.
func (r *Registry) RegisterBuiltin(b *Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[strings.ToLower(b.Name)] = b
	for _, alias := range b.Aliases {
		r.builtins[strings.ToLower(alias)] = b
	}
	r.builtinList = append(r.builtinList, b)
}

// Builtins returns the registered built-ins in registration order.
func (r *Registry) Builtins() []*Builtin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Builtin, len(r.builtinList))
	copy(out, r.builtinList)
	return out
}

// SetPluginVerbs replaces the Registry's view of plugin-contributed verbs
// and recomputes collision bindings. Call this whenever the Plugin
// Manager's visible CLI commands may have changed (on every lifecycle
// event it publishes).
func (r *Registry) SetPluginVerbs(commands []PluginCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byVerb := make(map[string]map[string]pluginapi.CliExport)
	for _, c := range commands {
		verb := strings.ToLower(c.Export.Name)
		if _, isBuiltin := r.builtins[verb]; isBuiltin {
			// A plugin colliding with a built-in is refused silently here;
			// callers are expected to log the refusal using the plugin
			// name and verb before calling SetPluginVerbs, since the
			// Registry itself has no logging side channel.
			continue
		}
		if byVerb[verb] == nil {
			byVerb[verb] = make(map[string]pluginapi.CliExport)
		}
		byVerb[verb][c.Plugin] = c.Export
	}
	r.pluginExports = byVerb

	bindings := make(map[string]*pluginBinding, len(byVerb))
	for verb, claimants := range byVerb {
		names := make([]string, 0, len(claimants))
		for name := range claimants {
			names = append(names, name)
		}
		sort.Strings(names)
		kind := bindDirect
		if len(names) > 1 {
			kind = bindRouter
		}
		bindings[verb] = &pluginBinding{kind: kind, claimants: names}
	}
	r.bindings = bindings
}

// PluginCommand is a CLI verb export tagged with its contributing
// plugin's registration name; callers translate from plugin.Cli so this
// package stays free of an import-cycle-prone dependency on the plugin
// package's concrete Manager type.
type PluginCommand struct {
	Plugin string
	Export pluginapi.CliExport
}

// RefusedCollision reports whether a plugin verb would collide with a
// built-in, for callers that want to log the refusal before calling
// SetPluginVerbs.
func (r *Registry) RefusedCollision(verb string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, isBuiltin := r.builtins[strings.ToLower(verb)]
	return isBuiltin
}

// Verbs returns every currently resolvable verb name, for autocomplete.
// Built-ins are listed by primary name only; plugin verbs by their
// current binding (direct or router).
func (r *Registry) Verbs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, b := range r.builtinList {
		seen[strings.ToLower(b.Name)] = struct{}{}
	}
	for verb := range r.bindings {
		seen[verb] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Resolve tokenizes line and executes the matching verb: built-in, direct
// plugin binding, or router dispatch on the first positional argument.
// Empty input is a successful no-op.
func (r *Registry) Resolve(ctx context.Context, line string, state any) (pluginapi.Result, error) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return pluginapi.Result{Success: true}, nil
	}
	verb := strings.ToLower(tokens[0])
	args := tokens[1:]

	r.mu.RLock()
	builtin, isBuiltin := r.builtins[verb]
	binding, hasPluginBinding := r.bindings[verb]
	exports := r.pluginExports[verb]
	r.mu.RUnlock()

	if isBuiltin {
		return builtin.Execute(ctx, r, args, state)
	}

	if !hasPluginBinding {
		return pluginapi.Result{Success: false}, &pluginapi.UnknownCommandError{Verb: tokens[0]}
	}

	switch binding.kind {
	case bindDirect:
		plugin := binding.claimants[0]
		return invokePlugin(ctx, plugin, exports[plugin], args, state)
	case bindRouter:
		if len(args) == 0 {
			return pluginapi.Result{Success: false}, fmt.Errorf(
				"verb %q is claimed by multiple plugins (%s); pass one as the first argument",
				tokens[0], strings.Join(binding.claimants, ", "))
		}
		selector := args[0]
		exp, ok := exports[selector]
		if !ok {
			return pluginapi.Result{Success: false}, fmt.Errorf(
				"verb %q has no plugin named %q; claimants are %s",
				tokens[0], selector, strings.Join(binding.claimants, ", "))
		}
		return invokePlugin(ctx, selector, exp, args[1:], state)
	default:
		return pluginapi.Result{Success: false}, &pluginapi.UnknownCommandError{Verb: tokens[0]}
	}
}

func invokePlugin(ctx context.Context, plugin string, exp pluginapi.CliExport, args []string, state any) (pluginapi.Result, error) {
	res, err := exp.Execute(ctx, args, state)
	if err != nil {
		return pluginapi.Result{Success: false}, err
	}
	res.Output = fmt.Sprintf("[%s] %s", plugin, res.Output)
	return res, nil
}
