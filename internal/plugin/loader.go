package plugin

import (
	"fmt"
	"sort"
	"sync"

	"mcphost/internal/pluginapi"
)

// loaderRegistry maps a module specifier (the "package" field of a plugin's
// config entry) to the factory that builds it. Plugin packages register
// themselves here from an init() function, mirroring the database/sql
// driver-registration pattern: modules are compiled in, and the config
// simply names which compiled-in module to instantiate under which
// registered name.
var loaderRegistry = struct {
	mu    sync.RWMutex
	items map[string]pluginapi.Factory
}{items: make(map[string]pluginapi.Factory)}

// RegisterModule makes a plugin factory available under moduleSpecifier for
// later loading by the Manager. Calling it twice with the same specifier
// replaces the previous registration, matching how a package re-importing
// itself (e.g. during tests) should behave.
func RegisterModule(moduleSpecifier string, factory pluginapi.Factory) {
	loaderRegistry.mu.Lock()
	defer loaderRegistry.mu.Unlock()
	loaderRegistry.items[moduleSpecifier] = factory
}

// resolveModule looks up a registered factory by specifier.
func resolveModule(moduleSpecifier string) (pluginapi.Factory, bool) {
	loaderRegistry.mu.RLock()
	defer loaderRegistry.mu.RUnlock()
	f, ok := loaderRegistry.items[moduleSpecifier]
	return f, ok
}

// KnownModules returns the sorted list of registered module specifiers.
func KnownModules() []string {
	loaderRegistry.mu.RLock()
	defer loaderRegistry.mu.RUnlock()
	names := make([]string, 0, len(loaderRegistry.items))
	for name := range loaderRegistry.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func errUnknownModule(spec string) error {
	return fmt.Errorf("unknown plugin module %q (not registered)", spec)
}
