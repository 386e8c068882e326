// Package config loads and validates mcphost's configuration file: the
// normalized JSON shape described by the spec's §6 Environment/config
// section, at "<home>/.mcp-cli/config.json".
//
// Grounded on the teacher's internal/config/loader.go (default-path
// resolution via os.UserHomeDir, a "missing file -> defaults" fallback,
// logging.Info call sites on load) adapted from YAML to JSON and from
// muster's broader MusterConfig shape to the plugin-registration map
// this spec actually needs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mcphost/pkg/logging"
)

const (
	userConfigDir  = ".mcp-cli"
	configFileName = "config.json"
)

// MCPSettings configures the MCP server surface.
type MCPSettings struct {
	Port int `json:"port"`
}

// PluginEntry is one entry of the "plugins" map: the moduleSpecifier to
// load, its per-instance config, and any tools disabled at startup.
type PluginEntry struct {
	Package       string         `json:"package"`
	Config        map[string]any `json:"config,omitempty"`
	DisabledTools []string       `json:"disabledTools,omitempty"`
}

// Config is the normalized shape of config.json.
type Config struct {
	MCP     MCPSettings            `json:"mcp"`
	Plugins map[string]PluginEntry `json:"plugins"`
}

// Default returns an empty, valid configuration: no plugins, default port.
func Default() Config {
	return Config{MCP: MCPSettings{Port: 3000}, Plugins: map[string]PluginEntry{}}
}

// DefaultPath returns "<home>/.mcp-cli".
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(home, userConfigDir), nil
}

// Load reads and validates config.json under configDir. A missing file is
// not an error: Load returns Default(). A present-but-malformed file, or
// one carrying the legacy list-of-strings plugin form, is rejected.
func Load(configDir string) (Config, error) {
	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "no config.json found at %s, using defaults", path)
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("loading config from %s: %w", path, err)
	}
	logging.Info("ConfigLoader", "loaded configuration from %s", path)
	return cfg, nil
}

// parse validates the raw JSON shape before unmarshaling into Config,
// specifically rejecting the legacy "plugins": [...] list form per the
// spec's Open Question rather than silently coercing it.
func parse(data []byte) (Config, error) {
	var probe struct {
		Plugins json.RawMessage `json:"plugins"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("malformed JSON: %w", err)
	}
	if len(probe.Plugins) > 0 {
		trimmed := firstNonSpace(probe.Plugins)
		if trimmed == '[' {
			return Config{}, errors.New(
				"legacy list-of-strings \"plugins\" form is not supported; use the {registeredName: {package, config, disabledTools}} dictionary form")
		}
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("malformed JSON: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginEntry{}
	}
	for name, entry := range cfg.Plugins {
		if entry.Package == "" {
			return Config{}, fmt.Errorf("plugin %q is missing its \"package\" field", name)
		}
	}
	return cfg, nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

// Save writes cfg as pretty-printed JSON to configDir/config.json,
// creating configDir if necessary.
func Save(configDir string, cfg Config) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir %s: %w", configDir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(configDir, configFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
