package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadValidDictionaryForm(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"mcp": {"port": 9001},
		"plugins": {
			"echo1": {"package": "demo/echo", "config": {"greeting": "hi"}, "disabledTools": ["loud"]}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.MCP.Port)
	require.Contains(t, cfg.Plugins, "echo1")
	assert.Equal(t, "demo/echo", cfg.Plugins["echo1"].Package)
	assert.Equal(t, []string{"loud"}, cfg.Plugins["echo1"].DisabledTools)
}

func TestLoadRejectsLegacyListForm(t *testing.T) {
	dir := t.TempDir()
	body := `{"plugins": ["demo/echo", "demo/fetch"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.ErrorContains(t, err, "legacy list-of-strings")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsPluginEntryMissingPackage(t *testing.T) {
	dir := t.TempDir()
	body := `{"plugins": {"echo1": {"config": {}}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, `"package"`)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		MCP: MCPSettings{Port: 7000},
		Plugins: map[string]PluginEntry{
			"echo1": {Package: "demo/echo", Config: map[string]any{"k": "v"}},
		},
	}

	require.NoError(t, Save(dir, cfg))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
