package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphost/internal/command"
	"mcphost/pkg/logging"
)

func TestNewREPLConstructsOverRegistry(t *testing.T) {
	reg := command.NewRegistry()
	reg.RegisterBuiltin(&command.Builtin{Name: "help"})

	r := New(reg, "some-state")
	require.NotNil(t, r)
	assert.Equal(t, reg, r.registry)
	assert.Equal(t, "some-state", r.state)
}

func TestWithLogChannelSetsFieldAndReturnsSameREPL(t *testing.T) {
	reg := command.NewRegistry()
	ch := make(chan logging.LogEntry)

	r := New(reg, nil)
	got := r.WithLogChannel(ch)

	assert.Same(t, r, got, "WithLogChannel should return the same *REPL for chaining")
	assert.NotNil(t, r.logCh)
}

func TestCompleterIncludesRegisteredVerbs(t *testing.T) {
	reg := command.NewRegistry()
	reg.RegisterBuiltin(&command.Builtin{Name: "help"})
	reg.RegisterBuiltin(&command.Builtin{Name: "stats"})

	r := New(reg, nil)
	completer := r.completer()

	names := make([]string, 0)
	for _, child := range completer.GetChildren() {
		names = append(names, string(child.GetName()))
	}
	assert.Contains(t, names, "help ")
	assert.Contains(t, names, "stats ")
}
