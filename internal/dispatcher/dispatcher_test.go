package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphost/internal/pluginapi"
	"mcphost/internal/telemetry"
)

type fakeSink struct {
	entries []telemetry.CallLog
}

func (f *fakeSink) Log(entry telemetry.CallLog) { f.entries = append(f.entries, entry) }

func lookupOf(tools map[string]pluginapi.ToolExport) ToolLookup {
	return func(name string) (pluginapi.ToolExport, bool) {
		t, ok := tools[name]
		return t, ok
	}
}

func TestCallUnknownToolLogsAndReturnsError(t *testing.T) {
	sink := &fakeSink{}
	d := New(lookupOf(nil), sink)

	res := d.Call(context.Background(), "cli", "echo_say", map[string]any{})

	assert.True(t, res.IsError)
	assert.Equal(t, "Unknown tool: echo_say", res.Text)
	require.Len(t, sink.entries, 1)
	assert.False(t, sink.entries[0].Success)
	assert.Equal(t, "Unknown tool: echo_say", sink.entries[0].Error)
}

func TestCallSuccessStringifiesNonStringResult(t *testing.T) {
	sink := &fakeSink{}
	tools := map[string]pluginapi.ToolExport{
		"echo_say": {
			Name: "say",
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				return map[string]any{"echoed": params["msg"]}, nil
			},
		},
	}
	d := New(lookupOf(tools), sink)

	res := d.Call(context.Background(), "cli", "echo_say", map[string]any{"msg": "hi"})

	assert.False(t, res.IsError)
	assert.Contains(t, res.Text, `"echoed": "hi"`)
	require.Len(t, sink.entries, 1)
	assert.True(t, sink.entries[0].Success)
}

func TestCallSuccessPassesThroughStringResult(t *testing.T) {
	sink := &fakeSink{}
	tools := map[string]pluginapi.ToolExport{
		"echo_say": {
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				return "plain text", nil
			},
		},
	}
	d := New(lookupOf(tools), sink)

	res := d.Call(context.Background(), "cli", "echo_say", nil)
	assert.Equal(t, "plain text", res.Text)
}

func TestCallHandlerErrorIsPrefixed(t *testing.T) {
	sink := &fakeSink{}
	tools := map[string]pluginapi.ToolExport{
		"echo_say": {
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				return nil, errors.New("boom")
			},
		},
	}
	d := New(lookupOf(tools), sink)

	res := d.Call(context.Background(), "cli", "echo_say", nil)

	assert.True(t, res.IsError)
	assert.Equal(t, "Error: boom", res.Text)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "boom", sink.entries[0].Error)
}

func TestDispatchAdaptsCallToStringError(t *testing.T) {
	sink := &fakeSink{}
	d := New(lookupOf(nil), sink)

	_, err := d.Dispatch(context.Background(), "cli", "missing_tool", nil)
	assert.ErrorContains(t, err, "Unknown tool")
}
