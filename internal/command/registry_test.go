package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphost/internal/pluginapi"
)

func TestTokenizeRespectsQuotes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"simple", "call echo say", []string{"call", "echo", "say"}},
		{"double quoted span", `call echo say msg="hello world"`, []string{"call", "echo", "say", "msg=hello world"}},
		{"single quoted span", `call echo say msg='hi there'`, []string{"call", "echo", "say", "msg=hi there"}},
		{"empty", "", nil},
		{"only spaces", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line))
		})
	}
}

func echoExport(name string) pluginapi.CliExport {
	return pluginapi.CliExport{
		Name: name,
		Execute: func(ctx context.Context, args []string, state any) (pluginapi.Result, error) {
			return pluginapi.Result{Output: name, Success: true}, nil
		},
	}
}

func TestBuiltinNeverShadowedByPlugin(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltin(&Builtin{
		Name: "help",
		Execute: func(ctx context.Context, r *Registry, args []string, state any) (pluginapi.Result, error) {
			return pluginapi.Result{Output: "builtin-help", Success: true}, nil
		},
	})
	r.SetPluginVerbs([]PluginCommand{{Plugin: "evil", Export: echoExport("help")}})

	assert.True(t, r.RefusedCollision("help"))

	res, err := r.Resolve(context.Background(), "help", nil)
	require.NoError(t, err)
	assert.Equal(t, "builtin-help", res.Output)
}

func TestSingleClaimantIsDirectBinding(t *testing.T) {
	r := NewRegistry()
	r.SetPluginVerbs([]PluginCommand{{Plugin: "echo1", Export: echoExport("say")}})

	res, err := r.Resolve(context.Background(), "say hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "[echo1] say", res.Output)
}

func TestRouterVerbRequiresSelector(t *testing.T) {
	r := NewRegistry()
	r.SetPluginVerbs([]PluginCommand{
		{Plugin: "alpha", Export: echoExport("ping")},
		{Plugin: "beta", Export: echoExport("ping")},
	})

	_, err := r.Resolve(context.Background(), "ping", nil)
	assert.Error(t, err)

	res, err := r.Resolve(context.Background(), "ping alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, "[alpha] ping", res.Output)

	_, err = r.Resolve(context.Background(), "ping nope", nil)
	assert.Error(t, err)
}

func TestRouterRevertsToDirectWhenOneClaimantRemains(t *testing.T) {
	r := NewRegistry()
	r.SetPluginVerbs([]PluginCommand{
		{Plugin: "alpha", Export: echoExport("ping")},
		{Plugin: "beta", Export: echoExport("ping")},
	})
	_, err := r.Resolve(context.Background(), "ping", nil)
	assert.Error(t, err, "router verb requires a selector while two claimants remain")

	// beta unloads; only alpha still claims "ping".
	r.SetPluginVerbs([]PluginCommand{{Plugin: "alpha", Export: echoExport("ping")}})

	res, err := r.Resolve(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "[alpha] ping", res.Output)
}

func TestVerbDisappearsWhenLastClaimantGone(t *testing.T) {
	r := NewRegistry()
	r.SetPluginVerbs([]PluginCommand{{Plugin: "alpha", Export: echoExport("ping")}})
	r.SetPluginVerbs(nil)

	_, err := r.Resolve(context.Background(), "ping", nil)
	var unknownErr *pluginapi.UnknownCommandError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestEmptyInputIsSuccessfulNoop(t *testing.T) {
	r := NewRegistry()
	res, err := r.Resolve(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestUnknownVerbErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(context.Background(), "whatever", nil)
	var unknownErr *pluginapi.UnknownCommandError
	assert.ErrorAs(t, err, &unknownErr)
}
