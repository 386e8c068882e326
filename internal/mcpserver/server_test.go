package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphost/internal/dispatcher"
	"mcphost/internal/plugin"
	"mcphost/internal/pluginapi"
	"mcphost/internal/telemetry"
)

type fakeToolSource struct {
	tools []plugin.Tool
	subs  []func(plugin.Event)
}

func (f *fakeToolSource) GetTools() []plugin.Tool { return f.tools }
func (f *fakeToolSource) Subscribe(cb func(plugin.Event)) {
	f.subs = append(f.subs, cb)
}
func (f *fakeToolSource) publish(ev plugin.Event) {
	for _, cb := range f.subs {
		cb(ev)
	}
}

type noopSink struct{}

func (noopSink) Log(_ telemetry.CallLog) {}

func newDispatcherForTest(tools []plugin.Tool) *dispatcher.Dispatcher {
	lookup := func(name string) (pluginapi.ToolExport, bool) {
		for _, t := range tools {
			if t.Exposed == name {
				return t.Export, true
			}
		}
		return pluginapi.ToolExport{}, false
	}
	return dispatcher.New(lookup, noopSink{})
}

func echoTool(name string) plugin.Tool {
	return plugin.Tool{
		Plugin:  "echo1",
		Local:   name,
		Exposed: "echo1_" + name,
		Export: pluginapi.ToolExport{
			Name:        name,
			Description: "echoes input",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
				"required":   []string{"text"},
			},
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				return params["text"], nil
			},
		},
	}
}

func callRequestWithArgs(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestRefreshToolsAddsAndRemovesOnEvent(t *testing.T) {
	tools := &fakeToolSource{tools: []plugin.Tool{echoTool("say")}}
	disp := newDispatcherForTest(tools.tools)
	srv := New(tools, disp, nil)

	if _, ok := srv.knownTools["echo1_say"]; !ok {
		t.Fatal("expected echo1_say to be known after construction")
	}

	tools.tools = nil
	tools.publish(plugin.Event{Type: plugin.EventPluginUnloaded, Plugin: "echo1"})

	if len(srv.knownTools) != 0 {
		t.Fatalf("expected known tools empty after unload, got %v", srv.knownTools)
	}
}

func TestToMCPToolTranslatesSchema(t *testing.T) {
	mt := toMCPTool(echoTool("say"))
	if mt.Name != "echo1_say" {
		t.Errorf("expected exposed name, got %q", mt.Name)
	}
	if mt.InputSchema.Type != "object" {
		t.Errorf("expected object schema type, got %q", mt.InputSchema.Type)
	}
	if _, ok := mt.InputSchema.Properties["text"]; !ok {
		t.Errorf("expected text property to survive translation, got %v", mt.InputSchema.Properties)
	}
	if len(mt.InputSchema.Required) != 1 || mt.InputSchema.Required[0] != "text" {
		t.Errorf("expected required=[text], got %v", mt.InputSchema.Required)
	}
}

func TestHandlerForDispatchesAndReportsErrors(t *testing.T) {
	tools := []plugin.Tool{echoTool("say")}
	disp := newDispatcherForTest(tools)
	srv := &Server{dispatcher: disp}

	h := srv.handlerFor("echo1_say")
	res, err := h(context.Background(), callRequestWithArgs(map[string]any{"text": "hi"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success result, got error result: %+v", res)
	}

	h2 := srv.handlerFor("missing_tool")
	res2, err := h2(context.Background(), callRequestWithArgs(nil))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res2.IsError {
		t.Fatalf("expected error result for unknown tool, got %+v", res2)
	}
}

func TestHandlerForRejectsNonObjectArguments(t *testing.T) {
	tools := []plugin.Tool{echoTool("say")}
	disp := newDispatcherForTest(tools)
	srv := &Server{dispatcher: disp}

	h := srv.handlerFor("echo1_say")

	var req mcp.CallToolRequest
	req.Params.Arguments = "not-an-object"

	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result for non-object arguments, got %+v", res)
	}
	found := false
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok && tc.Text != "" {
			found = true
			if !strings.Contains(tc.Text, "echo1_say") || !strings.Contains(tc.Text, "JSON object") {
				t.Errorf("expected error text to name the tool and the JSON-object requirement, got %q", tc.Text)
			}
		}
	}
	if !found {
		t.Fatal("expected a text content entry describing the bad-input error")
	}
}

func TestHandleHealthReportsConnectedClientCount(t *testing.T) {
	tools := &fakeToolSource{}
	disp := newDispatcherForTest(nil)
	srv := New(tools, disp, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	var payload struct {
		Status  string `json:"status"`
		Clients int64  `json:"clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding /health response: %v", err)
	}
	if payload.Status != "ok" {
		t.Errorf("expected status ok, got %q", payload.Status)
	}
	if payload.Clients != 0 {
		t.Errorf("expected 0 connected clients before any session registers, got %d", payload.Clients)
	}

	srv.connectedClients.Add(2)
	rec2 := httptest.NewRecorder()
	srv.handleHealth(rec2, req)
	var payload2 struct {
		Clients int64 `json:"clients"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &payload2); err != nil {
		t.Fatalf("decoding second /health response: %v", err)
	}
	if payload2.Clients != 2 {
		t.Errorf("expected 2 connected clients, got %d", payload2.Clients)
	}
}

func TestClientIDFromContextFallsBackToStdio(t *testing.T) {
	if got := clientIDFromContext(context.Background()); got != "stdio" {
		t.Errorf("expected stdio fallback, got %q", got)
	}
	ctx := WithClientID(context.Background(), "session-1")
	if got := clientIDFromContext(ctx); got != "session-1" {
		t.Errorf("expected session-1, got %q", got)
	}
}
