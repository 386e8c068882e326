// Package dispatcher implements the Tool Dispatcher (spec §4.3): the
// single chokepoint both the `call` built-in and every MCP tools/call
// request go through to invoke a plugin's handler, time it, and log the
// outcome to telemetry.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mcphost/internal/pluginapi"
	"mcphost/internal/telemetry"
)

// ToolLookup resolves a fully-qualified tool name to its handler. The
// Plugin Manager's ToolLookup method, which scans GetTools, satisfies this.
type ToolLookup func(fullyQualifiedName string) (pluginapi.ToolExport, bool)

// TelemetrySink is the slice of the telemetry store the Dispatcher writes to.
type TelemetrySink interface {
	Log(entry telemetry.CallLog)
}

// Dispatcher routes a fully-qualified tool call to its handler.
type Dispatcher struct {
	lookup ToolLookup
	sink   TelemetrySink
}

// New creates a Dispatcher backed by lookup (typically the Plugin
// Manager's visible-tools view) and sink (the Telemetry Store).
func New(lookup ToolLookup, sink TelemetrySink) *Dispatcher {
	return &Dispatcher{lookup: lookup, sink: sink}
}

// CallResult is the MCP-shaped response for a tools/call invocation.
type CallResult struct {
	Text    string
	IsError bool
}

// Call resolves toolName, invokes its handler with params, and logs the
// outcome. clientID identifies the caller ("cli", "stdio", or a
// synthesized per-session id for SSE) for the telemetry record.
func (d *Dispatcher) Call(ctx context.Context, clientID, toolName string, params map[string]any) CallResult {
	start := time.Now()
	requestBytes := jsonByteLen(params)

	tool, found := d.lookup(toolName)
	if !found {
		msg := fmt.Sprintf("Unknown tool: %s", toolName)
		d.sink.Log(telemetry.CallLog{
			Timestamp:    start,
			ClientID:     clientID,
			Tool:         toolName,
			Params:       params,
			Success:      false,
			Error:        msg,
			DurationMs:   0,
			RequestBytes: requestBytes,
		})
		return CallResult{Text: msg, IsError: true}
	}

	result, err := tool.Handler(ctx, params)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		text := "Error: " + err.Error()
		d.sink.Log(telemetry.CallLog{
			Timestamp:    start,
			ClientID:     clientID,
			Tool:         toolName,
			Params:       params,
			Success:      false,
			Error:        err.Error(),
			DurationMs:   duration,
			RequestBytes: requestBytes,
			ResponseBytes: len(text),
		})
		return CallResult{Text: text, IsError: true}
	}

	text := stringify(result)
	d.sink.Log(telemetry.CallLog{
		Timestamp:     start,
		ClientID:      clientID,
		Tool:          toolName,
		Params:        params,
		Success:       true,
		DurationMs:    duration,
		RequestBytes:  requestBytes,
		ResponseBytes: len(text),
	})
	return CallResult{Text: text}
}

// Dispatch implements command.Dispatcher for the `call` built-in,
// returning just the stringified text or an error.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID, toolName string, params map[string]any) (string, error) {
	res := d.Call(ctx, clientID, toolName, params)
	if res.IsError {
		return "", fmt.Errorf("%s", res.Text)
	}
	return res.Text, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func jsonByteLen(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
