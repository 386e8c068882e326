// Package proxy implements the proxy sub-runtime (spec §4.6): a factory
// plugin whose instances each own a child MCP client — either a spawned
// subprocess speaking JSON-RPC over its stdio, or a dialed SSE endpoint —
// and re-export the child's discovered tools as native ToolExports.
//
// Grounded on the teacher's internal/mcpserver client hierarchy
// (client.go's baseMCPClient, client_stdio.go, client_sse.go): a shared
// base wraps the mark3labs/mcp-go client.MCPClient with a connected flag
// and mutex, while per-transport types handle only connection setup.
package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"mcphost/pkg/logging"
)

const defaultInitTimeout = 10 * time.Second

// ChildClient is the subset of MCP client operations the proxy plugin
// needs from its child connection: initialize, list/call tools, close.
type ChildClient interface {
	Initialize(ctx context.Context) error
	Close() error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// stderrTailer is implemented by clients that can surface a subprocess's
// recent standard-error output for the `debug` command.
type stderrTailer interface {
	Stderr() []string
}

type baseClient struct {
	mu        sync.RWMutex
	client    client.MCPClient
	connected bool
}

func (b *baseClient) checkConnected() error {
	if !b.connected || b.client == nil {
		return fmt.Errorf("not connected")
	}
	return nil
}

func (b *baseClient) closeClient() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.connected = false
	b.client = nil
	return err
}

func (b *baseClient) listTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkConnected(); err != nil {
		return nil, err
	}
	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing child tools: %w", err)
	}
	return result.Tools, nil
}

func (b *baseClient) callTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkConnected(); err != nil {
		return nil, err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := b.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling child tool %s: %w", name, err)
	}
	return result, nil
}

// StdioChildClient spawns a subprocess and speaks MCP JSON-RPC over its
// stdin/stdout. Its stderr is retained in a bounded ring for `proxy debug`
// and never relayed to the parent process's own stdout.
type StdioChildClient struct {
	baseClient
	command string
	args    []string
	env     map[string]string

	stderrMu sync.Mutex
	stderr   []string

	onExitMu sync.Mutex
	onExit   func(error)
}

const stderrRingSize = 50

// NewStdioChildClient creates a stdio child client for command/args, with
// env merged into the spawned process's environment.
func NewStdioChildClient(command string, args []string, env map[string]string) *StdioChildClient {
	return &StdioChildClient{command: command, args: args, env: env}
}

func (c *StdioChildClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	var envStrings []string
	for k, v := range c.env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(c.command, envStrings, c.args...)
	if err != nil {
		return fmt.Errorf("spawning child %s: %w", c.command, err)
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, defaultInitTimeout)
		defer cancel()
	}

	if _, err := mcpClient.Initialize(initCtx, handshakeRequest()); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("initializing child %s: %w", c.command, err)
	}

	c.client = mcpClient
	c.connected = true

	if stderrClient, ok := mcpClient.(*client.Client); ok {
		if r, ok := client.GetStderr(stderrClient); ok {
			go c.tailStderr(r)
		}
	}
	return nil
}

func (c *StdioChildClient) tailStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		c.stderrMu.Lock()
		c.stderr = append(c.stderr, line)
		if len(c.stderr) > stderrRingSize {
			c.stderr = c.stderr[len(c.stderr)-stderrRingSize:]
		}
		c.stderrMu.Unlock()
		logging.Debug("ProxyStderr", "%s", line)
	}
	// The child's stderr pipe only closes when the subprocess exits;
	// mcp-go's client wrapper does not expose the underlying *exec.Cmd for
	// a direct Wait(), so this is the exit signal available to us.
	c.handleExit(scanner.Err())
}

// SetOnExit registers a callback invoked once the child subprocess is
// detected to have exited. Only meaningful once Initialize has started
// stderr tailing; a client that never connected never fires it.
func (c *StdioChildClient) SetOnExit(cb func(error)) {
	c.onExitMu.Lock()
	defer c.onExitMu.Unlock()
	c.onExit = cb
}

func (c *StdioChildClient) handleExit(err error) {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.client = nil
	c.mu.Unlock()
	if !wasConnected {
		return
	}

	c.onExitMu.Lock()
	cb := c.onExit
	c.onExitMu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Stderr returns the most recent lines of the child's standard error.
func (c *StdioChildClient) Stderr() []string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	return append([]string(nil), c.stderr...)
}

func (c *StdioChildClient) Close() error                     { return c.closeClient() }
func (c *StdioChildClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }
func (c *StdioChildClient) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

// SSEChildClient dials a remote MCP server over Server-Sent Events.
type SSEChildClient struct {
	baseClient
	url string
}

// NewSSEChildClient creates an SSE child client dialing url.
func NewSSEChildClient(url string) *SSEChildClient {
	return &SSEChildClient{url: url}
}

func (c *SSEChildClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	mcpClient, err := client.NewSSEMCPClient(c.url)
	if err != nil {
		return fmt.Errorf("dialing child %s: %w", c.url, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("starting SSE transport to %s: %w", c.url, err)
	}
	if _, err := mcpClient.Initialize(ctx, handshakeRequest()); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("initializing child %s: %w", c.url, err)
	}

	c.client = mcpClient
	c.connected = true
	return nil
}

func (c *SSEChildClient) Close() error                     { return c.closeClient() }
func (c *SSEChildClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }
func (c *SSEChildClient) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func handshakeRequest() mcp.InitializeRequest {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = "2024-11-05"
	req.Params.ClientInfo = mcp.Implementation{Name: "mcphost-proxy", Version: "1.0.0"}
	req.Params.Capabilities = mcp.ClientCapabilities{}
	return req
}
