package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"podman-mcp/internal/requestid"
)

const (
	httpClientTimeout = 30 * time.Second
	connectRetryDelay = 500 * time.Millisecond
	connectMaxRetries = 20 // 20 * 500ms = 10s max wait
)

// Client talks to an MCP server over Streamable HTTP. The CLI uses it to
// list and call tools on a running podman-mcp server.
type Client struct {
	url        string
	maxRetries int
	client     *mcpclient.Client
	server     Implementation
	mu         sync.Mutex
	started    bool
}

// NewClient creates a client for the MCP endpoint at url.
func NewClient(url string) *Client {
	return &Client{url: url, maxRetries: connectMaxRetries}
}

// Start connects and runs the initialize handshake. It retries the
// connection to ride out a server that is still starting.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.connect(ctx); err != nil {
			lastErr = err
			if attempt < c.maxRetries-1 {
				slog.Debug("MCP connection attempt failed, retrying",
					"attempt", attempt+1, "max", c.maxRetries, "error", err, "delay", connectRetryDelay)
				select {
				case <-ctx.Done():
					return fmt.Errorf("connect to MCP server: %w", ctx.Err())
				case <-time.After(connectRetryDelay):
				}
			}
			continue
		}
		c.started = true
		return nil
	}

	return fmt.Errorf("failed to connect to MCP server after %d attempts: %w", c.maxRetries, lastErr)
}

// requestIDHeaderFunc forwards the request id from the context.
func requestIDHeaderFunc(ctx context.Context) map[string]string {
	if id := requestid.FromContext(ctx); id != "" {
		return map[string]string{requestid.Header: id}
	}
	return nil
}

// connect attempts a single connection to the MCP server.
func (c *Client) connect(ctx context.Context) error {
	t, err := transport.NewStreamableHTTP(c.url,
		transport.WithHTTPHeaderFunc(requestIDHeaderFunc),
		transport.WithHTTPTimeout(httpClientTimeout),
	)
	if err != nil {
		return fmt.Errorf("transport error: %w", err)
	}
	client := mcpclient.NewClient(t)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, httpClientTimeout)
	defer cancel()

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    "podman-mcp-cli",
		Version: "1.0.0",
	}
	initReq.Params.Capabilities = mcpgo.ClientCapabilities{}

	result, err := client.Initialize(ctx, initReq)
	if err != nil {
		client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	c.client = client
	c.server = Implementation{Name: result.ServerInfo.Name, Version: result.ServerInfo.Version}
	return nil
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	c.started = false
	return c.client.Close()
}

// ServerInfo returns what the server reported during initialize.
func (c *Client) ServerInfo() Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// ListTools fetches the server's tool descriptors.
func (c *Client) ListTools(ctx context.Context) ([]mcpgo.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, httpClientTimeout)
	defer cancel()

	result, err := c.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("MCP tools/list failed: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a tool with the given arguments. A nil args map is sent
// as an empty object.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, httpClientTimeout)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP tool call failed: %w", err)
	}

	return adaptCallToolResult(result), nil
}

// adaptCallToolResult converts an mcp-go CallToolResult to our ToolResult.
func adaptCallToolResult(result *mcpgo.CallToolResult) *ToolResult {
	r := &ToolResult{
		Content: []ContentBlock{},
		IsError: result.IsError,
	}

	for _, content := range result.Content {
		if tc, ok := mcpgo.AsTextContent(content); ok {
			r.Content = append(r.Content, ContentBlock{
				Type: "text",
				Text: tc.Text,
			})
		}
	}

	return r
}
