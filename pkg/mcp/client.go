// Package mcp wraps the MCP client library behind a per-server session
// adapter and provides tool discovery across the configured servers.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/jingkaihe/mcp-tool/pkg/config"
	"github.com/jingkaihe/mcp-tool/pkg/logger"
	"github.com/jingkaihe/mcp-tool/pkg/version"
)

const (
	clientName = "mcp-tool"

	defaultHTTPTimeout    = 30 * time.Second
	defaultSSEReadTimeout = 5 * time.Minute
)

// compoundKeySeparator joins server and tool names into the CLI-facing
// subcommand name.
const compoundKeySeparator = "__"

// ToolDescriptor describes one tool advertised by one server.
type ToolDescriptor struct {
	ServerName  string         `json:"server_name"`
	ToolName    string         `json:"tool_name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
	Title       string         `json:"title,omitempty"`
}

// CompoundKey returns the server__tool name under which the tool is addressed
// on the CLI.
func (d ToolDescriptor) CompoundKey() string {
	return d.ServerName + compoundKeySeparator + d.ToolName
}

// SplitCompoundKey extracts the server prefix from a compound subcommand
// name. ok is false when the name carries no separator.
func SplitCompoundKey(name string) (server string, ok bool) {
	idx := strings.Index(name, compoundKeySeparator)
	if idx < 0 {
		return "", false
	}
	return name[:idx], true
}

// Client is a session adapter around a single MCP server. It lives for one
// open/use/close cycle within a single CLI invocation.
type Client struct {
	config config.ServerConfig
	client *client.Client

	// opTimeout bounds individual list/call operations on HTTP sessions,
	// derived from sseReadTimeout. Zero means no per-operation deadline.
	opTimeout time.Duration
}

// NewClient builds the transport for the server definition without starting
// anything. Stdio servers spawn a child process on Initialize; HTTP servers
// use the streamable HTTP transport with the configured headers and timeout.
func NewClient(cfg config.ServerConfig) (*Client, error) {
	switch cfg.Type {
	case config.TransportHTTP:
		if cfg.URL == "" {
			return nil, errors.Errorf("server %q is missing \"url\" for HTTP transport", cfg.Name)
		}
		timeout := defaultHTTPTimeout
		if cfg.Timeout != nil {
			timeout = secondsToDuration(*cfg.Timeout)
		}
		opTimeout := defaultSSEReadTimeout
		if cfg.SSEReadTimeout != nil {
			opTimeout = secondsToDuration(*cfg.SSEReadTimeout)
		}
		opts := []transport.StreamableHTTPCOption{transport.WithHTTPTimeout(timeout)}
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		tp, err := transport.NewStreamableHTTP(cfg.URL, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "creating HTTP transport for server %q", cfg.Name)
		}
		return &Client{config: cfg, client: client.NewClient(tp), opTimeout: opTimeout}, nil
	case config.TransportStdio, "":
		if cfg.Command == "" {
			return nil, errors.Errorf("server %q is missing \"command\" for stdio transport", cfg.Name)
		}
		env := make([]string, 0, len(cfg.Env))
		for key, value := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}
		tp := transport.NewStdio(cfg.Command, env, cfg.Args...)
		return &Client{config: cfg, client: client.NewClient(tp)}, nil
	default:
		return nil, errors.Errorf("server %q has invalid transport type %q", cfg.Name, cfg.Type)
	}
}

// Name returns the logical server name.
func (c *Client) Name() string { return c.config.Name }

// Initialize starts the transport and performs the MCP handshake.
func (c *Client) Initialize(ctx context.Context) error {
	log := logger.G(ctx).WithField("server", c.config.Name)
	log.Debug("starting mcp session")

	if err := c.client.Start(ctx); err != nil {
		return errors.Wrapf(err, "starting session for server %q", c.config.Name)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    clientName,
		Version: version.Version,
	}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return errors.Wrapf(err, "initializing session for server %q", c.config.Name)
	}

	log.Debug("mcp session initialized")
	return nil
}

// ListTools returns descriptors for every tool the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	ctx, cancel := c.operationContext(ctx)
	defer cancel()

	logger.G(ctx).WithField("server", c.config.Name).Debug("listing mcp tools")
	result, err := c.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, errors.Wrapf(err, "listing tools on server %q", c.config.Name)
	}

	descriptors := make([]ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		descriptors = append(descriptors, ToolDescriptor{
			ServerName:  c.config.Name,
			ToolName:    tool.GetName(),
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
			Title:       tool.Annotations.Title,
		})
	}
	return descriptors, nil
}

// CallTool executes a single tool call and returns the raw result.
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcpgo.CallToolResult, error) {
	ctx, cancel := c.operationContext(ctx)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = arguments
	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling tool %q on server %q", toolName, c.config.Name)
	}
	return result, nil
}

// Close shuts the session down, stopping the child process for stdio servers.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return errors.Wrapf(err, "closing session for server %q", c.config.Name)
	}
	return nil
}

func (c *Client) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func schemaToMap(inputSchema mcpgo.ToolInputSchema) map[string]any {
	raw, err := inputSchema.MarshalJSON()
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
