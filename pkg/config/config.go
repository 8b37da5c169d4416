// Package config locates, merges and validates MCP server configuration
// files. Servers can be defined in ~/.mcp.json, <cwd>/.claude/mcp.json and
// <cwd>/mcp.json; later files take priority, with env and header maps
// shallow-merged so project configs can override individual entries.
package config

import (
	"fmt"
	"sort"
)

// Transport identifies how a server is reached.
type Transport string

const (
	// TransportStdio starts the server as a child process and speaks over its pipes.
	TransportStdio Transport = "stdio"
	// TransportHTTP connects to a streamable HTTP endpoint.
	TransportHTTP Transport = "http"
)

// ServerConfig is the validated configuration of a single MCP server.
type ServerConfig struct {
	Name string    `json:"name"`
	Type Transport `json:"type"`

	// stdio transport
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// http transport
	URL            string            `json:"url,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Timeout        *float64          `json:"timeout,omitempty"`        // seconds
	SSEReadTimeout *float64          `json:"sseReadTimeout,omitempty"` // seconds
}

// MergedConfig is the union of all configuration files, keyed by server name.
// It is built once per CLI invocation and read-only afterwards.
type MergedConfig struct {
	Servers map[string]ServerConfig
}

// ServerNames returns all configured server names in sorted order.
func (c *MergedConfig) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotFoundError indicates that no usable configuration exists: no files at
// the candidate paths, no servers defined, or a reference to an undefined
// server.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

// NewNotFoundError builds a NotFoundError from a format string.
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

// InvalidError indicates a malformed configuration file or field. The message
// always names the offending file or server and field.
type InvalidError struct {
	msg string
}

func (e *InvalidError) Error() string { return e.msg }

// NewInvalidError builds an InvalidError from a format string.
func NewInvalidError(format string, args ...any) *InvalidError {
	return &InvalidError{msg: fmt.Sprintf(format, args...)}
}
