// Package registry holds the run-scoped state behind the dynamic CLI
// surface: the merged configuration, the discovered tool catalog and the
// first error encountered. One Registry lives for exactly one CLI invocation
// and is threaded explicitly through listing, resolution and invocation.
package registry

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/jingkaihe/mcp-tool/pkg/config"
	"github.com/jingkaihe/mcp-tool/pkg/mcp"
	"github.com/jingkaihe/mcp-tool/pkg/schema"
)

// Command is a resolved tool subcommand: the owning server, the tool
// descriptor and the flag specs projected from its input schema.
type Command struct {
	Name   string
	Server config.ServerConfig
	Tool   mcp.ToolDescriptor
	Specs  []schema.PropertySpec
}

// Registry caches the merged config, the tool catalog and the first
// config/discovery error for the duration of one run, so listing and
// resolution report the same failure instead of re-attempting.
type Registry struct {
	baseDir string

	discoverAll    func(ctx context.Context, cfg *config.MergedConfig) ([]mcp.ToolDescriptor, error)
	discoverServer func(ctx context.Context, cfg *config.MergedConfig, serverName string) ([]mcp.ToolDescriptor, error)

	cfg         *config.MergedConfig
	descriptors []mcp.ToolDescriptor
	discovered  bool
	err         error
}

// New creates a Registry rooted at baseDir (the directory searched for
// project-level config files).
func New(baseDir string) *Registry {
	return &Registry{
		baseDir:        baseDir,
		discoverAll:    mcp.DiscoverTools,
		discoverServer: mcp.DiscoverToolsForServer,
	}
}

// Config loads and caches the merged configuration. A load failure is cached
// and returned on every subsequent call.
func (r *Registry) Config() (*config.MergedConfig, error) {
	if r.cfg != nil || r.err != nil {
		return r.cfg, r.err
	}
	cfg, err := config.LoadMergedConfig(r.baseDir)
	if err != nil {
		r.err = err
		return nil, err
	}
	r.cfg = cfg
	return cfg, nil
}

// Err returns the cached config/discovery error, if any.
func (r *Registry) Err() error {
	return r.err
}

func (r *Registry) ensureDiscovery(ctx context.Context) {
	if r.discovered || r.err != nil {
		return
	}
	cfg, err := r.Config()
	if err != nil {
		return
	}
	descriptors, err := r.discoverAll(ctx, cfg)
	if err != nil {
		r.err = errors.Wrap(err, "tool discovery failed")
		return
	}
	r.descriptors = descriptors
	r.discovered = true
}

func (r *Registry) ensureDiscoveryForServer(ctx context.Context, serverName string) {
	if r.discovered || r.err != nil {
		return
	}
	cfg, err := r.Config()
	if err != nil {
		return
	}
	descriptors, err := r.discoverServer(ctx, cfg, serverName)
	if err != nil {
		r.err = errors.Wrap(err, "tool discovery failed")
		return
	}
	r.descriptors = descriptors
	r.discovered = true
}

// CommandNames runs discovery across all servers (unless already done or a
// prior error is cached) and returns the deduplicated, sorted compound keys.
// On any config or discovery error it returns an empty list; the error stays
// available via Err.
func (r *Registry) CommandNames(ctx context.Context) []string {
	r.ensureDiscovery(ctx)
	if r.err != nil || len(r.descriptors) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(r.descriptors))
	names := make([]string, 0, len(r.descriptors))
	for _, descriptor := range r.descriptors {
		key := descriptor.CompoundKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up the tool behind a compound subcommand name, running
// discovery scoped to the server prefix so unrelated servers are never
// started. A cached config/discovery error is surfaced as the resolution
// error. An unknown name resolves to (nil, nil).
func (r *Registry) Resolve(ctx context.Context, name string) (*Command, error) {
	if server, ok := mcp.SplitCompoundKey(name); ok {
		r.ensureDiscoveryForServer(ctx, server)
	} else {
		r.ensureDiscovery(ctx)
	}
	if r.err != nil {
		return nil, r.err
	}

	// Duplicate tool names within one server's listing: the last entry wins.
	var target *mcp.ToolDescriptor
	for i := range r.descriptors {
		if r.descriptors[i].CompoundKey() == name {
			target = &r.descriptors[i]
		}
	}
	if target == nil {
		return nil, nil
	}
	server, ok := r.cfg.Servers[target.ServerName]
	if !ok {
		return nil, nil
	}
	return &Command{
		Name:   name,
		Server: server,
		Tool:   *target,
		Specs:  schema.BuildPropertySpecs(target.InputSchema),
	}, nil
}

// Commands resolves every known compound key. On any cached error it returns
// an empty list so the CLI surface degrades to the root help.
func (r *Registry) Commands(ctx context.Context) []*Command {
	names := r.CommandNames(ctx)
	commands := make([]*Command, 0, len(names))
	for _, name := range names {
		command, err := r.Resolve(ctx, name)
		if err != nil || command == nil {
			continue
		}
		commands = append(commands, command)
	}
	return commands
}

// Call opens a fresh session to the target server, invokes the tool once and
// closes the session. The session is closed even when the call fails; a close
// failure is reported alongside the call error.
func (r *Registry) Call(ctx context.Context, serverName, toolName string, arguments map[string]any) (*mcpgo.CallToolResult, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	server, ok := cfg.Servers[serverName]
	if !ok {
		return nil, config.NewNotFoundError("server %q is not defined in configuration", serverName)
	}

	client, err := mcp.NewClient(server)
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		return nil, multierror.Append(err, client.Close()).ErrorOrNil()
	}

	result, callErr := client.CallTool(ctx, toolName, arguments)
	if err := multierror.Append(callErr, client.Close()).ErrorOrNil(); err != nil {
		return nil, err
	}
	return result, nil
}
