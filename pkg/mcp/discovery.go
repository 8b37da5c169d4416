package mcp

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/mcp-tool/pkg/config"
)

// DiscoverTools lists tools from every configured server concurrently and
// gathers them into a flat catalog. Any single server failure fails the whole
// discovery; there is no partial catalog.
func DiscoverTools(ctx context.Context, cfg *config.MergedConfig) ([]ToolDescriptor, error) {
	return discover(ctx, cfg, cfg.ServerNames())
}

// DiscoverToolsForServer lists tools from one server only, leaving the rest
// of the configuration untouched. Used when resolving a specific subcommand
// so unrelated server processes are never started.
func DiscoverToolsForServer(ctx context.Context, cfg *config.MergedConfig, serverName string) ([]ToolDescriptor, error) {
	if _, ok := cfg.Servers[serverName]; !ok {
		return nil, config.NewNotFoundError("server %q is not defined in configuration", serverName)
	}
	return discover(ctx, cfg, []string{serverName})
}

func discover(ctx context.Context, cfg *config.MergedConfig, names []string) ([]ToolDescriptor, error) {
	// Per-task accumulators merged after the join; no shared mutable state
	// between the fan-out goroutines.
	results := make([][]ToolDescriptor, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		group.Go(func() error {
			tools, err := listServerTools(groupCtx, cfg.Servers[name])
			if err != nil {
				return err
			}
			results[i] = tools
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var descriptors []ToolDescriptor
	for _, tools := range results {
		descriptors = append(descriptors, tools...)
	}
	return descriptors, nil
}

// listServerTools runs one open-list-close cycle against a server. The
// session is closed even when listing fails; a close failure is reported
// alongside the listing error.
func listServerTools(ctx context.Context, server config.ServerConfig) ([]ToolDescriptor, error) {
	client, err := NewClient(server)
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		return nil, multierror.Append(err, client.Close()).ErrorOrNil()
	}

	tools, listErr := client.ListTools(ctx)
	if err := multierror.Append(listErr, client.Close()).ErrorOrNil(); err != nil {
		return nil, err
	}
	return tools, nil
}
