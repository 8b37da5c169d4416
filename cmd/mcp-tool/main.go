package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/mcp-tool/pkg/logger"
	"github.com/jingkaihe/mcp-tool/pkg/presenter"
	"github.com/jingkaihe/mcp-tool/pkg/registry"
)

func main() {
	initConfig()

	args := rewriteHelpArgs(os.Args[1:])
	if err := run(args); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := checkJSONSourceExclusivity(args); err != nil {
		return err
	}

	baseDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "resolving working directory")
	}

	ctx := logger.WithLogger(context.Background(), logger.L)
	reg := registry.New(baseDir)

	rootCmd := newRootCmd()
	if err := registerToolCommands(ctx, reg, rootCmd, args); err != nil {
		return err
	}

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func initConfig() {
	viper.SetEnvPrefix("MCP_TOOL")
	viper.AutomaticEnv()
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "fmt")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.mcp-tool")
	_ = viper.ReadInConfig()

	applyLogSettings()
}

func applyLogSettings() {
	level := viper.GetString("log_level")
	if err := logger.SetLogLevel(level); err != nil {
		presenter.Warning(fmt.Sprintf("Invalid log level %q, keeping current level", level))
	}
	logger.SetLogFormat(viper.GetString("log_format"))
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-tool",
		Short: "Expose MCP servers' tools as local CLI subcommands",
		Long: `mcp-tool turns the tools advertised by configured MCP servers into local
CLI subcommands named <server>__<tool>.

Servers are configured via mcp.json, .claude/mcp.json or ~/.mcp.json.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			applyLogSettings()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("log-level", viper.GetString("log_level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", viper.GetString("log_format"), "Log format (fmt, json)")
	viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(versionCmd)
	return cmd
}

// registerToolCommands populates the root command before parsing proceeds.
// Listing the root surface discovers all servers; invoking a specific
// subcommand discovers only the server named by its prefix, so unrelated
// server processes are never started.
func registerToolCommands(ctx context.Context, reg *registry.Registry, root *cobra.Command, args []string) error {
	sub := firstSubcommand(args)
	switch sub {
	case "":
		// Root invocation or root help. A config/discovery failure degrades
		// the listing to the bare root help instead of aborting.
		for _, command := range reg.Commands(ctx) {
			root.AddCommand(newToolCommand(reg, command))
		}
		if err := reg.Err(); err != nil {
			presenter.Warning(fmt.Sprintf("Configuration error: %v", err))
		}
		return nil
	case "version", "completion", "help":
		return nil
	default:
		command, err := reg.Resolve(ctx, sub)
		if err != nil {
			return err
		}
		if command != nil {
			root.AddCommand(newToolCommand(reg, command))
		}
		// An unresolved name falls through to cobra's unknown command error.
		return nil
	}
}
