package main

import (
	"strings"

	"github.com/pkg/errors"
)

// rewriteHelpArgs supports `help` as a subcommand or suffix:
//
//	mcp-tool help            -> mcp-tool --help
//	mcp-tool help <command>  -> mcp-tool <command> --help
//	mcp-tool <command> help  -> mcp-tool <command> --help
func rewriteHelpArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	if args[0] == "help" {
		if len(args) == 1 {
			return []string{"--help"}
		}
		rewritten := []string{args[1], "--help"}
		return append(rewritten, args[2:]...)
	}
	if len(args) >= 2 && args[len(args)-1] == "help" {
		rewritten := append([]string{}, args[:len(args)-1]...)
		return append(rewritten, "--help")
	}
	return args
}

// rootValueFlags are root-level flags that consume the following argument.
var rootValueFlags = map[string]bool{
	"log-level":  true,
	"log-format": true,
}

// firstSubcommand returns the first non-flag argument, skipping values of
// root flags that take one.
func firstSubcommand(args []string) string {
	skipNext := false
	for _, arg := range args {
		if skipNext {
			skipNext = false
			continue
		}
		if strings.HasPrefix(arg, "-") {
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && rootValueFlags[name] {
				skipNext = true
			}
			continue
		}
		return arg
	}
	return ""
}

// checkJSONSourceExclusivity rejects multiple JSON argument sources by
// scanning the raw argument list, before any server session is opened.
func checkJSONSourceExclusivity(args []string) error {
	sources := 0
	for _, flag := range []string{"--json", "--json-file", "--json-stdin"} {
		for _, arg := range args {
			if arg == flag || strings.HasPrefix(arg, flag+"=") {
				sources++
				break
			}
		}
	}
	if sources > 1 {
		return errors.New("only one of --json, --json-file or --json-stdin may be used at a time")
	}
	return nil
}
