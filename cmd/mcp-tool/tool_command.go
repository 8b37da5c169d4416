package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jingkaihe/mcp-tool/pkg/registry"
	"github.com/jingkaihe/mcp-tool/pkg/schema"
)

// boundFlag records how a schema property was registered on the command.
// negated names the --no-<flag> companion of a boolean pair, empty when the
// companion name was already taken.
type boundFlag struct {
	spec    schema.PropertySpec
	negated string
}

// newToolCommand synthesizes the cobra command for one discovered tool:
// schema-derived flags, the generic JSON/output flags and the invocation
// routine bound to (server, tool).
func newToolCommand(reg *registry.Registry, command *registry.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:           command.Name,
		Short:         shortHelp(command),
		Long:          longHelp(command),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bound := addSchemaFlags(cmd, command.Specs)
	addGenericFlags(cmd)

	cmd.RunE = func(cobraCmd *cobra.Command, _ []string) error {
		return runToolCommand(cobraCmd, reg, command, bound)
	}
	return cmd
}

func runToolCommand(cmd *cobra.Command, reg *registry.Registry, command *registry.Command, bound []boundFlag) error {
	flags := cmd.Flags()

	output, _ := flags.GetString("output")
	output = strings.ToLower(output)
	if output != "text" && output != "json" {
		return errors.Errorf("invalid value %q for --output (expected text or json)", output)
	}

	arguments, err := parseJSONArguments(flags, cmd.InOrStdin())
	if err != nil {
		return err
	}

	flagArgs, err := collectFlagArgs(flags, bound)
	if err != nil {
		return err
	}
	// CLI flags override JSON-provided arguments for the same fields.
	maps.Copy(arguments, flagArgs)

	result, err := reg.Call(cmd.Context(), command.Tool.ServerName, command.Tool.ToolName, arguments)
	if err != nil {
		return errors.Wrap(err, "tool execution failed")
	}
	return renderResult(cmd.OutOrStdout(), result, output)
}

func addSchemaFlags(cmd *cobra.Command, specs []schema.PropertySpec) []boundFlag {
	flags := cmd.Flags()
	bound := make([]boundFlag, 0, len(specs))
	for _, spec := range specs {
		// Guard against pathological property names that would clash with
		// already-registered flags; those stay JSON-only.
		if spec.FlagName == "help" || flags.Lookup(spec.FlagName) != nil {
			continue
		}

		usage := spec.Description
		switch {
		case len(spec.Choices) > 0:
			if usage != "" {
				usage += " "
			}
			usage += fmt.Sprintf("(one of: %s)", strings.Join(spec.Choices, ", "))
			flags.String(spec.FlagName, "", usage)
		case spec.Kind == schema.KindInteger:
			flags.Int64(spec.FlagName, 0, usage)
		case spec.Kind == schema.KindNumber:
			flags.Float64(spec.FlagName, 0, usage)
		case spec.Kind == schema.KindBoolean:
			flags.Bool(spec.FlagName, false, usage)
			negated := "no-" + spec.FlagName
			if flags.Lookup(negated) != nil {
				negated = ""
			} else {
				flags.Bool(negated, false, fmt.Sprintf("Set %s to false", spec.FlagName))
			}
			bound = append(bound, boundFlag{spec: spec, negated: negated})
			continue
		default:
			flags.String(spec.FlagName, "", usage)
		}

		if spec.Required {
			_ = cmd.MarkFlagRequired(spec.FlagName)
		}
		bound = append(bound, boundFlag{spec: spec})
	}
	return bound
}

func addGenericFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("json", "", "Inline JSON arguments for the tool")
	flags.String("json-file", "", "Path to a JSON file containing arguments")
	flags.Bool("json-stdin", false, "Read JSON arguments from standard input")
	flags.String("output", "text", "Output format for tool results (text or json)")
	cmd.MarkFlagsMutuallyExclusive("json", "json-file", "json-stdin")
}

// collectFlagArgs gathers the schema-derived flag values that were explicitly
// set. Boolean pairs send true for --flag, false for --no-flag and nothing
// when neither was given.
func collectFlagArgs(flags *pflag.FlagSet, bound []boundFlag) (map[string]any, error) {
	arguments := make(map[string]any)
	for _, b := range bound {
		spec := b.spec
		switch {
		case len(spec.Choices) > 0:
			if !flags.Changed(spec.FlagName) {
				continue
			}
			value, _ := flags.GetString(spec.FlagName)
			canonical, ok := matchChoice(value, spec.Choices)
			if !ok {
				return nil, errors.Errorf("invalid value %q for --%s (expected one of: %s)",
					value, spec.FlagName, strings.Join(spec.Choices, ", "))
			}
			arguments[spec.Name] = canonical
		case spec.Kind == schema.KindBoolean:
			positive := flags.Changed(spec.FlagName)
			negative := b.negated != "" && flags.Changed(b.negated)
			if !positive && !negative {
				continue
			}
			value, _ := flags.GetBool(spec.FlagName)
			if negative {
				if no, _ := flags.GetBool(b.negated); no {
					value = false
				}
			}
			arguments[spec.Name] = value
		case spec.Kind == schema.KindInteger:
			if !flags.Changed(spec.FlagName) {
				continue
			}
			value, _ := flags.GetInt64(spec.FlagName)
			arguments[spec.Name] = value
		case spec.Kind == schema.KindNumber:
			if !flags.Changed(spec.FlagName) {
				continue
			}
			value, _ := flags.GetFloat64(spec.FlagName)
			arguments[spec.Name] = value
		default:
			if !flags.Changed(spec.FlagName) {
				continue
			}
			value, _ := flags.GetString(spec.FlagName)
			arguments[spec.Name] = value
		}
	}
	return arguments, nil
}

// matchChoice matches case-insensitively and canonicalizes to the declared
// enum casing.
func matchChoice(value string, choices []string) (string, bool) {
	for _, choice := range choices {
		if strings.EqualFold(value, choice) {
			return choice, true
		}
	}
	return "", false
}

// parseJSONArguments reads the JSON body from at most one of --json,
// --json-file and --json-stdin, defaulting to an empty object.
func parseJSONArguments(flags *pflag.FlagSet, stdin io.Reader) (map[string]any, error) {
	jsonStdin, _ := flags.GetBool("json-stdin")

	sources := 0
	for _, name := range []string{"json", "json-file"} {
		if flags.Changed(name) {
			sources++
		}
	}
	if jsonStdin {
		sources++
	}
	if sources > 1 {
		return nil, errors.New("only one of --json, --json-file or --json-stdin may be used at a time")
	}

	var raw []byte
	switch {
	case jsonStdin:
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading JSON arguments from stdin")
		}
		raw = content
	case flags.Changed("json-file"):
		path, _ := flags.GetString("json-file")
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading JSON arguments from %s", path)
		}
		raw = content
	case flags.Changed("json"):
		value, _ := flags.GetString("json")
		raw = []byte(value)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON arguments")
	}
	arguments, ok := value.(map[string]any)
	if !ok {
		return nil, errors.New("tool arguments must be a JSON object")
	}
	return arguments, nil
}

// renderResult prints the raw structured result as JSON, or the concatenated
// text blocks with double newlines collapsed. A result without content blocks
// prints nothing in text mode.
func renderResult(w io.Writer, result *mcpgo.CallToolResult, output string) error {
	if output == "json" {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode tool result as JSON")
		}
		fmt.Fprintln(w, string(encoded))
		return nil
	}

	for _, block := range result.Content {
		if text, ok := block.(mcpgo.TextContent); ok {
			fmt.Fprintln(w, strings.ReplaceAll(text.Text, "\n\n", "\n"))
		}
	}
	return nil
}

func shortHelp(command *registry.Command) string {
	if command.Tool.Title != "" {
		return command.Tool.Title
	}
	description := strings.TrimSpace(command.Tool.Description)
	if description == "" {
		return fmt.Sprintf("Execute tool %q on server %q", command.Tool.ToolName, command.Tool.ServerName)
	}
	if idx := strings.IndexByte(description, '\n'); idx >= 0 {
		description = description[:idx]
	}
	return description
}

func longHelp(command *registry.Command) string {
	description := strings.TrimSpace(command.Tool.Description)
	if description == "" {
		description = fmt.Sprintf("Execute tool %q on server %q.", command.Tool.ToolName, command.Tool.ServerName)
	}

	parts := []string{description}
	if len(command.Specs) > 0 {
		parts = append(parts,
			"Simple input fields are available as CLI flags when possible. "+
				"More complex inputs should be provided via --json, --json-file or --json-stdin.")
	} else {
		parts = append(parts,
			"Arguments should be provided as JSON via --json, --json-file or --json-stdin.")
	}
	if text := schemaText(command.Tool.InputSchema); text != "" {
		parts = append(parts, "Input schema:\n"+text)
	}
	return strings.Join(parts, "\n\n")
}

func schemaText(inputSchema map[string]any) string {
	if len(inputSchema) == 0 {
		return ""
	}
	encoded, err := json.MarshalIndent(inputSchema, "", "  ")
	if err != nil {
		return ""
	}
	if string(encoded) == "{}" {
		return ""
	}
	return string(encoded)
}
