// Package schema projects JSON-Schema tool input definitions onto simple CLI
// flag specifications. Only top-level properties with a single unambiguous
// scalar type are promoted; everything else stays reachable through raw JSON
// argument passing.
package schema

import "sort"

// Kind is the logical type of a promoted property.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// PropertySpec describes one schema property exposed as a CLI flag.
type PropertySpec struct {
	Name        string   // property name in the schema
	FlagName    string   // long flag name, currently identical to Name
	Kind        Kind     // string, integer, number or boolean
	Required    bool     // member of the schema's top-level required list
	Choices     []string // allowed values, from a string-only enum
	Description string
}

// reservedFlagNames are property names that would collide with the generic
// flags every tool command carries.
var reservedFlagNames = map[string]struct{}{
	"json":       {},
	"json_file":  {},
	"json_stdin": {},
	"output":     {},
}

// BuildPropertySpecs returns flag specifications for the scalar top-level
// properties of an object schema, in lexicographic property order. The result
// is empty when the schema is not an object schema or has no usable
// properties.
func BuildPropertySpecs(inputSchema map[string]any) []PropertySpec {
	if inputSchema == nil || inputSchema["type"] != "object" {
		return nil
	}
	properties, ok := inputSchema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	required := requiredSet(inputSchema["required"])

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var specs []PropertySpec
	for _, name := range names {
		if _, reserved := reservedFlagNames[name]; reserved {
			continue
		}
		property, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		kind, ok := resolveKind(property["type"])
		if !ok {
			continue
		}
		specs = append(specs, PropertySpec{
			Name:        name,
			FlagName:    name,
			Kind:        kind,
			Required:    required[name],
			Choices:     stringChoices(property["enum"]),
			Description: stringValue(property["description"]),
		})
	}
	return specs
}

// resolveKind maps a schema type declaration to a scalar Kind. A type array
// resolves only when exactly one supported scalar candidate appears.
func resolveKind(value any) (Kind, bool) {
	switch typed := value.(type) {
	case string:
		return scalarKind(typed)
	case []any:
		var candidates []Kind
		for _, item := range typed {
			name, ok := item.(string)
			if !ok {
				continue
			}
			if kind, ok := scalarKind(name); ok {
				candidates = append(candidates, kind)
			}
		}
		if len(candidates) != 1 {
			return "", false
		}
		return candidates[0], true
	default:
		return "", false
	}
}

func scalarKind(name string) (Kind, bool) {
	switch kind := Kind(name); kind {
	case KindString, KindInteger, KindNumber, KindBoolean:
		return kind, true
	default:
		return "", false
	}
}

// stringChoices returns the enum values when the enum is non-empty and
// all-string; any non-string element disables choices entirely.
func stringChoices(value any) []string {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	choices := make([]string, 0, len(items))
	for _, item := range items {
		choice, ok := item.(string)
		if !ok {
			return nil
		}
		choices = append(choices, choice)
	}
	return choices
}

func requiredSet(value any) map[string]bool {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if name, ok := item.(string); ok {
			set[name] = true
		}
	}
	return set
}

func stringValue(value any) string {
	text, _ := value.(string)
	return text
}
