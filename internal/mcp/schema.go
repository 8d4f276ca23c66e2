package mcp

import (
	"fmt"
	"math"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// Kind is the primitive JSON type a schema field accepts.
type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
)

// Field describes one property of a tool's input or output object.
type Field struct {
	Kind        Kind
	Description string
	Optional    bool
}

// Schema maps property names to their constraints.
type Schema map[string]Field

func (s Schema) names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// check reports schema definition errors.
func (s Schema) check() error {
	for _, name := range s.names() {
		if name == "" {
			return fmt.Errorf("schema has empty property name")
		}
		switch s[name].Kind {
		case KindNumber, KindInteger, KindString, KindBoolean:
		default:
			return fmt.Errorf("property %q has unsupported kind %q", name, s[name].Kind)
		}
	}
	return nil
}

// Validate returns one issue per property that is missing or of the wrong
// type. Properties not named by the schema are ignored.
func (s Schema) Validate(values map[string]any) []string {
	var issues []string
	for _, name := range s.names() {
		f := s[name]
		v, ok := values[name]
		if !ok || v == nil {
			if !f.Optional {
				issues = append(issues, fmt.Sprintf("%s: required %s is missing", name, f.Kind))
			}
			continue
		}
		if !f.Kind.accepts(v) {
			issues = append(issues, fmt.Sprintf("%s: expected %s, got %s", name, f.Kind, jsonType(v)))
		}
	}
	return issues
}

func (k Kind) accepts(v any) bool {
	switch k {
	case KindNumber:
		_, ok := toFloat(v)
		return ok
	case KindInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// properties renders the schema as JSON Schema properties and the list of
// required names, for output schemas.
func (s Schema) properties() (map[string]any, []string) {
	props := make(map[string]any, len(s))
	var required []string
	for _, name := range s.names() {
		f := s[name]
		prop := map[string]any{"type": string(f.Kind)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[name] = prop
		if !f.Optional {
			required = append(required, name)
		}
	}
	return props, required
}

// inputOptions maps each field onto the matching mcp-go property option.
func (s Schema) inputOptions() []mcp.ToolOption {
	opts := make([]mcp.ToolOption, 0, len(s))
	for _, name := range s.names() {
		opts = append(opts, fieldOption(name, s[name]))
	}
	return opts
}

func fieldOption(name string, f Field) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if f.Description != "" {
		opts = append(opts, mcp.Description(f.Description))
	}
	if !f.Optional {
		opts = append(opts, mcp.Required())
	}

	switch f.Kind {
	case KindInteger:
		opts = append(opts, integerType)
		return mcp.WithNumber(name, opts...)
	case KindBoolean:
		return mcp.WithBoolean(name, opts...)
	case KindString:
		return mcp.WithString(name, opts...)
	default:
		return mcp.WithNumber(name, opts...)
	}
}

// integerType narrows a number property to JSON Schema "integer".
func integerType(schema map[string]any) {
	schema["type"] = string(KindInteger)
}

// withOutputSchema sets the tool's output schema from s.
func withOutputSchema(s Schema) mcp.ToolOption {
	return func(t *mcp.Tool) {
		props, required := s.properties()
		t.OutputSchema = mcp.ToolOutputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		}
	}
}
