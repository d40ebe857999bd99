package tools

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// ArgumentError describes the first argument that does not satisfy a tool's
// input schema.
type ArgumentError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Field, e.Reason)
}

// ValidateArguments checks args against schema: required properties first in
// declared order, then every supplied key in sorted order for unknown
// properties, JSON type, enum membership and numeric bounds. Only the first
// violation is reported.
func ValidateArguments(schema mcp.ToolInputSchema, args map[string]any) error {
	for _, name := range schema.Required {
		if v, ok := args[name]; !ok || v == nil {
			return &ArgumentError{Field: name, Reason: "required"}
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw, ok := schema.Properties[key]
		if !ok {
			return &ArgumentError{Field: key, Reason: "unknown field"}
		}
		prop, _ := raw.(map[string]any)
		value := args[key]
		if value == nil {
			// null stands for "not supplied" on optional properties
			continue
		}
		if err := checkProperty(key, prop, value); err != nil {
			return err
		}
	}
	return nil
}

func checkProperty(field string, prop map[string]any, value any) error {
	want, _ := prop["type"].(string)
	if want != "" && !hasType(value, want) {
		return &ArgumentError{Field: field, Reason: fmt.Sprintf("expected %s, got %s", want, jsonType(value))}
	}

	if allowed := enumValues(prop["enum"]); allowed != nil {
		s, ok := value.(string)
		if !ok || !slices.Contains(allowed, s) {
			return &ArgumentError{Field: field, Reason: fmt.Sprintf("must be one of %v", allowed)}
		}
	}

	if n, ok := value.(float64); ok {
		if min, ok := prop["minimum"].(float64); ok && n < min {
			return &ArgumentError{Field: field, Reason: fmt.Sprintf("must be >= %v", min)}
		}
		if max, ok := prop["maximum"].(float64); ok && n > max {
			return &ArgumentError{Field: field, Reason: fmt.Sprintf("must be <= %v", max)}
		}
	}
	return nil
}

func hasType(value any, want string) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		n, ok := value.(float64)
		return ok && n == math.Trunc(n) && !math.IsInf(n, 0)
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	}
	return true
}

func jsonType(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", value)
}

func enumValues(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
