package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArguments(t *testing.T) {
	tool := mcp.NewTool("sample",
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("mode", mcp.Enum("fast", "slow")),
		mcp.WithBoolean("force"),
		mcp.WithNumber("timeout", mcp.Min(0)),
		mcp.WithString("name", mcp.Required()),
	)

	tests := []struct {
		name      string
		args      map[string]any
		wantField string
		wantIn    string
	}{
		{name: "valid", args: map[string]any{"id": "a", "name": "n"}},
		{name: "valid with optionals", args: map[string]any{"id": "a", "name": "n", "mode": "fast", "force": true, "timeout": float64(3)}},
		{name: "null optional", args: map[string]any{"id": "a", "name": "n", "mode": nil}},
		{name: "missing first required", args: map[string]any{"name": "n"}, wantField: "id", wantIn: "required"},
		{name: "required reported in declared order", args: map[string]any{}, wantField: "id", wantIn: "required"},
		{name: "null required", args: map[string]any{"id": nil, "name": "n"}, wantField: "id", wantIn: "required"},
		{name: "unknown field", args: map[string]any{"id": "a", "name": "n", "extra": 1.0}, wantField: "extra", wantIn: "unknown field"},
		{name: "wrong type", args: map[string]any{"id": 42.0, "name": "n"}, wantField: "id", wantIn: "expected string, got number"},
		{name: "wrong boolean", args: map[string]any{"id": "a", "name": "n", "force": "yes"}, wantField: "force", wantIn: "expected boolean"},
		{name: "enum", args: map[string]any{"id": "a", "name": "n", "mode": "medium"}, wantField: "mode", wantIn: "must be one of"},
		{name: "minimum", args: map[string]any{"id": "a", "name": "n", "timeout": float64(-1)}, wantField: "timeout", wantIn: ">= 0"},
		{name: "sorted key order", args: map[string]any{"id": "a", "name": "n", "zzz": 1.0, "force": "x"}, wantField: "force"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArguments(tool.InputSchema, tt.args)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.wantField, argErr.Field)
			assert.Contains(t, argErr.Reason, tt.wantIn)
		})
	}
}

func TestValidateArguments_IntegerAndContainers(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"count":  map[string]any{"type": "integer"},
			"labels": map[string]any{"type": "object"},
			"ports":  map[string]any{"type": "array"},
			"level":  map[string]any{"type": "string", "enum": []any{"low", "high"}},
		},
	}

	assert.NoError(t, ValidateArguments(schema, map[string]any{
		"count":  float64(2),
		"labels": map[string]any{"a": "b"},
		"ports":  []any{80.0},
		"level":  "high",
	}))

	var argErr *ArgumentError
	require.ErrorAs(t, ValidateArguments(schema, map[string]any{"count": 2.5}), &argErr)
	assert.Equal(t, "count", argErr.Field)
	require.ErrorAs(t, ValidateArguments(schema, map[string]any{"labels": []any{}}), &argErr)
	assert.Equal(t, "expected object, got array", argErr.Reason)
	require.ErrorAs(t, ValidateArguments(schema, map[string]any{"level": "mid"}), &argErr)
	assert.Equal(t, "level", argErr.Field)
}
