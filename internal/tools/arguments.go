package tools

import "math"

// Arguments are the decoded "arguments" object of a tools/call request.
// Numbers are float64 as produced by encoding/json.
type Arguments map[string]any

// String returns the string under key, or def when absent or not a string.
func (a Arguments) String(key, def string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the boolean under key, or def when absent or not a boolean.
func (a Arguments) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

// Int returns the number under key truncated to an int. ok is false when the
// key is absent or not a number.
func (a Arguments) Int(key string) (n int, ok bool) {
	switch v := a[key].(type) {
	case float64:
		return int(math.Trunc(v)), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
