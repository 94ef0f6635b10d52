package dispatch

import (
	"fmt"
	"strings"
)

// Args is the raw argument mapping of one tool invocation.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("parameter '%s' must not be empty", key)
	}
	return s, nil
}

// StringDefault returns an optional string argument, falling back to def when
// absent or empty.
func (a Args) StringDefault(key, def string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return s, nil
}

// IntDefault returns an optional numeric argument, falling back to def when
// absent. JSON numbers arrive as float64.
func (a Args) IntDefault(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter '%s' must be a number", key)
	}
}

// StringSlice returns a required array-of-string argument.
func (a Args) StringSlice(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing required parameter: %s", key)
	}
	switch list := v.(type) {
	case []string:
		if len(list) == 0 {
			return nil, fmt.Errorf("parameter '%s' must not be empty", key)
		}
		return list, nil
	case []any:
		if len(list) == 0 {
			return nil, fmt.Errorf("parameter '%s' must not be empty", key)
		}
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter '%s' must be an array of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter '%s' must be an array of strings", key)
	}
}
