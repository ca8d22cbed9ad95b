package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseScalar interprets a command line value: JSON literals (numbers,
// booleans, null, quoted strings, arrays, objects) decode as such and
// anything else stays a plain string.
func parseScalar(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return raw
}

func parseArgs(raw []string) []any {
	out := make([]any, 0, len(raw))
	for _, arg := range raw {
		out = append(out, parseScalar(arg))
	}
	return out
}

// parsePairs turns "key<sep>value" entries into a map. Later keys win.
func parsePairs(entries []string, sep, flag string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, sep)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%s expects key%svalue, got %q", flag, sep, entry)
		}
		out[key] = parseScalar(value)
	}
	return out, nil
}
