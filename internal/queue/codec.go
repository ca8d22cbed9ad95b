package queue

import (
	"encoding/json"
	"fmt"
)

// EncodeValue renders args, kwargs, and results as JSON for stores that keep
// them as text. Values JSON cannot represent are stored as their string form.
func EncodeValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err == nil {
		return string(data), nil
	}
	fallback, ferr := json.Marshal(fmt.Sprint(v))
	if ferr != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(fallback), nil
}

// DecodeArgs parses a JSON array; numbers decode as float64.
func DecodeArgs(raw string) ([]any, error) {
	if raw == "" || raw == "null" {
		return []any{}, nil
	}
	var out []any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// DecodeKwargs parses a JSON object.
func DecodeKwargs(raw string) (map[string]any, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode kwargs: %w", err)
	}
	return out, nil
}

// DecodeResult parses any JSON value.
func DecodeResult(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

// DecodeIDs parses a JSON array of strings.
func DecodeIDs(raw string) ([]string, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode depends_on: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
