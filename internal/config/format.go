package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "go.yaml.in/yaml/v3"
)

// toJSON converts a YAML or TOML file to JSON so every format goes through
// the same strict decoder. JSON input is returned unchanged.
func toJSON(path string, data []byte) ([]byte, string, error) {
	var v any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
		}
		v = normalizeKeys(v)
	case ".toml":
		m := map[string]any{}
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, "toml", fmt.Errorf("toml decode: %w", err)
		}
		v = m
	default:
		return data, "json", nil
	}
	j, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("convert to json: %w", err)
	}
	return j, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."), nil
}

// normalizeKeys turns map[any]any into map[string]any recursively.
func normalizeKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeKeys(x[i])
		}
		return x
	default:
		return in
	}
}
