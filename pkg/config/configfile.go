package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Format classifies a referenced configFile by extension.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ResolveConfigFile classifies path (resolved relative to baseDir) by its
// extension: ".toml" -> FormatTOML, ".json" -> FormatJSON, anything else
// -> FormatText.
func ResolveConfigFile(baseDir, path string) (Format, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("config: empty configFile path")
	}
	resolved := path
	if !filepath.IsAbs(path) {
		resolved = filepath.Join(baseDir, path)
	}
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".toml":
		return FormatTOML, resolved, nil
	case ".json":
		return FormatJSON, resolved, nil
	default:
		return FormatText, resolved, nil
	}
}

// LoadTOMLConfig decodes a TOML configFile into a generic map, using
// github.com/BurntSushi/toml.
func LoadTOMLConfig(path string) (map[string]any, error) {
	var out map[string]any
	if _, err := toml.DecodeFile(path, &out); err != nil {
		return nil, fmt.Errorf("config: decoding TOML file %s: %w", path, err)
	}
	return out, nil
}

// LoadJSONConfig decodes a JSON configFile into a generic map.
func LoadJSONConfig(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading JSON file %s: %w", path, err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("config: decoding JSON file %s: %w", path, err)
	}
	return out, nil
}

// LoadTextConfig reads a raw-text configFile verbatim.
func LoadTextConfig(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: reading text file %s: %w", path, err)
	}
	return string(b), nil
}
