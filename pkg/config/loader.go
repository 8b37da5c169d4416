package config

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/tailscale/hujson"
)

const serversKey = "mcpServers"

// CandidatePaths returns the three configuration file locations in ascending
// priority order, whether or not they exist.
func CandidatePaths(baseDir string) []string {
	return []string{
		filepath.Join(xdg.Home, ".mcp.json"),
		filepath.Join(baseDir, ".claude", "mcp.json"),
		filepath.Join(baseDir, "mcp.json"),
	}
}

// LocateConfigFiles returns the candidate paths that exist as regular files,
// in ascending priority order.
func LocateConfigFiles(baseDir string) []string {
	var existing []string
	for _, path := range CandidatePaths(baseDir) {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			existing = append(existing, path)
		}
	}
	return existing
}

// LoadMergedConfig loads every existing configuration file, merges their
// mcpServers entries (later files win, env/headers key-wise) and validates
// the result.
func LoadMergedConfig(baseDir string) (*MergedConfig, error) {
	paths := LocateConfigFiles(baseDir)
	if len(paths) == 0 {
		return nil, NewNotFoundError(
			"no MCP configuration files found, looked for: %s",
			strings.Join(CandidatePaths(baseDir), ", "))
	}

	rawConfigs, err := loadRawConfigs(paths)
	if err != nil {
		return nil, err
	}

	serverMaps, err := mergeServerMaps(rawConfigs)
	if err != nil {
		return nil, err
	}
	if len(serverMaps) == 0 {
		return nil, NewNotFoundError(
			"no servers defined: no %q entries were found in any configuration file", serversKey)
	}

	servers := make(map[string]ServerConfig, len(serverMaps))
	for name, data := range serverMaps {
		server, err := serverFromMap(name, data)
		if err != nil {
			return nil, err
		}
		servers[name] = server
	}
	return &MergedConfig{Servers: servers}, nil
}

type rawConfig struct {
	path string
	data map[string]any
}

// loadRawConfigs parses each file as HuJSON (JSON with comments and trailing
// commas allowed) and requires a top-level object.
func loadRawConfigs(paths []string) ([]rawConfig, error) {
	configs := make([]rawConfig, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, NewInvalidError("failed to read config file %s: %v", path, err)
		}
		standardized, err := hujson.Standardize(content)
		if err != nil {
			return nil, NewInvalidError("invalid JSON in config file %s: %v", path, err)
		}
		var value any
		if err := json.Unmarshal(standardized, &value); err != nil {
			return nil, NewInvalidError("invalid JSON in config file %s: %v", path, err)
		}
		data, ok := value.(map[string]any)
		if !ok {
			return nil, NewInvalidError("config file %s must contain a JSON object at the top level", path)
		}
		configs = append(configs, rawConfig{path: path, data: data})
	}
	return configs, nil
}

// mergeServerMaps merges the mcpServers maps across files in priority order.
// For a server seen in multiple files the env and headers maps are unioned
// with later keys overriding, while every other field is replaced wholesale
// by the later file's value.
func mergeServerMaps(configs []rawConfig) (map[string]map[string]any, error) {
	merged := make(map[string]map[string]any)
	for _, cfg := range configs {
		serversValue, ok := cfg.data[serversKey]
		if !ok || serversValue == nil {
			continue
		}
		servers, ok := serversValue.(map[string]any)
		if !ok {
			return nil, NewInvalidError("%q in %s must be a JSON object", serversKey, cfg.path)
		}
		for name, value := range servers {
			entry, ok := value.(map[string]any)
			if !ok {
				return nil, NewInvalidError("server %q in %s must be a JSON object", name, cfg.path)
			}
			existing, ok := merged[name]
			if !ok {
				merged[name] = maps.Clone(entry)
				continue
			}
			merged[name] = mergeServerEntry(existing, entry)
		}
	}
	return merged, nil
}

func mergeServerEntry(existing, override map[string]any) map[string]any {
	combined := maps.Clone(existing)
	for _, key := range []string{"env", "headers"} {
		if unioned := unionMaps(existing[key], override[key]); unioned != nil {
			combined[key] = unioned
		}
	}
	for key, value := range override {
		if key == "env" || key == "headers" {
			continue
		}
		combined[key] = value
	}
	return combined
}

func unionMaps(existing, override any) map[string]any {
	existingMap, haveExisting := existing.(map[string]any)
	overrideMap, haveOverride := override.(map[string]any)
	if !haveExisting && !haveOverride {
		return nil
	}
	unioned := make(map[string]any, len(existingMap)+len(overrideMap))
	maps.Copy(unioned, existingMap)
	maps.Copy(unioned, overrideMap)
	return unioned
}

type rawServer struct {
	Type           string            `mapstructure:"type"`
	Command        string            `mapstructure:"command"`
	Args           []string          `mapstructure:"args"`
	Env            map[string]string `mapstructure:"env"`
	URL            string            `mapstructure:"url"`
	Headers        map[string]string `mapstructure:"headers"`
	Timeout        *float64          `mapstructure:"timeout"`
	SSEReadTimeout *float64          `mapstructure:"sseReadTimeout"`
}

// serverFromMap validates a merged server entry and materializes it into a
// ServerConfig. The transport is inferred from the optional type field
// (case-insensitive, default stdio).
func serverFromMap(name string, data map[string]any) (ServerConfig, error) {
	data = maps.Clone(data)
	if alias, ok := data["sse_read_timeout"]; ok {
		if _, present := data["sseReadTimeout"]; !present {
			data["sseReadTimeout"] = alias
		}
		delete(data, "sse_read_timeout")
	}

	var raw rawServer
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &raw})
	if err != nil {
		return ServerConfig{}, errors.Wrap(err, "building server config decoder")
	}
	if err := decoder.Decode(data); err != nil {
		return ServerConfig{}, NewInvalidError("server %q has invalid configuration: %v", name, err)
	}

	transport := TransportStdio
	if raw.Type != "" {
		transport = Transport(strings.ToLower(raw.Type))
	}

	switch transport {
	case TransportHTTP:
		if raw.URL == "" {
			return ServerConfig{}, NewInvalidError("server %q is missing a non-empty \"url\" field for HTTP transport", name)
		}
		return ServerConfig{
			Name:           name,
			Type:           TransportHTTP,
			URL:            raw.URL,
			Headers:        raw.Headers,
			Timeout:        raw.Timeout,
			SSEReadTimeout: raw.SSEReadTimeout,
		}, nil
	case TransportStdio:
		if raw.Command == "" {
			return ServerConfig{}, NewInvalidError("server %q is missing a non-empty \"command\" field", name)
		}
		return ServerConfig{
			Name:    name,
			Type:    TransportStdio,
			Command: raw.Command,
			Args:    raw.Args,
			Env:     raw.Env,
		}, nil
	default:
		return ServerConfig{}, NewInvalidError("server %q has unsupported \"type\" value %q", name, raw.Type)
	}
}
