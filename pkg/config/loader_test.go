package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupHome points HOME at a fresh temp directory so tests never pick up the
// developer's real ~/.mcp.json.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	xdg.Reload()
	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCandidatePaths(t *testing.T) {
	home := setupHome(t)
	baseDir := t.TempDir()

	paths := CandidatePaths(baseDir)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(home, ".mcp.json"), paths[0])
	assert.Equal(t, filepath.Join(baseDir, ".claude", "mcp.json"), paths[1])
	assert.Equal(t, filepath.Join(baseDir, "mcp.json"), paths[2])
}

func TestLoadMergedConfigNoFiles(t *testing.T) {
	home := setupHome(t)
	baseDir := t.TempDir()

	_, err := LoadMergedConfig(baseDir)
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), filepath.Join(home, ".mcp.json"))
	assert.Contains(t, err.Error(), filepath.Join(baseDir, ".claude", "mcp.json"))
	assert.Contains(t, err.Error(), filepath.Join(baseDir, "mcp.json"))
}

func TestLoadMergedConfigSingleFile(t *testing.T) {
	setupHome(t)
	baseDir := t.TempDir()
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `{
		"mcpServers": {
			"fetch": {
				"command": "uvx",
				"args": ["mcp-server-fetch"],
				"env": {"UV_CACHE_DIR": "/tmp/uv"}
			}
		}
	}`)

	cfg, err := LoadMergedConfig(baseDir)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)

	server := cfg.Servers["fetch"]
	assert.Equal(t, "fetch", server.Name)
	assert.Equal(t, TransportStdio, server.Type)
	assert.Equal(t, "uvx", server.Command)
	assert.Equal(t, []string{"mcp-server-fetch"}, server.Args)
	assert.Equal(t, map[string]string{"UV_CACHE_DIR": "/tmp/uv"}, server.Env)
}

func TestLoadMergedConfigMergePriority(t *testing.T) {
	home := setupHome(t)
	baseDir := t.TempDir()

	writeConfig(t, filepath.Join(home, ".mcp.json"), `{
		"mcpServers": {
			"shared": {
				"command": "global-cmd",
				"env": {"TOKEN": "global", "REGION": "eu"}
			},
			"global_only": {"command": "global-tool"}
		}
	}`)
	writeConfig(t, filepath.Join(baseDir, ".claude", "mcp.json"), `{
		"mcpServers": {
			"shared": {
				"command": "claude-cmd",
				"args": ["--verbose"],
				"env": {"TOKEN": "claude"}
			}
		}
	}`)
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `{
		"mcpServers": {
			"shared": {
				"command": "project-cmd",
				"env": {"EXTRA": "1"}
			}
		}
	}`)

	cfg, err := LoadMergedConfig(baseDir)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)

	shared := cfg.Servers["shared"]
	// Scalar fields come from the highest-priority file, including args being
	// replaced wholesale even though the project file omits it.
	assert.Equal(t, "project-cmd", shared.Command)
	assert.Empty(t, shared.Args)
	// Env maps are unioned across files with later keys winning.
	assert.Equal(t, map[string]string{
		"TOKEN":  "claude",
		"REGION": "eu",
		"EXTRA":  "1",
	}, shared.Env)

	assert.Equal(t, "global-tool", cfg.Servers["global_only"].Command)
}

func TestLoadMergedConfigHeadersUnion(t *testing.T) {
	home := setupHome(t)
	baseDir := t.TempDir()

	writeConfig(t, filepath.Join(home, ".mcp.json"), `{
		"mcpServers": {
			"api": {
				"type": "http",
				"url": "https://global.example.com/mcp",
				"headers": {"Authorization": "Bearer global", "X-Team": "infra"}
			}
		}
	}`)
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `{
		"mcpServers": {
			"api": {
				"type": "http",
				"url": "https://project.example.com/mcp",
				"headers": {"Authorization": "Bearer project"}
			}
		}
	}`)

	cfg, err := LoadMergedConfig(baseDir)
	require.NoError(t, err)

	api := cfg.Servers["api"]
	assert.Equal(t, TransportHTTP, api.Type)
	assert.Equal(t, "https://project.example.com/mcp", api.URL)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer project",
		"X-Team":        "infra",
	}, api.Headers)
}

func TestLoadMergedConfigHuJSON(t *testing.T) {
	setupHome(t)
	baseDir := t.TempDir()
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `{
		// project servers
		"mcpServers": {
			"fetch": {
				"command": "uvx",
				"args": ["mcp-server-fetch"], /* trailing comma below */
			},
		},
	}`)

	cfg, err := LoadMergedConfig(baseDir)
	require.NoError(t, err)
	assert.Equal(t, "uvx", cfg.Servers["fetch"].Command)
}

func TestLoadMergedConfigInvalidJSON(t *testing.T) {
	setupHome(t)
	baseDir := t.TempDir()
	path := filepath.Join(baseDir, "mcp.json")
	writeConfig(t, path, `{"mcpServers": `)

	_, err := LoadMergedConfig(baseDir)
	require.Error(t, err)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), path)
}

func TestLoadMergedConfigTopLevelNotObject(t *testing.T) {
	setupHome(t)
	baseDir := t.TempDir()
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `["not", "an", "object"]`)

	_, err := LoadMergedConfig(baseDir)
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
}

func TestLoadMergedConfigNoServersDefined(t *testing.T) {
	setupHome(t)
	baseDir := t.TempDir()
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `{"otherKey": {}}`)

	_, err := LoadMergedConfig(baseDir)
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "no servers defined")
}

func TestLoadMergedConfigServerEntryNotObject(t *testing.T) {
	setupHome(t)
	baseDir := t.TempDir()
	writeConfig(t, filepath.Join(baseDir, "mcp.json"), `{"mcpServers": {"bad": "nope"}}`)

	_, err := LoadMergedConfig(baseDir)
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestServerFromMapTransportInference(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		want    Transport
		wantErr string
	}{
		{
			name: "default stdio",
			data: map[string]any{"command": "tool"},
			want: TransportStdio,
		},
		{
			name: "explicit stdio",
			data: map[string]any{"type": "stdio", "command": "tool"},
			want: TransportStdio,
		},
		{
			name: "case insensitive http",
			data: map[string]any{"type": "HTTP", "url": "https://example.com/mcp"},
			want: TransportHTTP,
		},
		{
			name:    "stdio missing command",
			data:    map[string]any{"type": "stdio"},
			wantErr: "command",
		},
		{
			name:    "http missing url",
			data:    map[string]any{"type": "http"},
			wantErr: "url",
		},
		{
			name:    "unsupported type",
			data:    map[string]any{"type": "websocket", "command": "tool"},
			wantErr: "unsupported",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := serverFromMap("srv", tt.data)
			if tt.wantErr != "" {
				require.Error(t, err)
				var invalid *InvalidError
				require.ErrorAs(t, err, &invalid)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, server.Type)
			assert.Equal(t, "srv", server.Name)
		})
	}
}

func TestServerFromMapTimeouts(t *testing.T) {
	server, err := serverFromMap("api", map[string]any{
		"type":           "http",
		"url":            "https://example.com/mcp",
		"timeout":        float64(10),
		"sseReadTimeout": float64(120),
	})
	require.NoError(t, err)
	require.NotNil(t, server.Timeout)
	require.NotNil(t, server.SSEReadTimeout)
	assert.Equal(t, float64(10), *server.Timeout)
	assert.Equal(t, float64(120), *server.SSEReadTimeout)
}

func TestServerFromMapSSEReadTimeoutAlias(t *testing.T) {
	server, err := serverFromMap("api", map[string]any{
		"type":             "http",
		"url":              "https://example.com/mcp",
		"sse_read_timeout": float64(45),
	})
	require.NoError(t, err)
	require.NotNil(t, server.SSEReadTimeout)
	assert.Equal(t, float64(45), *server.SSEReadTimeout)

	// The camelCase spelling wins when both are present.
	server, err = serverFromMap("api", map[string]any{
		"type":             "http",
		"url":              "https://example.com/mcp",
		"sseReadTimeout":   float64(60),
		"sse_read_timeout": float64(45),
	})
	require.NoError(t, err)
	require.NotNil(t, server.SSEReadTimeout)
	assert.Equal(t, float64(60), *server.SSEReadTimeout)
}

func TestServerNamesSorted(t *testing.T) {
	cfg := &MergedConfig{Servers: map[string]ServerConfig{
		"zeta":  {Name: "zeta"},
		"alpha": {Name: "alpha"},
		"mid":   {Name: "mid"},
	}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, cfg.ServerNames())
}
