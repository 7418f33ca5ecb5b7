package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Cache, cfg.Cache)
	assert.Equal(t, DriverMemory, cfg.Checkpoint.Driver)
	assert.Equal(t, 100, cfg.Runtime.MaxSteps)
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := writeConfig(t, `
cache:
  max_cached_users: 8
checkpoint:
  driver: sqlite
  dsn: /tmp/agentgraph.db
runtime:
  terminate_on_reject: true
  tool_errors_as_results: true
mcp:
  servers:
    - name: files
      command: mcp-files
      args: ["--root", "/srv"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Cache.MaxCachedUsers)
	assert.Equal(t, 64, cfg.Cache.MaxPersonalToolsPerUser)
	assert.Equal(t, DriverSQLite, cfg.Checkpoint.Driver)
	assert.Equal(t, "/tmp/agentgraph.db", cfg.Checkpoint.DSN)
	assert.True(t, cfg.Runtime.TerminateOnReject)
	assert.True(t, cfg.Runtime.ToolErrorsAsResults)
	assert.Equal(t, 100, cfg.Runtime.MaxSteps)
	require.Len(t, cfg.MCP.Servers, 1)
	assert.Equal(t, []string{"--root", "/srv"}, cfg.MCP.Servers[0].Args)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	t.Setenv("AGENTGRAPH_LOG_LEVEL", "WARN")
	t.Setenv("AGENTGRAPH_RUNTIME_MAX_STEPS", "7")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Runtime.MaxSteps)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAIAPIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   []string
	}{
		{
			name:   "unknown driver",
			mutate: func(c *Config) { c.Checkpoint.Driver = "redis" },
			want:   []string{"checkpoint.driver must be one of [memory sqlite postgres nats] (got: redis)"},
		},
		{
			name:   "sqlite without dsn",
			mutate: func(c *Config) { c.Checkpoint.Driver = DriverSQLite },
			want:   []string{"checkpoint.dsn is required when checkpoint.driver is 'sqlite'"},
		},
		{
			name:   "nats without url",
			mutate: func(c *Config) { c.Checkpoint.Driver = DriverNATS },
			want:   []string{"checkpoint.nats_url is required"},
		},
		{
			name: "several problems",
			mutate: func(c *Config) {
				c.Cache.MaxCachedUsers = 0
				c.Runtime.MaxSteps = 0
				c.Log.Format = "xml"
			},
			want: []string{
				"cache.max_cached_users must be at least 1 (got: 0)",
				"runtime.max_steps must be at least 1 (got: 0)",
				"log.format must be one of [text json] (got: xml)",
			},
		},
		{
			name: "mcp server without transport",
			mutate: func(c *Config) {
				c.MCP.Servers = []MCPServer{{Name: "x"}}
			},
			want: []string{"mcp.servers[0] must set exactly one of url and command"},
		},
		{
			name: "mcp server without name",
			mutate: func(c *Config) {
				c.MCP.Servers = []MCPServer{{URL: "http://localhost:9000/mcp"}}
			},
			want: []string{"mcp.servers[0].name is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed:")
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestLogConfigLogging(t *testing.T) {
	var buf bytes.Buffer
	lc := LogConfig{Level: "debug", Format: "json"}.Logging(&buf)

	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)

	logging.NewLogger(lc).Debug("config.loaded", "driver", "memory")
	assert.Contains(t, buf.String(), `"msg":"config.loaded"`)
}
