// Package config loads the settings of the agentgraph command from YAML and
// the environment. Library packages never read it; the command translates it
// into functional options.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/hupe1980/agentgraph/logging"
)

// Checkpoint drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNATS     = "nats"
)

// Config is the root configuration.
type Config struct {
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Runtime    RuntimeConfig    `mapstructure:"runtime" yaml:"runtime"`
	Providers  ProvidersConfig  `mapstructure:"providers" yaml:"providers"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval" yaml:"retrieval"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	MCP        MCPConfig        `mapstructure:"mcp" yaml:"mcp"`
}

// CacheConfig bounds the personal tool cache.
type CacheConfig struct {
	MaxCachedUsers          int `mapstructure:"max_cached_users" yaml:"max_cached_users" env:"AGENTGRAPH_CACHE_MAX_CACHED_USERS" validate:"min=1"`
	MaxPersonalToolsPerUser int `mapstructure:"max_personal_tools_per_user" yaml:"max_personal_tools_per_user" env:"AGENTGRAPH_CACHE_MAX_PERSONAL_TOOLS_PER_USER" validate:"min=1"`
}

// CheckpointConfig selects where run state is persisted.
type CheckpointConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" env:"AGENTGRAPH_CHECKPOINT_DRIVER" validate:"required,oneof=memory sqlite postgres nats"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN     string `mapstructure:"dsn" yaml:"dsn" env:"AGENTGRAPH_CHECKPOINT_DSN"`
	NatsURL string `mapstructure:"nats_url" yaml:"nats_url" env:"AGENTGRAPH_CHECKPOINT_NATS_URL"`
	Bucket  string `mapstructure:"bucket" yaml:"bucket" env:"AGENTGRAPH_CHECKPOINT_BUCKET"`
}

// RuntimeConfig tunes graph execution.
type RuntimeConfig struct {
	MaxSteps            int  `mapstructure:"max_steps" yaml:"max_steps" env:"AGENTGRAPH_RUNTIME_MAX_STEPS" validate:"min=1"`
	ToolParallelism     int  `mapstructure:"tool_parallelism" yaml:"tool_parallelism" env:"AGENTGRAPH_RUNTIME_TOOL_PARALLELISM" validate:"min=0"`
	TerminateOnReject   bool `mapstructure:"terminate_on_reject" yaml:"terminate_on_reject" env:"AGENTGRAPH_RUNTIME_TERMINATE_ON_REJECT"`
	ToolErrorsAsResults bool `mapstructure:"tool_errors_as_results" yaml:"tool_errors_as_results" env:"AGENTGRAPH_RUNTIME_TOOL_ERRORS_AS_RESULTS"`
	EventBufferSize     int  `mapstructure:"event_buffer_size" yaml:"event_buffer_size" env:"AGENTGRAPH_RUNTIME_EVENT_BUFFER_SIZE" validate:"min=0"`
}

// ProvidersConfig holds model provider credentials and the fallback provider
// for members that name none.
type ProvidersConfig struct {
	Default         string `mapstructure:"default" yaml:"default" env:"AGENTGRAPH_PROVIDER" validate:"required,oneof=openai anthropic"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key" yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
}

// RetrievalConfig configures the upload vector store.
type RetrievalConfig struct {
	// Backend is chromem for embedding search or keyword for plain term
	// matching without an embedding model.
	Backend string `mapstructure:"backend" yaml:"backend" env:"AGENTGRAPH_RETRIEVAL_BACKEND" validate:"oneof=chromem keyword"`
	// Path enables persistence. Empty keeps uploads in memory.
	Path       string `mapstructure:"path" yaml:"path" env:"AGENTGRAPH_RETRIEVAL_PATH"`
	Collection string `mapstructure:"collection" yaml:"collection" env:"AGENTGRAPH_RETRIEVAL_COLLECTION"`
	K          int    `mapstructure:"k" yaml:"k" env:"AGENTGRAPH_RETRIEVAL_K" validate:"min=1"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" env:"AGENTGRAPH_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" env:"AGENTGRAPH_LOG_FORMAT" validate:"oneof=text json"`
}

// MCPConfig lists the MCP servers personal tools are loaded from.
type MCPConfig struct {
	Servers []MCPServer `mapstructure:"servers" yaml:"servers" validate:"dive"`
}

// MCPServer is one MCP connection. Exactly one of URL and Command is set.
type MCPServer struct {
	Name    string            `mapstructure:"name" yaml:"name" validate:"required"`
	URL     string            `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
	Command string            `mapstructure:"command" yaml:"command"`
	Args    []string          `mapstructure:"args" yaml:"args"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
	Env     map[string]string `mapstructure:"env" yaml:"env"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxCachedUsers:          256,
			MaxPersonalToolsPerUser: 64,
		},
		Checkpoint: CheckpointConfig{
			Driver: DriverMemory,
			Bucket: "AGENTGRAPH_CHECKPOINTS",
		},
		Runtime: RuntimeConfig{
			MaxSteps:        100,
			ToolParallelism: 0,
			EventBufferSize: 100,
		},
		Providers: ProvidersConfig{
			Default: "openai",
		},
		Retrieval: RetrievalConfig{
			Backend:    "chromem",
			Collection: "uploads",
			K:          4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Logging returns the logging configuration writing to w. A nil w writes to
// stderr.
func (c LogConfig) Logging(w io.Writer) *logging.Config {
	if w == nil {
		w = os.Stderr
	}
	return &logging.Config{
		Level:  logging.ParseLevel(c.Level),
		Format: strings.ToLower(c.Format),
		Output: w,
	}
}
