package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every scalar default so viper merges partial files
// instead of zeroing missing keys.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache.max_cached_users", d.Cache.MaxCachedUsers)
	v.SetDefault("cache.max_personal_tools_per_user", d.Cache.MaxPersonalToolsPerUser)

	v.SetDefault("checkpoint.driver", d.Checkpoint.Driver)
	v.SetDefault("checkpoint.dsn", d.Checkpoint.DSN)
	v.SetDefault("checkpoint.nats_url", d.Checkpoint.NatsURL)
	v.SetDefault("checkpoint.bucket", d.Checkpoint.Bucket)

	v.SetDefault("runtime.max_steps", d.Runtime.MaxSteps)
	v.SetDefault("runtime.tool_parallelism", d.Runtime.ToolParallelism)
	v.SetDefault("runtime.terminate_on_reject", d.Runtime.TerminateOnReject)
	v.SetDefault("runtime.tool_errors_as_results", d.Runtime.ToolErrorsAsResults)
	v.SetDefault("runtime.event_buffer_size", d.Runtime.EventBufferSize)

	v.SetDefault("providers.default", d.Providers.Default)

	v.SetDefault("retrieval.backend", d.Retrieval.Backend)
	v.SetDefault("retrieval.path", d.Retrieval.Path)
	v.SetDefault("retrieval.collection", d.Retrieval.Collection)
	v.SetDefault("retrieval.k", d.Retrieval.K)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
