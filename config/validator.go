package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key rather than the Go name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks cfg and returns every problem in one error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation error: %w", err)
		}
		for _, e := range verrs {
			problems = append(problems, formatValidationError(e))
		}
	}

	switch cfg.Checkpoint.Driver {
	case DriverSQLite, DriverPostgres:
		if cfg.Checkpoint.DSN == "" {
			problems = append(problems, fmt.Sprintf("checkpoint.dsn is required when checkpoint.driver is '%s'", cfg.Checkpoint.Driver))
		}
	case DriverNATS:
		if cfg.Checkpoint.NatsURL == "" {
			problems = append(problems, "checkpoint.nats_url is required when checkpoint.driver is 'nats'")
		}
	}

	for i, s := range cfg.MCP.Servers {
		if (s.URL == "") == (s.Command == "") {
			problems = append(problems, fmt.Sprintf("mcp.servers[%d] must set exactly one of url and command", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return nil
}

func formatValidationError(e validator.FieldError) string {
	path := fieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", path, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", path, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", path, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", path, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", path, e.Tag(), e.Value())
	}
}

// fieldPath drops the root struct name: "Config.cache.max_cached_users"
// becomes "cache.max_cached_users".
func fieldPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return rest
}
