package compiler

import (
	"fmt"

	"github.com/hupe1980/agentgraph/team"
)

// ConfigError reports a team that cannot be compiled. It is raised before
// any execution happens.
type ConfigError struct {
	Topology team.Topology
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s team: %v", e.Topology, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
