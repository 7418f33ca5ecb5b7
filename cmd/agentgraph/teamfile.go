package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentgraph/team"
)

// teamFile is the on-disk team description.
type teamFile struct {
	team.Team `yaml:",inline"`
	// OutputReview names members whose final answers wait for approval.
	OutputReview []string `yaml:"output_review,omitempty"`
}

func loadTeamFile(path string) (*teamFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team file: %w", err)
	}

	var tf teamFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse team file %s: %w", path, err)
	}

	topology, err := team.ParseTopology(string(tf.Topology))
	if err != nil {
		return nil, fmt.Errorf("team file %s: %w", path, err)
	}
	tf.Topology = topology

	if len(tf.Members) == 0 {
		return nil, fmt.Errorf("team file %s has no members", path)
	}

	for i := range tf.Members {
		m := &tf.Members[i]
		if m.ID == "" {
			m.ID = m.Name
		}
		if m.TeamID == "" {
			m.TeamID = tf.ID
		}
	}

	return &tf, nil
}
