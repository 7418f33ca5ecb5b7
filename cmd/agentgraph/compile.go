package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCompileCmd(flags *rootFlags) *cobra.Command {
	var teamPath string

	cmd := &cobra.Command{
		Use:     "compile",
		Short:   "Compile a team file and print its nodes and routing table",
		Example: `agentgraph compile --team team.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tf, err := loadTeamFile(teamPath)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags, tf.OutputReview)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			g, err := a.graph.Compile(tf.Team)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "team %s (%s)\n", g.Team.Name, g.Topology)
			_, _ = fmt.Fprintln(out, "nodes:")
			for _, n := range g.Nodes() {
				_, _ = fmt.Fprintf(out, "  %s\n", n)
			}
			_, _ = fmt.Fprintln(out, "routes:")
			for _, r := range g.Routes() {
				arrow := "->"
				if r.Conditional {
					arrow = "?>"
				}
				_, _ = fmt.Fprintf(out, "  %s %s %s\n", r.From, arrow, strings.Join(r.Targets, " | "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&teamPath, "team", "", "Path to the team YAML file")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}
