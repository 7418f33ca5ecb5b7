package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func newRootCmd(version string) *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:          "agentgraph",
		Short:        "agentgraph - compile and run multi-agent teams",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to the YAML config file (env overrides: AGENTGRAPH_*)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while running")

	cmd.AddCommand(newCompileCmd(&flags))
	cmd.AddCommand(newRunCmd(&flags))
	cmd.AddCommand(newResumeCmd(&flags))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
