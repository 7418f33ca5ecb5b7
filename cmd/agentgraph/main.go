// Command agentgraph compiles and runs agent teams described in YAML files.
package main

import (
	"context"
	"fmt"
	"os"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	os.Exit(Run(context.Background(), os.Args[1:]))
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string) int {
	root := newRootCmd(Version)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}
