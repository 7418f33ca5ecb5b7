package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/runner"
)

type turnFlags struct {
	teamPath string
	threadID string
	userID   string
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.teamPath, "team", "", "Path to the team YAML file")
	cmd.Flags().StringVar(&f.threadID, "thread", "", "Thread id (generated when empty)")
	cmd.Flags().StringVar(&f.userID, "user", "", "User id (defaults to the team's user_id)")
	_ = cmd.MarkFlagRequired("team")
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var tf turnFlags

	cmd := &cobra.Command{
		Use:     "run [task]",
		Short:   "Run one turn of a team and stream its events as SSE lines",
		Example: `agentgraph run --team team.yaml --thread t1 "What's the weather in Berlin?"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, flags, tf, func(in *runner.Input) {
				in.Task = strings.Join(args, " ")
			})
		},
	}
	tf.register(cmd)

	return cmd
}

func newResumeCmd(flags *rootFlags) *cobra.Command {
	var (
		tf     turnFlags
		action string
		data   string
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Answer the pending interrupt of a thread and continue it",
		Example: `agentgraph resume --team team.yaml --thread t1 --action approved
agentgraph resume --team team.yaml --thread t1 --action update --data '{"city":"Paris"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tf.threadID == "" {
				return errors.New("--thread is required")
			}
			if action == "" {
				return errors.New("--action is required")
			}
			return runTurn(cmd, flags, tf, func(in *runner.Input) {
				in.Decision = &graph.Command{Action: action, Data: parseData(data)}
			})
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVar(&action, "action", "", "Decision: approved, rejected, update, review, edit or continue")
	cmd.Flags().StringVar(&data, "data", "", "Decision payload; JSON or plain text")

	return cmd
}

// parseData decodes JSON payloads and passes anything else through as text.
func parseData(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func runTurn(cmd *cobra.Command, flags *rootFlags, tf turnFlags, prepare func(in *runner.Input)) error {
	file, err := loadTeamFile(tf.teamPath)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), flags, file.OutputReview)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	in := runner.Input{
		ThreadID: tf.threadID,
		UserID:   tf.userID,
		Team:     file.Team,
	}
	if in.ThreadID == "" {
		in.ThreadID = core.NewID()
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s\n", in.ThreadID)
	}
	if in.UserID == "" {
		in.UserID = file.UserID
	}
	prepare(&in)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// The first signal stops at the next event boundary; the second aborts.
	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
			return
		}
		a.stops.Request(in.UserID, in.ThreadID)
		a.logger.Info("run.stop.requested", "thread_id", in.ThreadID)

		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	return stream(ctx, cmd.OutOrStdout(), a.graph.Run(ctx, in))
}

// stream writes every event as an SSE frame and reports a terminal error
// event as the command error.
func stream(ctx context.Context, w io.Writer, events <-chan runner.StreamEvent) error {
	var failed *runner.StreamEvent

	for ev := range events {
		if err := runner.EncodeSSE(w, ev); err != nil {
			return err
		}
		if ev.Type == runner.EventError {
			e := ev
			failed = &e
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed != nil {
		return fmt.Errorf("run failed: %s", failed.Content)
	}
	return nil
}
