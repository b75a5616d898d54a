package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/mcdev12/fokus/go/internal/focus"
	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/timemath"
)

func newFocusCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Run a focus session in this terminal",
	}
	cmd.AddCommand(newFocusRunCmd(opts))
	return cmd
}

func newFocusRunCmd(opts *rootOptions) *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "run [minutes]",
		Short: "Count down a session; interrupt to stop early",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			minutes := cfg.Settings.DefaultFocusMinutes
			if len(args) == 1 {
				if minutes, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("invalid minutes %q: %w", args[0], err)
				}
			}

			var task *string
			if taskID != "" {
				task = &taskID
			}

			clock := clockwork.NewRealClock()
			engine := focus.NewEngine(clock, cfg.Settings, nil, nil, nil)
			_, err = runFocus(cmd.Context(), cmd.OutOrStdout(), clock, engine, minutes, task)
			return err
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "task id to attach to the session")
	return cmd
}

// runFocus starts a session and ticks it until it completes or ctx ends,
// then stops it and prints the result.
func runFocus(ctx context.Context, out io.Writer, clock focus.Clock, engine *focus.Engine, minutes int, taskID *string) (*models.FocusSession, error) {
	done := make(chan struct{})
	engine.OnComplete(func(focus.State) { close(done) })

	if err := engine.Start(ctx, minutes, taskID); err != nil {
		return nil, err
	}

	ticker := clock.NewTicker(focus.TickInterval)
	defer ticker.Stop()

	fmt.Fprintf(out, "\r%s", formatFocus(engine.State()))
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-done:
			break loop
		case <-ticker.Chan():
			engine.Tick()
			fmt.Fprintf(out, "\r%s", formatFocus(engine.State()))
		}
	}
	fmt.Fprintln(out)

	session, err := engine.Stop(context.Background())
	if session != nil {
		fmt.Fprintf(out, "session %s: %d min, %d points, %d tab switches, completed=%t\n",
			session.ID, session.DurationMinutes, session.PointsEarned, session.TabSwitches, session.Completed)
	}
	return session, err
}

func formatFocus(s focus.State) string {
	remaining := timemath.FormatClock(time.Duration(s.RemainingSeconds) * time.Second)
	return fmt.Sprintf("%8s  %d pts", remaining, s.PointsEarned)
}
