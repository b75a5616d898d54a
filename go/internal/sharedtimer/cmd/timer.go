package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/mcdev12/fokus/go/internal/sharedtimer"
	"github.com/mcdev12/fokus/go/internal/sharedtimer/natskv"
	"github.com/mcdev12/fokus/go/internal/timemath"
)

const syncTimeout = 5 * time.Second

func newTimerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Drive the shared timer every client sees",
	}

	cmd.AddCommand(
		newDurationCmd(opts),
		newTimerActionCmd(opts, "start", sharedtimer.CommandStart, "Start the countdown"),
		newTimerActionCmd(opts, "pause", sharedtimer.CommandPause, "Pause a running countdown"),
		newTimerActionCmd(opts, "resume", sharedtimer.CommandResume, "Resume a paused countdown"),
		newTimerActionCmd(opts, "reset", sharedtimer.CommandReset, "Return to idle, keeping the duration"),
		newTimerActionCmd(opts, "stop", sharedtimer.CommandStop, "Mark the countdown completed"),
		newStatusCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

func newDurationCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "duration <minutes>",
		Short: "Set the countdown length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			durationMs, err := parseMinutes(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), opts, func(store *natskv.Store, cfg sharedtimer.Config) error {
				return runCommand(cmd.Context(), cmd.OutOrStdout(), store, cfg, sharedtimer.CommandSetDuration, durationMs)
			})
		},
	}
}

func newTimerActionCmd(opts *rootOptions, use string, command sharedtimer.Command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(store *natskv.Store, cfg sharedtimer.Config) error {
				return runCommand(cmd.Context(), cmd.OutOrStdout(), store, cfg, command, 0)
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the shared timer once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(store *natskv.Store, cfg sharedtimer.Config) error {
				return runStatus(cmd.Context(), cmd.OutOrStdout(), store, cfg, clockwork.NewRealClock())
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the shared timer until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(store *natskv.Store, cfg sharedtimer.Config) error {
				return runWatch(cmd.Context(), cmd.OutOrStdout(), store, cfg, clockwork.NewRealClock())
			})
		},
	}
}

// withStore connects to the NATS bucket for the duration of fn.
func withStore(ctx context.Context, opts *rootOptions, fn func(*natskv.Store, sharedtimer.Config) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	kv, err := natskv.Connect(ctx, cfg.NATSKV("fokusctl"))
	if err != nil {
		return fmt.Errorf("%w: %v", sharedtimer.ErrStoreUnavailable, err)
	}
	defer kv.Close()

	return fn(kv, cfg.Reconciler())
}

func parseMinutes(arg string) (int64, error) {
	minutes, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes %q: %w", arg, err)
	}
	durationMs := int64(minutes * float64(time.Minute/time.Millisecond))
	if durationMs <= 0 {
		return 0, fmt.Errorf("%w: %s minutes", sharedtimer.ErrInvalidDuration, arg)
	}
	return durationMs, nil
}

// openSynced opens a reconciler and waits for the first record from the
// store, so commands apply to the current state rather than a blank one.
func openSynced(ctx context.Context, store sharedtimer.Store, cfg sharedtimer.Config) (*sharedtimer.Reconciler, error) {
	r := sharedtimer.NewReconciler(store, nil, cfg)

	synced := make(chan struct{}, 1)
	r.OnChange(func(snap sharedtimer.Snapshot) {
		if snap.Synced {
			select {
			case synced <- struct{}{}:
			default:
			}
		}
	})

	if err := r.Open(ctx); err != nil {
		return nil, err
	}
	if r.Snapshot().Synced {
		return r, nil
	}

	select {
	case <-synced:
		return r, nil
	case <-time.After(syncTimeout):
		r.Close()
		if err := r.LastError(); err != nil {
			return nil, fmt.Errorf("timed out waiting for the shared timer: %w", err)
		}
		return nil, errors.New("timed out waiting for the shared timer")
	case <-ctx.Done():
		r.Close()
		return nil, ctx.Err()
	}
}

func runCommand(ctx context.Context, out io.Writer, store sharedtimer.Store, cfg sharedtimer.Config, command sharedtimer.Command, durationMs int64) error {
	r, err := openSynced(ctx, store, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Do(ctx, command, durationMs); err != nil {
		return err
	}
	printSnapshot(out, r.Snapshot())
	return nil
}

// recordReader reads the stored record without watching it.
type recordReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// runStatus prints the stored record projected to the current time. A
// missing record prints as a fresh idle timer.
func runStatus(ctx context.Context, out io.Writer, store recordReader, cfg sharedtimer.Config, clock sharedtimer.Clock) error {
	data, err := store.Get(ctx, cfg.TimerKey)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedtimer.ErrStoreUnavailable, err)
	}

	nowMs := clock.Now().UnixMilli()
	t, err := sharedtimer.Decode(data, nowMs)
	if err != nil {
		return err
	}
	printSnapshot(out, sharedtimer.Snapshot{
		Timer:       t,
		RemainingMs: timemath.RemainingMs(t, nowMs),
	})
	return nil
}

// runWatch prints the projection every ProjectionInterval until ctx ends.
func runWatch(ctx context.Context, out io.Writer, store sharedtimer.Store, cfg sharedtimer.Config, clock sharedtimer.Clock) error {
	r := sharedtimer.NewReconciler(store, clock, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	ticker := clock.NewTicker(cfg.ProjectionInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			fmt.Fprintln(out)
			return err
		case <-ticker.Chan():
			fmt.Fprintf(out, "\r%s", formatSnapshot(r.Snapshot()))
		}
	}
}

func formatSnapshot(snap sharedtimer.Snapshot) string {
	line := fmt.Sprintf("%-9s %8s", snap.Timer.Status, timemath.FormatClock(time.Duration(snap.RemainingMs)*time.Millisecond))
	if snap.Timer.UpdatedBy != "" {
		line += "  by " + snap.Timer.UpdatedBy
	}
	if snap.LastError != "" {
		line += "  (" + snap.LastError + ")"
	}
	return line
}

func printSnapshot(out io.Writer, snap sharedtimer.Snapshot) {
	fmt.Fprintln(out, formatSnapshot(snap))
}
