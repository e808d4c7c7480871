package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elektronisch/go2n/internal/logging"
	"github.com/elektronisch/go2n/pkg/twon"
)

func (a *app) logsCmd() *cobra.Command {
	var (
		events []string
		wait   time.Duration
		count  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Stream device log events",
		Long: `Open a log channel on the device and print events as they arrive.

Without --events every event the device reports in its log capabilities is
included. The channel is closed on exit.`,
		Example: `  # Follow door events until Ctrl+C
  go2n logs --events DoorStateChanged --profile front-door

  # Print whatever arrives within 10 seconds
  go2n logs --follow=false --wait 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			return a.streamLogs(cmd.Context(), dev, events, wait, count, follow)
		},
	}
	cmd.Flags().StringSliceVar(&events, "events", nil, "Event types to include (default: all supported)")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "Long-poll wait per pull")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many events (0 = no limit)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "Keep pulling until interrupted")
	return cmd
}

func (a *app) streamLogs(ctx context.Context, dev *twon.Device, events []string, wait time.Duration, count int, follow bool) error {
	sub, err := dev.SubscribeLog(ctx, events...)
	if err != nil {
		return err
	}
	defer func() {
		// The command context may already be cancelled
		closeCtx, cancel := context.WithTimeout(context.Background(), dev.Options().Timeout())
		defer cancel()
		if err := sub.Close(closeCtx); err != nil {
			logging.Warn("failed to close log channel", zap.Int64("channel", sub.ID), zap.Error(err))
		}
	}()

	included := "all events"
	if len(events) > 0 {
		included = strings.Join(events, ", ")
	}
	_, _ = fmt.Fprintf(a.out, "Listening for %s (channel %d)...\n", included, sub.ID)

	seen := 0
	for {
		batch, err := sub.Pull(ctx, wait)
		if err != nil {
			if ctx.Err() != nil {
				// Interrupted
				return nil
			}
			return err
		}
		for _, event := range batch {
			writeLogEvent(a.out, event)
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
		if !follow {
			return nil
		}
	}
}

func writeLogEvent(w io.Writer, event twon.LogEvent) {
	line := fmt.Sprintf("%s  #%-6d %s", event.Time().Format(time.RFC3339), event.ID, event.Event)
	if len(event.Params) > 0 && string(event.Params) != "null" {
		line += "  " + string(event.Params)
	}
	_, _ = fmt.Fprintln(w, line)
}
