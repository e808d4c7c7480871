package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elektronisch/go2n/internal/logging"
	"github.com/elektronisch/go2n/internal/metrics"
	"github.com/elektronisch/go2n/internal/ui"
	"github.com/elektronisch/go2n/pkg/twon"
)

func (a *app) watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live switch and port state",
		Long: `Keep a session open and redraw switch and IO port state on an interval.

Press r to refresh immediately, q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.connectionOptions(cmd)
			if err != nil {
				return err
			}
			dev, err := twon.NewDevice(opts, a.deviceOptions()...)
			if err != nil {
				return err
			}
			return ui.RunWatch(cmd.Context(), a.targetName(), interval, func(ctx context.Context) (string, error) {
				return a.watchFrame(ctx, dev)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Refresh interval")
	return cmd
}

// watchFrame refreshes dev (initializing it first if needed) and renders
// its state.
func (a *app) watchFrame(ctx context.Context, dev *twon.Device) (string, error) {
	if err := a.poll(ctx, dev); err != nil {
		return "", err
	}
	data, err := dev.Data()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(data.Summary())
	b.WriteString("\n\n")
	b.WriteString(data.FormatSwitches())
	b.WriteString("\n")
	b.WriteString(data.FormatPorts())
	return b.String(), nil
}

// poll brings dev up to date: a full initialize when it is not Ready,
// otherwise the cheap status refreshes.
func (a *app) poll(ctx context.Context, dev *twon.Device) error {
	if dev.State() != twon.StateReady {
		return dev.Initialize(ctx)
	}
	if dev.Options().Unprivileged() {
		return nil
	}
	if err := dev.RefreshSwitchStatus(ctx); err != nil {
		return err
	}
	if err := dev.RefreshPortStatus(ctx); err != nil {
		return err
	}
	if _, err := dev.RefreshUptimeIfDrifted(ctx); err != nil {
		return err
	}
	return nil
}

// fullRefreshEvery is how many metrics polls pass between full refreshes,
// which pick up switch and port capability changes.
const fullRefreshEvery = 10

func (a *app) metricsCmd() *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics for a device",
		Long: `Poll a device on an interval and serve its switch and port state,
together with request metrics, at /metrics in the Prometheus format.`,
		Example: `  go2n metrics --profile front-door --listen :9120 --interval 30s`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.connectionOptions(cmd)
			if err != nil {
				return err
			}
			dev, err := twon.NewDevice(opts, a.deviceOptions()...)
			if err != nil {
				return err
			}
			return a.serveMetrics(cmd.Context(), dev, listen, interval)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":9120", "Address to serve /metrics on")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Poll interval")
	return cmd
}

func (a *app) serveMetrics(ctx context.Context, dev *twon.Device, listen string, interval time.Duration) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	_, _ = fmt.Fprintf(a.out, "Serving metrics on http://%s/metrics (every %s)\n", ln.Addr(), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	host := dev.Options().Host()
	for polls := 0; ; polls++ {
		a.recordPoll(ctx, dev, host, polls > 0 && polls%fullRefreshEvery == 0)

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// recordPoll polls dev and exports its state. With full set a ready device
// is refreshed completely instead of only its status.
func (a *app) recordPoll(ctx context.Context, dev *twon.Device, host string, full bool) {
	var err error
	if full && dev.State() == twon.StateReady {
		err = dev.Update(ctx)
	} else {
		err = a.poll(ctx, dev)
	}
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn("device poll failed", zap.String("host", host), zap.Error(err))
		}
		metrics.SetDeviceUp(host, false)
		return
	}
	metrics.SetDeviceUp(host, true)

	data, err := dev.Data()
	if err != nil {
		return
	}
	metrics.ClearDeviceState(host)
	for _, sw := range data.Switches {
		if sw.Enabled {
			metrics.SetSwitchActive(host, sw.ID, sw.Active)
		}
	}
	for _, p := range data.Ports {
		metrics.SetPortState(host, p.ID, string(p.Type), p.State)
	}
}
