package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/elektronisch/go2n/internal/discovery"
	"github.com/elektronisch/go2n/internal/ui"
	"github.com/elektronisch/go2n/pkg/twon"
)

func (a *app) scanCmd() *cobra.Command {
	var (
		timeout time.Duration
		serial  string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for 2N devices on the network",
		Long: `Scan for 2N devices using mDNS/DNS-SD discovery.

Devices announce their HTTP service with a hostname that carries the model
and serial number. Found devices can be saved with 'go2n device add'.`,
		Example: `  # Scan for 5 seconds (default from preferences)
  go2n scan

  # Longer scan for busy networks
  go2n scan --timeout 15s

  # Stop as soon as one device answers
  go2n scan --serial 54-1234-5678`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				if reg, err := a.loadRegistry(); err == nil && reg.Preferences.DiscoverTimeout > 0 {
					timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
				}
			}

			if serial != "" {
				_, _ = fmt.Fprintf(a.out, "Looking for device %s (timeout: %s)...\n\n", serial, timeout)
				device, err := discovery.FindDevice(cmd.Context(), serial, timeout)
				if err != nil {
					return fmt.Errorf("device %s not found: %w", serial, err)
				}
				a.printScan([]*discovery.Device{device})
				return nil
			}

			_, _ = fmt.Fprintf(a.out, "Scanning for 2N devices (timeout: %s)...\n\n", timeout)
			devices, err := discovery.ScanForDevices(cmd.Context(), timeout)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			a.printScan(devices)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Scan duration")
	cmd.Flags().StringVar(&serial, "serial", "", "Wait for the device with this serial number only")
	return cmd
}

func (a *app) printScan(devices []*discovery.Device) {
	if len(devices) == 0 {
		_, _ = fmt.Fprintln(a.out, "No devices found.")
		_, _ = fmt.Fprintln(a.out, "\nTroubleshooting:")
		_, _ = fmt.Fprintln(a.out, "  - Check that you're on the same network segment as the device")
		_, _ = fmt.Fprintln(a.out, "  - mDNS may be disabled in the device's network settings")
		_, _ = fmt.Fprintln(a.out, "  - Try a longer --timeout")
		_, _ = fmt.Fprintln(a.out, "  - Use --host to address the device directly")
		return
	}

	_, _ = fmt.Fprintf(a.out, "Found %d device(s):\n\n", len(devices))
	for i, device := range devices {
		_, _ = fmt.Fprintf(a.out, "%d. 2N %s\n", i+1, device.Model)
		_, _ = fmt.Fprintf(a.out, "   Serial:   %s\n", device.Serial)
		_, _ = fmt.Fprintf(a.out, "   Hostname: %s\n", device.Hostname)
		_, _ = fmt.Fprintf(a.out, "   Address:  %s\n", device.Address())
		_, _ = fmt.Fprintln(a.out)
	}
	_, _ = fmt.Fprintln(a.out, "Use 'go2n info --host <address>' to read a device")
	_, _ = fmt.Fprintln(a.out, "Use 'go2n device add <name> --host <address>' to save it")
}

func (a *app) infoCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show device information and state",
		Long: `Connect to a device and print its identity, switches, IO ports and
supported log events.`,
		Example: `  go2n info --host 192.168.1.50
  go2n info --profile front-door --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			data, err := dev.Data()
			if err != nil {
				return err
			}

			switch format {
			case "summary":
				_, _ = fmt.Fprintln(a.out, data.Summary())
			case "json":
				out, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				_, _ = fmt.Fprintln(a.out, string(out))
			case "detailed":
				_, _ = fmt.Fprint(a.out, data.FormatDetailed(a.now()))
			default:
				return fmt.Errorf("unknown format %q (use detailed, summary or json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "detailed", "Output format (detailed, summary, json)")
	return cmd
}

func (a *app) switchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch",
		Short: "List, read and set switches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List switches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			data, err := dev.Data()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(a.out, data.FormatSwitches())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print whether a switch is active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwitchID(args[0])
			if err != nil {
				return err
			}
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			active, err := dev.GetSwitch(id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Switch %d: %s\n", id, onOffLabel(active))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <id> <on|off>",
		Short: "Turn a switch on or off",
		Example: `  # Open the door
  go2n switch set 1 on --profile front-door`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwitchID(args[0])
			if err != nil {
				return err
			}
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			if err := dev.SetSwitch(cmd.Context(), id, on); err != nil {
				return err
			}
			return a.reportSwitch(cmd.Context(), dev, id, on)
		},
	})

	return cmd
}

// reportSwitch re-reads switch status and prints the observed state
func (a *app) reportSwitch(ctx context.Context, dev *twon.Device, id int, requested bool) error {
	if err := dev.RefreshSwitchStatus(ctx); err != nil {
		_, _ = fmt.Fprintf(a.out, "Switch %d: set %s (state not confirmed: %v)\n", id, onOffLabel(requested), err)
		return nil
	}
	active, err := dev.GetSwitch(id)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Switch %d: %s\n", id, onOffLabel(active))
	return nil
}

func (a *app) portCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port",
		Short: "List and set IO ports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List IO ports, inputs first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			data, err := dev.Data()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(a.out, data.FormatPorts())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <port> <on|off>",
		Short: "Drive an output port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			if err := dev.SetPort(cmd.Context(), args[0], on); err != nil {
				return err
			}
			if err := dev.RefreshPortStatus(cmd.Context()); err == nil {
				data, _ := dev.Data()
				if port, ok := data.FindPort(args[0]); ok {
					on = port.State
				}
			}
			_, _ = fmt.Fprintf(a.out, "%s: %s\n", args[0], onOffLabel(on))
			return nil
		},
	})

	return cmd
}

func (a *app) restartCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Reboot the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !ui.ConfirmRestart(a.in, a.out, a.targetName()) {
				return nil
			}

			runner := ui.NewRunner(ui.RunnerConfig{
				Title:        "Device Restart",
				Command:      "go2n restart",
				Params:       []ui.Field{{Key: "Device", Value: a.targetName()}},
				Steps:        []string{"Connect", "Request restart"},
				Output:       a.out,
				Troubleshoot: twon.TroubleshootingHint,
				Now:          a.now,
			})
			return runner.Run(cmd.Context(), func(ctx context.Context, steps ui.StepReporter) ([]ui.Field, error) {
				steps.Start(1)
				dev, err := a.connect(cmd)
				if err != nil {
					steps.Fail(1, "")
					return nil, err
				}
				data, _ := dev.Data()
				steps.Complete(1, data.Model)

				steps.Start(2)
				if err := dev.Restart(ctx); err != nil {
					steps.Fail(2, "")
					return nil, err
				}
				steps.Complete(2, "")
				return []ui.Field{
					{Key: "Device", Value: data.Summary()},
					{Key: "Note", Value: "the device is back in about a minute"},
				}, nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func (a *app) audioTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audio-test",
		Short: "Play the device's audio self-test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.connect(cmd)
			if err != nil {
				return err
			}
			if err := dev.AudioTest(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out, "Audio test started")
			return nil
		},
	}
}

// targetName names the selected device for prompts and headers
func (a *app) targetName() string {
	if a.profile != "" {
		return a.profile
	}
	return a.host
}

func parseSwitchID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid switch id %q: must be a number", s)
	}
	return id, nil
}

func onOffLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
