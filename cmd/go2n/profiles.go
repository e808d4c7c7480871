package main

import (
	"context"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/elektronisch/go2n/internal/config"
	"github.com/elektronisch/go2n/internal/ui"
	"github.com/elektronisch/go2n/pkg/twon"
)

func (a *app) deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage saved device profiles",
		Long: `Manage named connection profiles stored in the go2n configuration file.

Profiles keep host, protocol, account name and auth method. Passwords are
never saved.`,
	}
	cmd.AddCommand(a.deviceAddCmd(), a.deviceListCmd(), a.deviceRemoveCmd())
	return cmd
}

func (a *app) deviceAddCmd() *cobra.Command {
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a device profile",
		Example: `  go2n device add front-door --host 192.168.1.50 --user api --auth digest
  go2n device add gate --host gate.local --protocol https --no-verify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			profile := &config.Device{
				Host:           a.host,
				Protocol:       a.protocol,
				Username:       a.username,
				AuthMethod:     a.authMethod,
				TLSVerify:      a.tlsVerify,
				Unprivileged:   a.unprivileged,
				TimeoutSeconds: int(math.Ceil(a.timeout.Seconds())),
			}
			if profile.TimeoutSeconds == int(twon.DefaultTimeout.Seconds()) {
				profile.TimeoutSeconds = 0
			}

			steps := []string{"Validate profile", "Connect", "Save profile"}
			runner := ui.NewRunner(ui.RunnerConfig{
				Title:   "Add Device",
				Command: "go2n device add " + name,
				Params: []ui.Field{
					{Key: "Name", Value: name},
					{Key: "Host", Value: a.host},
				},
				Steps:        steps,
				Output:       a.out,
				Troubleshoot: twon.TroubleshootingHint,
				Now:          a.now,
			})

			return runner.Run(cmd.Context(), func(ctx context.Context, s ui.StepReporter) ([]ui.Field, error) {
				s.Start(1)
				reg, err := a.loadRegistry()
				if err != nil {
					s.Fail(1, "")
					return nil, err
				}
				if err := reg.SetDevice(name, profile); err != nil {
					s.Fail(1, "")
					return nil, err
				}
				s.Complete(1, "")

				if noVerify {
					s.Skip(2, "--no-verify")
				} else {
					s.Start(2)
					data, err := a.verifyProfile(ctx, profile, reg.Preferences)
					if err != nil {
						s.Fail(2, "")
						return nil, err
					}
					reg.MarkSeen(name, data.Serial, data.Model, a.now())
					s.Complete(2, data.Model)
				}

				s.Start(3)
				if err := a.saveRegistry(reg); err != nil {
					s.Fail(3, "")
					return nil, err
				}
				s.Complete(3, "")

				details := []ui.Field{{Key: "Profile", Value: name}}
				if profile.Serial != "" {
					details = append(details, ui.Field{Key: "Serial", Value: profile.Serial})
				}
				return details, nil
			})
		},
	}
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Save without connecting to the device")
	return cmd
}

func (a *app) verifyProfile(ctx context.Context, profile *config.Device, prefs *config.Preferences) (*twon.DeviceData, error) {
	var password string
	username := profile.Username
	if username == "" && prefs != nil {
		username = prefs.DefaultUsername
	}
	if username != "" {
		var err error
		if password, err = a.password(username); err != nil {
			return nil, err
		}
	}

	opts, err := profile.ConnectionOptions(password, prefs)
	if err != nil {
		return nil, err
	}
	dev, err := twon.CreateDevice(ctx, opts, a.deviceOptions()...)
	if err != nil {
		return nil, err
	}
	return dev.Data()
}

func (a *app) deviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved device profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			names := reg.Names()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(a.out, "No saved devices. Add one with 'go2n device add <name> --host <address>'.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tHOST\tUSER\tAUTH\tMODEL\tSERIAL\tLAST SEEN")
			for _, name := range names {
				d := reg.GetDevice(name)
				lastSeen := "-"
				if !d.LastSeen.IsZero() {
					lastSeen = d.LastSeen.Local().Format("2006-01-02 15:04")
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					name, d.Host, dash(d.Username), dash(d.AuthMethod), dash(d.Model), dash(d.Serial), lastSeen)
			}
			return w.Flush()
		},
	}
}

func (a *app) deviceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved device profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			if !reg.RemoveDevice(args[0]) {
				return fmt.Errorf("no saved device %q", args[0])
			}
			if err := a.saveRegistry(reg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Removed %s\n", args[0])
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
