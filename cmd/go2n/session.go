package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elektronisch/go2n/internal/config"
	"github.com/elektronisch/go2n/internal/logging"
	"github.com/elektronisch/go2n/pkg/twon"
)

func (a *app) loadRegistry() (*config.Registry, error) {
	if a.configPath != "" {
		return config.LoadRegistryFile(a.configPath)
	}
	return config.LoadRegistry()
}

func (a *app) saveRegistry(reg *config.Registry) error {
	if a.configPath != "" {
		return reg.SaveFile(a.configPath)
	}
	return reg.Save()
}

// resolveProfile merges the selected profile (if any) with explicitly set
// flags. Flags win over the profile; without a profile every flag applies.
func (a *app) resolveProfile(cmd *cobra.Command) (*config.Device, *config.Preferences, error) {
	device := &config.Device{}
	var prefs *config.Preferences

	if a.profile != "" {
		reg, err := a.loadRegistry()
		if err != nil {
			return nil, nil, err
		}
		saved := reg.GetDevice(a.profile)
		if saved == nil {
			return nil, nil, fmt.Errorf("no saved device %q (see 'go2n device list')", a.profile)
		}
		copied := *saved
		device = &copied
		prefs = reg.Preferences
	}

	flags := cmd.Flags()
	use := func(name string) bool { return a.profile == "" || flags.Changed(name) }

	if use("host") {
		device.Host = a.host
	}
	if use("user") {
		device.Username = a.username
	}
	if use("auth") {
		device.AuthMethod = a.authMethod
	}
	if use("protocol") {
		device.Protocol = a.protocol
	}
	if use("tls-verify") {
		device.TLSVerify = a.tlsVerify
	}
	if use("unprivileged") {
		device.Unprivileged = a.unprivileged
	}
	if use("timeout") {
		device.TimeoutSeconds = int(math.Ceil(a.timeout.Seconds()))
	}

	if strings.TrimSpace(device.Host) == "" {
		return nil, nil, fmt.Errorf("no device selected: use --host or --profile (find devices with 'go2n scan')")
	}
	return device, prefs, nil
}

// connectionOptions resolves flags and profile into options, asking for
// the password when an account is configured.
func (a *app) connectionOptions(cmd *cobra.Command) (twon.ConnectionOptions, error) {
	device, prefs, err := a.resolveProfile(cmd)
	if err != nil {
		return twon.ConnectionOptions{}, err
	}

	username := device.Username
	if username == "" && prefs != nil {
		username = prefs.DefaultUsername
	}

	var password string
	if username != "" {
		password, err = a.password(username)
		if err != nil {
			return twon.ConnectionOptions{}, err
		}
	}
	return device.ConnectionOptions(password, prefs)
}

func (a *app) password(username string) (string, error) {
	if pw := a.getenv(PasswordEnvVar); pw != "" {
		return pw, nil
	}
	if a.readPassword == nil {
		return "", fmt.Errorf("password required: set %s", PasswordEnvVar)
	}
	return a.readPassword(fmt.Sprintf("Password for %s: ", username))
}

func (a *app) deviceOptions() []twon.DeviceOption {
	opts := []twon.DeviceOption{
		twon.WithLogger(logging.GetLogger()),
		twon.WithClock(a.now),
	}
	if a.httpClient != nil {
		opts = append(opts, twon.WithHTTPClient(a.httpClient))
	}
	return opts
}

// connect builds an initialized session for the selected device
func (a *app) connect(cmd *cobra.Command) (*twon.Device, error) {
	opts, err := a.connectionOptions(cmd)
	if err != nil {
		return nil, err
	}

	logging.Debug("connecting", zap.Stringer("device", opts))
	dev, err := twon.CreateDevice(cmd.Context(), opts, a.deviceOptions()...)
	if err != nil {
		return nil, err
	}

	a.remember(dev)
	return dev, nil
}

// remember records identity details on the selected profile. Failures are
// logged only; the command itself succeeded.
func (a *app) remember(dev *twon.Device) {
	if a.profile == "" {
		return
	}
	data, err := dev.Data()
	if err != nil {
		return
	}
	reg, err := a.loadRegistry()
	if err != nil {
		logging.Warn("could not load device registry", zap.Error(err))
		return
	}
	reg.MarkSeen(a.profile, data.Serial, data.Model, a.now())
	if err := a.saveRegistry(reg); err != nil {
		logging.Warn("could not update device registry", zap.Error(err))
	}
}

// parseOnOff accepts on/off and the usual boolean spellings
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid state %q (use on or off)", s)
}
