package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/elektronisch/go2n/pkg/twon"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by profile name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is a saved connection profile for one intercom.
// Passwords are NEVER stored; they are prompted or read from the environment.
type Device struct {
	Host           string    `yaml:"host"`
	Protocol       string    `yaml:"protocol,omitempty"`    // http (default) or https
	Username       string    `yaml:"username,omitempty"`    // API account
	AuthMethod     string    `yaml:"auth_method,omitempty"` // basic (default) or digest
	TLSVerify      bool      `yaml:"tls_verify,omitempty"`
	Unprivileged   bool      `yaml:"unprivileged,omitempty"`
	TimeoutSeconds int       `yaml:"timeout_seconds,omitempty"`
	Serial         string    `yaml:"serial,omitempty"`    // Filled in after a successful connection
	Model          string    `yaml:"model,omitempty"`     // Filled in after a successful connection
	LastSeen       time.Time `yaml:"last_seen,omitempty"` // Last successful connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverTimeout int    `yaml:"discover_timeout"`              // mDNS discovery timeout in seconds
	DefaultUsername string `yaml:"default_username,omitempty"`    // Used when a profile has no username
	DefaultAuth     string `yaml:"default_auth_method,omitempty"` // basic or digest
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: 5,
		DefaultAuth:     string(twon.AuthBasic),
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves a profile by name.
// Returns nil if the profile doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// SetDevice adds or replaces a profile after checking that it describes a
// usable connection.
func (r *Registry) SetDevice(name string, device *Device) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	// The password is never stored, so check the rest with a stand-in
	if _, err := device.connectionOptions("unset"); err != nil {
		return fmt.Errorf("invalid profile %q: %w", name, err)
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[name] = device
	return nil
}

// RemoveDevice deletes a profile, reporting whether it existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// Names returns the profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkSeen records identity details after a successful connection.
func (r *Registry) MarkSeen(name, serial, model string, at time.Time) {
	device := r.Devices[name]
	if device == nil {
		return
	}
	device.Serial = serial
	device.Model = model
	device.LastSeen = at
}

// ConnectionOptions builds the connection for this profile. The password
// is only used when the profile has a username.
func (d *Device) ConnectionOptions(password string, prefs *Preferences) (twon.ConnectionOptions, error) {
	device := *d
	if device.Username == "" && prefs != nil {
		device.Username = prefs.DefaultUsername
	}
	if device.AuthMethod == "" && prefs != nil {
		device.AuthMethod = prefs.DefaultAuth
	}
	return device.connectionOptions(password)
}

func (d *Device) connectionOptions(password string) (twon.ConnectionOptions, error) {
	protocol, err := twon.ParseProtocol(d.Protocol)
	if err != nil {
		return twon.ConnectionOptions{}, err
	}
	auth, err := twon.ParseAuthMethod(d.AuthMethod)
	if err != nil {
		return twon.ConnectionOptions{}, err
	}

	opts := []twon.Option{
		twon.WithProtocol(protocol),
		twon.WithAuthMethod(auth),
		twon.WithTLSVerify(d.TLSVerify),
		twon.WithUnprivileged(d.Unprivileged),
	}
	if d.Username != "" {
		opts = append(opts, twon.WithCredentials(d.Username, password))
	}
	if d.TimeoutSeconds > 0 {
		opts = append(opts, twon.WithTimeout(time.Duration(d.TimeoutSeconds)*time.Second))
	}
	return twon.NewConnectionOptions(d.Host, opts...)
}
