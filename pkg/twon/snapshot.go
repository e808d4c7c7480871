package twon

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Switch is a merged switch: enabled and mode come from the capability
// endpoint, active and locked from the live status.
type Switch struct {
	ID      int     `json:"id"`
	Enabled bool    `json:"enabled"`
	Active  bool    `json:"active"`
	Locked  bool    `json:"locked"`
	Mode    *string `json:"mode"` // nil unless Enabled and reported
}

// Port is a merged IO port
type Port struct {
	ID    string   `json:"id"`
	Type  PortType `json:"type"`
	State bool     `json:"state"`
}

// DeviceData is the device state snapshot built by a full refresh
type DeviceData struct {
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	Serial   string    `json:"serial"`
	Host     string    `json:"host"`
	MAC      string    `json:"mac"`
	Firmware string    `json:"firmware"`
	Hardware string    `json:"hardware"`
	Uptime   time.Time `json:"uptime"` // boot time; zero when not fetched

	Switches        []Switch `json:"switches"`
	Ports           []Port   `json:"ports"`
	LogCapabilities []string `json:"logCapabilities"`
}

// Clone returns a deep copy
func (d *DeviceData) Clone() *DeviceData {
	if d == nil {
		return nil
	}
	c := *d
	if d.Switches != nil {
		c.Switches = make([]Switch, len(d.Switches))
		for i, sw := range d.Switches {
			if sw.Mode != nil {
				mode := *sw.Mode
				sw.Mode = &mode
			}
			c.Switches[i] = sw
		}
	}
	if d.Ports != nil {
		c.Ports = append([]Port(nil), d.Ports...)
	}
	if d.LogCapabilities != nil {
		c.LogCapabilities = append([]string(nil), d.LogCapabilities...)
	}
	return &c
}

// FindSwitch returns the switch with id
func (d *DeviceData) FindSwitch(id int) (Switch, bool) {
	for _, sw := range d.Switches {
		if sw.ID == id {
			return sw, true
		}
	}
	return Switch{}, false
}

// FindPort returns the port with id
func (d *DeviceData) FindPort(id string) (Port, bool) {
	for _, p := range d.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// SupportsLogEvent reports whether the device can report event
func (d *DeviceData) SupportsLogEvent(event string) bool {
	for _, e := range d.LogCapabilities {
		if e == event {
			return true
		}
	}
	return false
}

// Summary returns a one-line summary of the device
func (d *DeviceData) Summary() string {
	return fmt.Sprintf("%s %s @ %s (FW: %s)", d.Model, d.Serial, d.Host, d.Firmware)
}

// FormatDeviceInfo returns a formatted string with device identification information
func (d *DeviceData) FormatDeviceInfo(now time.Time) string {
	var b strings.Builder

	b.WriteString("=== Device Information ===\n")
	b.WriteString(fmt.Sprintf("Name:           %s\n", d.Name))
	b.WriteString(fmt.Sprintf("Model:          %s\n", d.Model))
	b.WriteString(fmt.Sprintf("Serial Number:  %s\n", d.Serial))
	b.WriteString(fmt.Sprintf("MAC Address:    %s\n", valueOrNone(d.MAC)))
	b.WriteString(fmt.Sprintf("Firmware:       %s\n", d.Firmware))
	b.WriteString(fmt.Sprintf("Hardware:       %s\n", d.Hardware))
	if d.Uptime.IsZero() {
		b.WriteString("Uptime:         (unknown)\n")
	} else {
		b.WriteString(fmt.Sprintf("Uptime:         %s (since %s)\n",
			now.Sub(d.Uptime).Truncate(time.Second), d.Uptime.Format(time.RFC3339)))
	}

	return b.String()
}

// FormatSwitches returns a formatted switch table
func (d *DeviceData) FormatSwitches() string {
	var b strings.Builder

	b.WriteString("=== Switches ===\n")
	if len(d.Switches) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	for _, sw := range d.Switches {
		if !sw.Enabled {
			b.WriteString(fmt.Sprintf("Switch %d: disabled\n", sw.ID))
			continue
		}
		b.WriteString(fmt.Sprintf("Switch %d: %s%s", sw.ID, onOff(sw.Active), lockedSuffix(sw.Locked)))
		if sw.Mode != nil {
			b.WriteString(fmt.Sprintf(" (mode: %s)", *sw.Mode))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatPorts returns a formatted IO port table, inputs first
func (d *DeviceData) FormatPorts() string {
	var b strings.Builder

	b.WriteString("=== IO Ports ===\n")
	if len(d.Ports) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	ports := append([]Port(nil), d.Ports...)
	sort.SliceStable(ports, func(i, j int) bool {
		return ports[i].Type == PortInput && ports[j].Type != PortInput
	})
	for _, p := range ports {
		b.WriteString(fmt.Sprintf("%-20s %-6s %s\n", p.ID, p.Type, onOff(p.State)))
	}

	return b.String()
}

// FormatDetailed returns every section of the snapshot
func (d *DeviceData) FormatDetailed(now time.Time) string {
	var b strings.Builder

	b.WriteString(d.FormatDeviceInfo(now))
	b.WriteString("\n")
	b.WriteString(d.FormatSwitches())
	b.WriteString("\n")
	b.WriteString(d.FormatPorts())
	b.WriteString("\n")
	b.WriteString("=== Log Events ===\n")
	if len(d.LogCapabilities) == 0 {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(strings.Join(d.LogCapabilities, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func lockedSuffix(locked bool) string {
	if locked {
		return " [locked]"
	}
	return ""
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
