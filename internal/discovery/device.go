package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a 2N device found on the network
type Device struct {
	// Serial is the device serial number (e.g., "54-1234-5678")
	Serial string

	// Model is derived from the hostname (e.g., "IP Verso")
	Model string

	// Instance is the announced service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "2N-IP-Verso-54-1234-5678.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the device announced no IPv4
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("2N %s %s (%s) at %s", d.Model, d.Serial, d.Hostname, d.Address())
}

// Address returns host:port for the device
func (d *Device) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Host returns the value to use as a connection host: the bare IP on the
// default port, host:port otherwise
func (d *Device) Host() string {
	if d.Port == DefaultPort {
		if ip := net.ParseIP(d.IP); ip != nil && ip.To4() == nil {
			return "[" + d.IP + "]"
		}
		return d.IP
	}
	return d.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
