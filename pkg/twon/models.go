package twon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// PortType is the direction of an IO port
type PortType string

const (
	PortInput  PortType = "input"
	PortOutput PortType = "output"
)

// SystemInfo is the result of GET /api/system/info
type SystemInfo struct {
	Variant      string `json:"variant"`
	SerialNumber string `json:"serialNumber"`
	HWVersion    string `json:"hwVersion"`
	SWVersion    string `json:"swVersion"`
	BuildType    string `json:"buildType"`
	DeviceName   string `json:"deviceName"`
	MACAddr      string `json:"macAddr"`
}

// Firmware composes the version and build type the way the device UI shows it
func (i SystemInfo) Firmware() string {
	return fmt.Sprintf("%s-%s", i.SWVersion, i.BuildType)
}

// SystemStatus is the result of GET /api/system/status
type SystemStatus struct {
	SystemTime int64 `json:"systemTime"`
	UpTime     int64 `json:"upTime"`
}

// BootTime converts the reported uptime into an absolute timestamp
func (s SystemStatus) BootTime(now time.Time) time.Time {
	return now.Add(-time.Duration(s.UpTime) * time.Second).UTC()
}

// SwitchCapability is one entry of GET /api/switch/caps
type SwitchCapability struct {
	Switch           int     `json:"switch"`
	Enabled          bool    `json:"enabled"`
	Mode             *string `json:"mode,omitempty"`
	SwitchOnDuration int     `json:"switchOnDuration,omitempty"`
	Type             string  `json:"type,omitempty"`
}

// SwitchStatus is one entry of GET /api/switch/status
type SwitchStatus struct {
	Switch int  `json:"switch"`
	Active bool `json:"active"`
	Locked bool `json:"locked"`
	Held   bool `json:"held,omitempty"`
}

// PortCapability is one entry of GET /api/io/caps
type PortCapability struct {
	Port string   `json:"port"`
	Type PortType `json:"type"`
}

// PortStatus is one entry of GET /api/io/status
type PortStatus struct {
	Port  string `json:"port"`
	State bool   `json:"state"`
}

// LogEvent is one entry returned by GET /api/log/pull
type LogEvent struct {
	ID      int64           `json:"id"`
	TZShift int             `json:"tzShift"`
	UTCTime int64           `json:"utcTime"`
	UpTime  int64           `json:"upTime"`
	Event   string          `json:"event"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Time returns the event timestamp
func (e LogEvent) Time() time.Time {
	return time.Unix(e.UTCTime, 0).UTC()
}

// fields is a decoded JSON object kept raw so presence can be checked per key
type fields map[string]json.RawMessage

func decodeObject(raw json.RawMessage, what string) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, NewParseError(fmt.Sprintf("%s: expected an object", what), err)
	}
	if f == nil {
		return nil, NewParseError(fmt.Sprintf("%s: missing result", what), nil)
	}
	return f, nil
}

// required decodes key into dst, failing when the key is absent
func (f fields) required(what, key string, dst any) error {
	raw, ok := f[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return NewParseError(fmt.Sprintf("%s: missing required field %q", what, key), nil)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewParseError(fmt.Sprintf("%s: invalid field %q", what, key), err)
	}
	return nil
}

// optional decodes key into dst when present
func (f fields) optional(what, key string, dst any) error {
	raw, ok := f[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewParseError(fmt.Sprintf("%s: invalid field %q", what, key), err)
	}
	return nil
}

// requiredBool accepts both JSON booleans and the 0/1 integers some
// firmware uses for flags and IO state
func (f fields) requiredBool(what, key string, dst *bool) error {
	raw, ok := f[key]
	if !ok {
		return NewParseError(fmt.Sprintf("%s: missing required field %q", what, key), nil)
	}
	switch string(bytes.TrimSpace(raw)) {
	case "true", "1":
		*dst = true
		return nil
	case "false", "0":
		*dst = false
		return nil
	}
	return NewParseError(fmt.Sprintf("%s: field %q is not a boolean: %s", what, key, raw), nil)
}

// decodeList extracts the array stored under key in a result object
func decodeList(raw json.RawMessage, what, key string) ([]json.RawMessage, error) {
	f, err := decodeObject(raw, what)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := f.required(what, key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeSystemInfo(raw json.RawMessage) (SystemInfo, error) {
	const what = "system info"
	f, err := decodeObject(raw, what)
	if err != nil {
		return SystemInfo{}, err
	}
	var info SystemInfo
	for key, dst := range map[string]*string{
		"variant":      &info.Variant,
		"serialNumber": &info.SerialNumber,
		"hwVersion":    &info.HWVersion,
		"swVersion":    &info.SWVersion,
		"buildType":    &info.BuildType,
		"deviceName":   &info.DeviceName,
	} {
		if err := f.required(what, key, dst); err != nil {
			return SystemInfo{}, err
		}
	}
	// Older firmware omits the MAC address
	if err := f.optional(what, "macAddr", &info.MACAddr); err != nil {
		return SystemInfo{}, err
	}
	return info, nil
}

func decodeSystemStatus(raw json.RawMessage) (SystemStatus, error) {
	const what = "system status"
	f, err := decodeObject(raw, what)
	if err != nil {
		return SystemStatus{}, err
	}
	var status SystemStatus
	if err := f.required(what, "upTime", &status.UpTime); err != nil {
		return SystemStatus{}, err
	}
	if err := f.optional(what, "systemTime", &status.SystemTime); err != nil {
		return SystemStatus{}, err
	}
	return status, nil
}

func decodeSwitchCaps(raw json.RawMessage) ([]SwitchCapability, error) {
	const what = "switch caps"
	items, err := decodeList(raw, what, "switches")
	if err != nil {
		return nil, err
	}
	caps := make([]SwitchCapability, 0, len(items))
	for _, item := range items {
		f, err := decodeObject(item, what)
		if err != nil {
			return nil, err
		}
		var c SwitchCapability
		if err := f.required(what, "switch", &c.Switch); err != nil {
			return nil, err
		}
		if err := f.requiredBool(what, "enabled", &c.Enabled); err != nil {
			return nil, err
		}
		if err := f.optional(what, "mode", &c.Mode); err != nil {
			return nil, err
		}
		if err := f.optional(what, "switchOnDuration", &c.SwitchOnDuration); err != nil {
			return nil, err
		}
		if err := f.optional(what, "type", &c.Type); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func decodeSwitchStatus(raw json.RawMessage) ([]SwitchStatus, error) {
	const what = "switch status"
	items, err := decodeList(raw, what, "switches")
	if err != nil {
		return nil, err
	}
	statuses := make([]SwitchStatus, 0, len(items))
	for _, item := range items {
		f, err := decodeObject(item, what)
		if err != nil {
			return nil, err
		}
		var s SwitchStatus
		if err := f.required(what, "switch", &s.Switch); err != nil {
			return nil, err
		}
		if err := f.requiredBool(what, "active", &s.Active); err != nil {
			return nil, err
		}
		if err := f.requiredBool(what, "locked", &s.Locked); err != nil {
			return nil, err
		}
		if err := f.optional(what, "held", &s.Held); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func decodePortCaps(raw json.RawMessage) ([]PortCapability, error) {
	const what = "io caps"
	items, err := decodeList(raw, what, "ports")
	if err != nil {
		return nil, err
	}
	caps := make([]PortCapability, 0, len(items))
	for _, item := range items {
		f, err := decodeObject(item, what)
		if err != nil {
			return nil, err
		}
		var c PortCapability
		if err := f.required(what, "port", &c.Port); err != nil {
			return nil, err
		}
		if err := f.required(what, "type", &c.Type); err != nil {
			return nil, err
		}
		if c.Type != PortInput && c.Type != PortOutput {
			return nil, NewParseError(fmt.Sprintf("%s: port %q has unknown type %q", what, c.Port, c.Type), nil)
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func decodePortStatus(raw json.RawMessage) ([]PortStatus, error) {
	const what = "io status"
	items, err := decodeList(raw, what, "ports")
	if err != nil {
		return nil, err
	}
	statuses := make([]PortStatus, 0, len(items))
	for _, item := range items {
		f, err := decodeObject(item, what)
		if err != nil {
			return nil, err
		}
		var s PortStatus
		if err := f.required(what, "port", &s.Port); err != nil {
			return nil, err
		}
		if err := f.requiredBool(what, "state", &s.State); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func decodeLogCaps(raw json.RawMessage) ([]string, error) {
	const what = "log caps"
	f, err := decodeObject(raw, what)
	if err != nil {
		return nil, err
	}
	var events []string
	if err := f.required(what, "events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func decodeLogSubscription(raw json.RawMessage) (int64, error) {
	const what = "log subscribe"
	f, err := decodeObject(raw, what)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := f.required(what, "id", &id); err != nil {
		return 0, err
	}
	return id, nil
}

func decodeLogEvents(raw json.RawMessage) ([]LogEvent, error) {
	const what = "log pull"
	items, err := decodeList(raw, what, "events")
	if err != nil {
		return nil, err
	}
	events := make([]LogEvent, 0, len(items))
	for _, item := range items {
		var e LogEvent
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, NewParseError(what+": invalid event", err)
		}
		if e.Event == "" {
			return nil, NewParseError(fmt.Sprintf("%s: missing required field %q", what, "event"), nil)
		}
		events = append(events, e)
	}
	return events, nil
}
