package twon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Device API endpoints
const (
	EndpointSystemInfo     = "/api/system/info"
	EndpointSystemStatus   = "/api/system/status"
	EndpointSystemRestart  = "/api/system/restart"
	EndpointAudioTest      = "/api/audio/test"
	EndpointSwitchCaps     = "/api/switch/caps"
	EndpointSwitchStatus   = "/api/switch/status"
	EndpointSwitchControl  = "/api/switch/ctrl"
	EndpointIOCaps         = "/api/io/caps"
	EndpointIOStatus       = "/api/io/status"
	EndpointIOControl      = "/api/io/ctrl"
	EndpointLogCaps        = "/api/log/caps"
	EndpointLogSubscribe   = "/api/log/subscribe"
	EndpointLogUnsubscribe = "/api/log/unsubscribe"
	EndpointLogPull        = "/api/log/pull"
	EndpointDirTemplate    = "/api/dir/template"
	EndpointDirQuery       = "/api/dir/query"
	EndpointDirUpdate      = "/api/dir/update"
)

// SwitchAction is the action parameter of the switch control endpoint
type SwitchAction string

const (
	SwitchOn      SwitchAction = "on"
	SwitchOff     SwitchAction = "off"
	SwitchTrigger SwitchAction = "trigger"
	SwitchLock    SwitchAction = "lock"
	SwitchUnlock  SwitchAction = "unlock"
)

// SystemInfo fetches device identification
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	raw, err := c.Execute(ctx, EndpointSystemInfo)
	if err != nil {
		return SystemInfo{}, err
	}
	return decodeSystemInfo(raw)
}

// SystemStatus fetches uptime and system time
func (c *Client) SystemStatus(ctx context.Context) (SystemStatus, error) {
	raw, err := c.Execute(ctx, EndpointSystemStatus)
	if err != nil {
		return SystemStatus{}, err
	}
	return decodeSystemStatus(raw)
}

// SystemRestart asks the device to reboot
func (c *Client) SystemRestart(ctx context.Context) error {
	_, err := c.Execute(ctx, EndpointSystemRestart, WithMethod(http.MethodPost))
	return err
}

// AudioTest plays the audio self-test
func (c *Client) AudioTest(ctx context.Context) error {
	_, err := c.Execute(ctx, EndpointAudioTest)
	return err
}

// SwitchCaps fetches the switch capability list
func (c *Client) SwitchCaps(ctx context.Context) ([]SwitchCapability, error) {
	raw, err := c.Execute(ctx, EndpointSwitchCaps)
	if err != nil {
		return nil, err
	}
	return decodeSwitchCaps(raw)
}

// SwitchStatus fetches the live switch states
func (c *Client) SwitchStatus(ctx context.Context) ([]SwitchStatus, error) {
	raw, err := c.Execute(ctx, EndpointSwitchStatus)
	if err != nil {
		return nil, err
	}
	return decodeSwitchStatus(raw)
}

// SwitchControl applies action to a switch
func (c *Client) SwitchControl(ctx context.Context, id int, action SwitchAction) error {
	query := url.Values{}
	query.Set("switch", strconv.Itoa(id))
	query.Set("action", string(action))
	_, err := c.Execute(ctx, EndpointSwitchControl, WithQuery(query))
	return err
}

// IOCaps fetches the IO port capability list
func (c *Client) IOCaps(ctx context.Context) ([]PortCapability, error) {
	raw, err := c.Execute(ctx, EndpointIOCaps)
	if err != nil {
		return nil, err
	}
	return decodePortCaps(raw)
}

// IOStatus fetches the live IO port states
func (c *Client) IOStatus(ctx context.Context) ([]PortStatus, error) {
	raw, err := c.Execute(ctx, EndpointIOStatus)
	if err != nil {
		return nil, err
	}
	return decodePortStatus(raw)
}

// IOControl drives an output port
func (c *Client) IOControl(ctx context.Context, port string, on bool) error {
	action := "off"
	if on {
		action = "on"
	}
	query := url.Values{}
	query.Set("port", port)
	query.Set("action", action)
	_, err := c.Execute(ctx, EndpointIOControl, WithQuery(query))
	return err
}

// LogCaps fetches the names of the events the device can report
func (c *Client) LogCaps(ctx context.Context) ([]string, error) {
	raw, err := c.Execute(ctx, EndpointLogCaps)
	if err != nil {
		return nil, err
	}
	return decodeLogCaps(raw)
}

// LogSubscribe opens a log channel for events (all events when empty).
// The device drops the channel after duration without a pull.
func (c *Client) LogSubscribe(ctx context.Context, events []string, duration time.Duration) (int64, error) {
	query := url.Values{}
	query.Set("include", "new")
	if len(events) > 0 {
		query.Set("filter", strings.Join(events, ","))
	}
	if duration > 0 {
		query.Set("duration", strconv.Itoa(int(duration.Seconds())))
	}
	raw, err := c.Execute(ctx, EndpointLogSubscribe, WithQuery(query))
	if err != nil {
		return 0, err
	}
	return decodeLogSubscription(raw)
}

// LogUnsubscribe closes a log channel
func (c *Client) LogUnsubscribe(ctx context.Context, id int64) error {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(id, 10))
	_, err := c.Execute(ctx, EndpointLogUnsubscribe, WithQuery(query))
	return err
}

// LogPull waits up to wait for new events on a channel. The request
// timeout is extended by wait so a long poll is not cut short.
func (c *Client) LogPull(ctx context.Context, id int64, wait time.Duration) ([]LogEvent, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(id, 10))
	query.Set("timeout", strconv.Itoa(int(wait.Seconds())))
	raw, err := c.Execute(ctx, EndpointLogPull,
		WithQuery(query),
		WithRequestTimeout(wait+c.opts.Timeout()),
	)
	if err != nil {
		return nil, err
	}
	return decodeLogEvents(raw)
}

// DirectoryTemplate returns the directory entry template as raw JSON
func (c *Client) DirectoryTemplate(ctx context.Context) (json.RawMessage, error) {
	return c.Execute(ctx, EndpointDirTemplate)
}

// DirectoryQuery runs a directory query; body is passed through as JSON
func (c *Client) DirectoryQuery(ctx context.Context, body any) (json.RawMessage, error) {
	return c.Execute(ctx, EndpointDirQuery, WithMethod(http.MethodPost), WithJSONBody(body))
}

// DirectoryUpdate writes directory entries; body is passed through as JSON
func (c *Client) DirectoryUpdate(ctx context.Context, body any) (json.RawMessage, error) {
	return c.Execute(ctx, EndpointDirUpdate, WithMethod(http.MethodPut), WithJSONBody(body))
}
