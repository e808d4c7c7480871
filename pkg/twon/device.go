package twon

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elektronisch/go2n/internal/logging"
	"github.com/elektronisch/go2n/internal/metrics"
)

// UptimeDriftThreshold is how far a fresh boot time must move before
// RefreshUptimeIfDrifted replaces the stored one
const UptimeDriftThreshold = 5 * time.Second

// State is the lifecycle state of a Device
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Device is a session with one intercom. Every command and accessor
// requires a successful Initialize first.
type Device struct {
	opts   ConnectionOptions
	client *Client
	logger *zap.Logger
	now    func() time.Time

	state atomic.Int32

	mu   sync.RWMutex
	data *DeviceData

	errMu   sync.Mutex
	lastErr error
}

type deviceConfig struct {
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// DeviceOption configures a Device
type DeviceOption func(*deviceConfig)

// WithHTTPClient supplies the base HTTP client (transport, proxy, etc.)
func WithHTTPClient(client *http.Client) DeviceOption {
	return func(c *deviceConfig) { c.httpClient = client }
}

// WithLogger sets the logger used by the session and its client
func WithLogger(logger *zap.Logger) DeviceOption {
	return func(c *deviceConfig) { c.logger = logger }
}

// WithClock replaces time.Now for uptime calculations
func WithClock(now func() time.Time) DeviceOption {
	return func(c *deviceConfig) { c.now = now }
}

// NewDevice creates an uninitialized session. It fails only when the
// supplied HTTP client cannot carry the TLS policy of opts.
func NewDevice(opts ConnectionOptions, options ...DeviceOption) (*Device, error) {
	cfg := deviceConfig{now: time.Now}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.GetLogger()
	}

	client, err := NewClient(opts, cfg.httpClient, cfg.logger)
	if err != nil {
		return nil, err
	}
	return &Device{
		opts:   opts,
		client: client,
		logger: cfg.logger.With(zap.String("host", opts.Host())),
		now:    cfg.now,
	}, nil
}

// CreateDevice creates a session and initializes it
func CreateDevice(ctx context.Context, opts ConnectionOptions, options ...DeviceOption) (*Device, error) {
	d, err := NewDevice(opts, options...)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Options returns the connection options of the session
func (d *Device) Options() ConnectionOptions { return d.opts }

// Client returns the request pipeline, for endpoints the session does not wrap
func (d *Device) Client() *Client { return d.client }

// State returns the current lifecycle state
func (d *Device) State() State { return State(d.state.Load()) }

// LastError returns the most recent failure of a remote call, or nil
func (d *Device) LastError() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.lastErr
}

func (d *Device) setLastError(err error) {
	d.errMu.Lock()
	d.lastErr = err
	d.errMu.Unlock()
}

// track records err as the last error and passes it through
func (d *Device) track(err error) error {
	if err != nil {
		d.setLastError(err)
	}
	return err
}

// Initialize performs a full refresh and moves the session to Ready. A
// failed session may be initialized again. A call made while another is
// in flight fails immediately with ErrAlreadyInitializing.
func (d *Device) Initialize(ctx context.Context) error {
	for {
		cur := d.state.Load()
		if State(cur) == StateInitializing {
			return newLifecycleError(ErrAlreadyInitializing)
		}
		if d.state.CompareAndSwap(cur, int32(StateInitializing)) {
			break
		}
	}

	d.logger.Debug("initializing device")

	data, err := d.refresh(ctx)
	if err != nil {
		d.setLastError(err)
		d.state.Store(int32(StateFailed))
		d.logger.Warn("device initialization failed", zap.Error(err))
		return err
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()
	d.state.Store(int32(StateReady))

	d.logger.Info("device ready",
		zap.String("model", data.Model),
		zap.String("serial", data.Serial),
		zap.Int("switches", len(data.Switches)),
		zap.Int("ports", len(data.Ports)),
	)
	return nil
}

// Update re-runs the full refresh and replaces the snapshot. On failure the
// previous snapshot is kept.
func (d *Device) Update(ctx context.Context) error {
	if err := d.requireReady(); err != nil {
		return err
	}

	data, err := d.refresh(ctx)
	if err != nil {
		return d.track(err)
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()
	return nil
}

// refresh builds a new snapshot. System info is fetched first; the feature
// families touch disjoint fields and are fetched concurrently.
func (d *Device) refresh(ctx context.Context) (data *DeviceData, err error) {
	ctx, span := d.client.tracer.Start(ctx, "twon.refresh")
	defer func() {
		metrics.RecordRefresh(err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	info, err := d.client.SystemInfo(ctx)
	if err != nil {
		return nil, err
	}

	data = &DeviceData{
		Name:     info.DeviceName,
		Model:    info.Variant,
		Serial:   info.SerialNumber,
		Host:     d.opts.Host(),
		MAC:      info.MACAddr,
		Firmware: info.Firmware(),
		Hardware: info.HWVersion,
	}

	g, gctx := errgroup.WithContext(ctx)

	if d.opts.Unprivileged() {
		span.SetAttributes(attribute.Bool("twon.unprivileged", true))
	} else {
		g.Go(func() error {
			status, err := d.client.SystemStatus(gctx)
			if err != nil {
				return err
			}
			data.Uptime = status.BootTime(d.now())
			return nil
		})
		g.Go(func() error {
			switches, err := fetchSwitches(gctx, d.client)
			data.Switches = switches
			return err
		})
		g.Go(func() error {
			ports, err := fetchPorts(gctx, d.client)
			data.Ports = ports
			return err
		})
	}

	g.Go(func() error {
		events, err := fetchLogCapabilities(gctx, d.client)
		data.LogCapabilities = events
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Device) requireReady() error {
	if d.State() != StateReady {
		return newLifecycleError(ErrNotInitialized)
	}
	return nil
}

// snapshot returns the live snapshot pointer; callers must not modify it
func (d *Device) snapshot() *DeviceData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

// modify applies fn to a copy of the snapshot and swaps it in
func (d *Device) modify(fn func(*DeviceData)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.data.Clone()
	fn(next)
	d.data = next
}

// Data returns a copy of the current snapshot
func (d *Device) Data() (*DeviceData, error) {
	if err := d.requireReady(); err != nil {
		return nil, err
	}
	return d.snapshot().Clone(), nil
}

// RefreshSwitchStatus re-reads live switch state. Switches missing from the
// response keep their previous state; unknown ids are ignored.
func (d *Device) RefreshSwitchStatus(ctx context.Context) error {
	if err := d.requireReady(); err != nil {
		return err
	}

	statuses, err := d.client.SwitchStatus(ctx)
	if err != nil {
		return d.track(err)
	}

	d.modify(func(data *DeviceData) {
		for _, s := range statuses {
			for i := range data.Switches {
				if data.Switches[i].ID == s.Switch {
					data.Switches[i].Active = s.Active
					data.Switches[i].Locked = s.Locked
				}
			}
		}
	})
	return nil
}

// RefreshPortStatus re-reads live port state. Ports missing from the
// response keep their previous state; unknown ids are ignored.
func (d *Device) RefreshPortStatus(ctx context.Context) error {
	if err := d.requireReady(); err != nil {
		return err
	}

	statuses, err := d.client.IOStatus(ctx)
	if err != nil {
		return d.track(err)
	}

	d.modify(func(data *DeviceData) {
		for _, s := range statuses {
			for i := range data.Ports {
				if data.Ports[i].ID == s.Port {
					data.Ports[i].State = s.State
				}
			}
		}
	})
	return nil
}

// RefreshUptimeIfDrifted re-reads the uptime and replaces the stored boot
// time only when it moved by more than UptimeDriftThreshold. It reports
// whether the snapshot changed. Unprivileged sessions never read the
// status endpoint, so for them it is a no-op.
func (d *Device) RefreshUptimeIfDrifted(ctx context.Context) (bool, error) {
	if err := d.requireReady(); err != nil {
		return false, err
	}
	if d.opts.Unprivileged() {
		return false, nil
	}

	status, err := d.client.SystemStatus(ctx)
	if err != nil {
		return false, d.track(err)
	}
	boot := status.BootTime(d.now())

	drift := boot.Sub(d.snapshot().Uptime)
	if drift < 0 {
		drift = -drift
	}
	if drift <= UptimeDriftThreshold {
		return false, nil
	}

	d.logger.Debug("uptime drifted", zap.Duration("drift", drift))
	d.modify(func(data *DeviceData) { data.Uptime = boot })
	return true, nil
}

// GetSwitch returns the cached active state of a switch without I/O
func (d *Device) GetSwitch(id int) (bool, error) {
	if err := d.requireReady(); err != nil {
		return false, err
	}
	sw, err := lookupSwitch(d.snapshot(), id)
	if err != nil {
		return false, err
	}
	return sw.Active, nil
}

// SetSwitch turns an enabled switch on or off. The snapshot is not
// updated; call RefreshSwitchStatus to observe the result.
func (d *Device) SetSwitch(ctx context.Context, id int, on bool) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	sw, err := lookupSwitch(d.snapshot(), id)
	if err != nil {
		return err
	}
	if !sw.Enabled {
		return newDomainError(ErrSwitchDisabled, "switch "+strconv.Itoa(id))
	}

	action := SwitchOff
	if on {
		action = SwitchOn
	}
	d.logger.Debug("setting switch", zap.Int("switch", id), zap.String("action", string(action)))
	return d.track(d.client.SwitchControl(ctx, id, action))
}

// SetPort drives an output port. The snapshot is not updated; call
// RefreshPortStatus to observe the result.
func (d *Device) SetPort(ctx context.Context, id string, on bool) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	data := d.snapshot()
	if len(data.Ports) == 0 {
		return newDomainError(ErrNoPorts, "")
	}
	port, ok := data.FindPort(id)
	if !ok {
		return newDomainError(ErrUnknownPortID, id)
	}
	if port.Type != PortOutput {
		return newDomainError(ErrInvalidOperation, "port "+id+" is an "+string(port.Type))
	}

	d.logger.Debug("setting port", zap.String("port", id), zap.Bool("on", on))
	return d.track(d.client.IOControl(ctx, id, on))
}

// Restart reboots the device. The session stays Ready; call Initialize
// once the device is back.
func (d *Device) Restart(ctx context.Context) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	d.logger.Info("restarting device")
	return d.track(d.client.SystemRestart(ctx))
}

// AudioTest plays the audio self-test
func (d *Device) AudioTest(ctx context.Context) error {
	if err := d.requireReady(); err != nil {
		return err
	}
	return d.track(d.client.AudioTest(ctx))
}

func lookupSwitch(data *DeviceData, id int) (Switch, error) {
	if len(data.Switches) == 0 {
		return Switch{}, newDomainError(ErrNoSwitches, "")
	}
	sw, ok := data.FindSwitch(id)
	if !ok {
		return Switch{}, newDomainError(ErrInvalidSwitchID, strconv.Itoa(id))
	}
	return sw, nil
}
