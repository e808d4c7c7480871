package twon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektronisch/go2n/internal/devicetest"
)

var testNow = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDevice(t *testing.T, srv *devicetest.Server, opts ...Option) (*Device, *fakeClock) {
	t.Helper()
	o, err := NewConnectionOptions(srv.Host(), opts...)
	require.NoError(t, err)
	clock := &fakeClock{now: testNow}
	d, err := NewDevice(o, WithClock(clock.Now))
	require.NoError(t, err)
	return d, clock
}

func readyDevice(t *testing.T, srv *devicetest.Server, opts ...Option) (*Device, *fakeClock) {
	t.Helper()
	d, clock := newTestDevice(t, srv, opts...)
	require.NoError(t, d.Initialize(context.Background()))
	return d, clock
}

func TestDevice_Initialize(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := newTestDevice(t, srv)
	assert.Equal(t, StateUninitialized, d.State())

	require.NoError(t, d.Initialize(context.Background()))
	assert.Equal(t, StateReady, d.State())
	assert.NoError(t, d.LastError())

	data, err := d.Data()
	require.NoError(t, err)
	assert.Equal(t, "Front door", data.Name)
	assert.Equal(t, "2N IP Verso", data.Model)
	assert.Equal(t, "54-1234-5678", data.Serial)
	assert.Equal(t, srv.Host(), data.Host)
	assert.Equal(t, "7C-1E-B3-01-02-03", data.MAC)
	assert.Equal(t, "2.38.0.48.7-beta", data.Firmware)
	assert.Equal(t, "535v1", data.Hardware)
	assert.Equal(t, testNow.Add(-time.Hour), data.Uptime)

	assert.Equal(t, []Switch{
		{ID: 1, Enabled: true, Mode: strPtr("monostable")},
		{ID: 2, Enabled: false},
	}, data.Switches)
	assert.Equal(t, []Port{
		{ID: "input1", Type: PortInput},
		{ID: "relay1", Type: PortOutput},
	}, data.Ports)
	assert.Equal(t, []string{"KeyPressed", "DoorStateChanged"}, data.LogCapabilities)
}

func TestCreateDevice(t *testing.T) {
	srv := devicetest.NewServer(t)
	o, err := NewConnectionOptions(srv.Host())
	require.NoError(t, err)

	d, err := CreateDevice(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, StateReady, d.State())

	srv.SetError("/api/system/info", 9)
	d, err = CreateDevice(context.Background(), o)
	assert.Nil(t, d)
	assert.True(t, IsAPIError(err, APIErrAuthorizationRequired))
}

func TestDevice_InitializeUnknownCodeFailsAndCanRetry(t *testing.T) {
	srv := devicetest.NewServer(t)
	srv.SetError("/api/system/info", 42)
	d, _ := newTestDevice(t, srv)

	err := d.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnsupportedDevice(err))
	assert.False(t, IsAPIError(err, APIErrNotSupported))
	assert.Equal(t, StateFailed, d.State())
	assert.Equal(t, err, d.LastError())

	_, err = d.Data()
	assert.ErrorIs(t, err, ErrNotInitialized)

	srv.ClearError("/api/system/info")
	require.NoError(t, d.Initialize(context.Background()))
	assert.Equal(t, StateReady, d.State())
}

func TestDevice_InitializeFamilyErrorFails(t *testing.T) {
	srv := devicetest.NewServer(t)
	srv.SetError("/api/io/status", 10)
	d, _ := newTestDevice(t, srv)

	err := d.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, IsAPIError(err, APIErrAuthorizationRequired))
	assert.Equal(t, StateFailed, d.State())
}

func TestDevice_InitializeConnectionError(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	host := strings.TrimPrefix(closed.URL, "http://")
	closed.Close()

	o, err := NewConnectionOptions(host)
	require.NoError(t, err)
	d, err := NewDevice(o)
	require.NoError(t, err)

	err = d.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, StateFailed, d.State())
}

func TestDevice_InitializeNotSupportedFamiliesAreEmpty(t *testing.T) {
	srv := devicetest.NewServer(t)
	srv.SetError("/api/switch/caps", 1)
	srv.SetError("/api/io/status", 1)
	srv.SetError("/api/log/caps", 1)

	d, _ := readyDevice(t, srv)
	data, err := d.Data()
	require.NoError(t, err)
	assert.Empty(t, data.Switches)
	assert.Empty(t, data.Ports)
	assert.Empty(t, data.LogCapabilities)
	assert.Equal(t, 0, srv.Calls("/api/switch/status"))
}

func TestDevice_ConcurrentInitializeFailsFast(t *testing.T) {
	srv := devicetest.NewServer(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	srv.Handle("/api/system/info", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": devicetest.DefaultInfo})
	})

	d, _ := newTestDevice(t, srv)

	firstDone := make(chan error, 1)
	go func() { firstDone <- d.Initialize(context.Background()) }()

	<-entered
	assert.Equal(t, StateInitializing, d.State())

	err := d.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyInitializing)

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, StateReady, d.State())
	assert.Equal(t, 1, srv.Calls("/api/system/info"))
}

func TestDevice_CommandsRequireInitialize(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := newTestDevice(t, srv)
	ctx := context.Background()

	commands := map[string]func() error{
		"Update":              func() error { return d.Update(ctx) },
		"RefreshSwitchStatus": func() error { return d.RefreshSwitchStatus(ctx) },
		"RefreshPortStatus":   func() error { return d.RefreshPortStatus(ctx) },
		"RefreshUptimeIfDrifted": func() error {
			_, err := d.RefreshUptimeIfDrifted(ctx)
			return err
		},
		"SetSwitch": func() error { return d.SetSwitch(ctx, 1, true) },
		"SetPort":   func() error { return d.SetPort(ctx, "relay1", true) },
		"GetSwitch": func() error {
			_, err := d.GetSwitch(1)
			return err
		},
		"Data": func() error {
			_, err := d.Data()
			return err
		},
		"Restart":   func() error { return d.Restart(ctx) },
		"AudioTest": func() error { return d.AudioTest(ctx) },
		"SubscribeLog": func() error {
			_, err := d.SubscribeLog(ctx)
			return err
		},
	}

	for name, cmd := range commands {
		t.Run(name, func(t *testing.T) {
			err := cmd()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
	assert.Equal(t, 0, srv.TotalCalls())
}

func TestDevice_SetSwitch(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	ctx := context.Background()

	require.NoError(t, d.SetSwitch(ctx, 1, true))
	assert.Equal(t, "1", srv.LastQuery("/api/switch/ctrl").Get("switch"))
	assert.Equal(t, "on", srv.LastQuery("/api/switch/ctrl").Get("action"))

	// no optimistic update
	active, err := d.GetSwitch(1)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, d.RefreshSwitchStatus(ctx))
	active, err = d.GetSwitch(1)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, d.SetSwitch(ctx, 1, false))
	assert.Equal(t, "off", srv.LastQuery("/api/switch/ctrl").Get("action"))
}

func TestDevice_SetSwitchValidation(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	ctx := context.Background()

	err := d.SetSwitch(ctx, 2, true)
	assert.ErrorIs(t, err, ErrSwitchDisabled)
	assert.True(t, IsValidationError(err))

	err = d.SetSwitch(ctx, 7, true)
	assert.ErrorIs(t, err, ErrInvalidSwitchID)

	_, err = d.GetSwitch(7)
	assert.ErrorIs(t, err, ErrInvalidSwitchID)

	assert.Equal(t, 0, srv.Calls("/api/switch/ctrl"))
	assert.NoError(t, d.LastError())
}

func TestDevice_NoSwitchesConfigured(t *testing.T) {
	srv := devicetest.NewServer(t)
	srv.SetSwitches([]devicetest.SwitchCap{}, []devicetest.SwitchState{})
	d, _ := readyDevice(t, srv)

	err := d.SetSwitch(context.Background(), 1, true)
	assert.ErrorIs(t, err, ErrNoSwitches)

	_, err = d.GetSwitch(1)
	assert.ErrorIs(t, err, ErrNoSwitches)
	assert.Equal(t, 0, srv.Calls("/api/switch/ctrl"))
}

func TestDevice_SetPort(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	ctx := context.Background()

	err := d.SetPort(ctx, "input1", true)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	err = d.SetPort(ctx, "relay9", true)
	assert.ErrorIs(t, err, ErrUnknownPortID)
	assert.Equal(t, 0, srv.Calls("/api/io/ctrl"))

	require.NoError(t, d.SetPort(ctx, "relay1", true))
	assert.Equal(t, "relay1", srv.LastQuery("/api/io/ctrl").Get("port"))
	assert.Equal(t, "on", srv.LastQuery("/api/io/ctrl").Get("action"))

	data, err := d.Data()
	require.NoError(t, err)
	port, _ := data.FindPort("relay1")
	assert.False(t, port.State)

	require.NoError(t, d.RefreshPortStatus(ctx))
	data, err = d.Data()
	require.NoError(t, err)
	port, _ = data.FindPort("relay1")
	assert.True(t, port.State)
}

func TestDevice_NoPortsConfigured(t *testing.T) {
	srv := devicetest.NewServer(t)
	srv.SetPorts([]devicetest.PortCap{}, []devicetest.PortState{})
	d, _ := readyDevice(t, srv)

	err := d.SetPort(context.Background(), "relay1", true)
	assert.ErrorIs(t, err, ErrNoPorts)
}

func TestDevice_CommandErrorIsRecorded(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	srv.SetError("/api/switch/ctrl", 17)

	err := d.SetSwitch(context.Background(), 1, true)
	require.Error(t, err)
	assert.True(t, IsAPIError(err, APIErrRejected))
	assert.Equal(t, err, d.LastError())
	assert.Equal(t, StateReady, d.State())
}

func TestDevice_RefreshSwitchStatusPartial(t *testing.T) {
	srv := devicetest.NewServer(t)
	srv.SetSwitches(
		[]devicetest.SwitchCap{{Switch: 1, Enabled: true, Mode: "M"}, {Switch: 2, Enabled: true, Mode: "M"}},
		[]devicetest.SwitchState{{Switch: 1}, {Switch: 2, Locked: true}},
	)
	d, _ := readyDevice(t, srv)

	srv.SetSwitches(
		[]devicetest.SwitchCap{{Switch: 1, Enabled: true, Mode: "M"}, {Switch: 2, Enabled: true, Mode: "M"}},
		[]devicetest.SwitchState{{Switch: 1, Active: true, Locked: true}, {Switch: 9, Active: true}},
	)
	require.NoError(t, d.RefreshSwitchStatus(context.Background()))

	data, err := d.Data()
	require.NoError(t, err)
	require.Len(t, data.Switches, 2)
	assert.True(t, data.Switches[0].Active)
	assert.True(t, data.Switches[0].Locked)
	assert.False(t, data.Switches[1].Active)
	assert.True(t, data.Switches[1].Locked)

	assert.Equal(t, 1, srv.Calls("/api/switch/caps"))
}

func TestDevice_RefreshPortStatusPartial(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)

	srv.SetPorts(
		[]devicetest.PortCap{{Port: "input1", Type: "input"}, {Port: "relay1", Type: "output"}},
		[]devicetest.PortState{{Port: "input1", State: true}, {Port: "ghost", State: true}},
	)
	require.NoError(t, d.RefreshPortStatus(context.Background()))

	data, err := d.Data()
	require.NoError(t, err)
	assert.Equal(t, []Port{
		{ID: "input1", Type: PortInput, State: true},
		{ID: "relay1", Type: PortOutput, State: false},
	}, data.Ports)
	assert.Equal(t, 1, srv.Calls("/api/io/caps"))
}

func TestDevice_RefreshUptimeIfDrifted(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	ctx := context.Background()
	boot := testNow.Add(-time.Hour)

	srv.SetUptime(3600 + 3)
	changed, err := d.RefreshUptimeIfDrifted(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	data, _ := d.Data()
	assert.Equal(t, boot, data.Uptime)

	srv.SetUptime(3600 + 10)
	changed, err = d.RefreshUptimeIfDrifted(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	data, _ = d.Data()
	assert.Equal(t, boot.Add(-10*time.Second), data.Uptime)
}

func TestDevice_UptimeStableAcrossClockAdvance(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, clock := readyDevice(t, srv)

	clock.Advance(time.Minute)
	srv.SetUptime(3600 + 60)

	changed, err := d.RefreshUptimeIfDrifted(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDevice_Unprivileged(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv, WithUnprivileged(true))

	for _, path := range []string{
		"/api/system/status",
		"/api/switch/caps",
		"/api/switch/status",
		"/api/io/caps",
		"/api/io/status",
	} {
		assert.Equal(t, 0, srv.Calls(path), path)
	}
	assert.Equal(t, 1, srv.Calls("/api/log/caps"))

	data, err := d.Data()
	require.NoError(t, err)
	assert.Empty(t, data.Switches)
	assert.Empty(t, data.Ports)
	assert.True(t, data.Uptime.IsZero())
	assert.NotEmpty(t, data.LogCapabilities)

	changed, err := d.RefreshUptimeIfDrifted(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, srv.Calls("/api/system/status"))
}

func TestDevice_Update(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	ctx := context.Background()

	srv.SetInfo(devicetest.Info{
		Variant: "2N IP Force", SerialNumber: "1", HWVersion: "h",
		SWVersion: "2.40", BuildType: "release", DeviceName: "Gate",
	})
	require.NoError(t, d.Update(ctx))

	data, err := d.Data()
	require.NoError(t, err)
	assert.Equal(t, "Gate", data.Name)
	assert.Equal(t, "2.40-release", data.Firmware)
	assert.Empty(t, data.MAC)

	srv.SetError("/api/system/info", 14)
	err = d.Update(ctx)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, err, d.LastError())
	assert.Equal(t, StateReady, d.State())

	data, err = d.Data()
	require.NoError(t, err)
	assert.Equal(t, "Gate", data.Name)
}

func TestDevice_DataIsACopy(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)

	data, err := d.Data()
	require.NoError(t, err)
	data.Switches[0].Active = true
	*data.Switches[0].Mode = "changed"
	data.Ports = nil

	again, err := d.Data()
	require.NoError(t, err)
	assert.False(t, again.Switches[0].Active)
	assert.Equal(t, "monostable", *again.Switches[0].Mode)
	assert.Len(t, again.Ports, 2)
}

func TestDevice_RestartAndAudioTest(t *testing.T) {
	srv := devicetest.NewServer(t)
	d, _ := readyDevice(t, srv)
	ctx := context.Background()

	require.NoError(t, d.AudioTest(ctx))
	require.NoError(t, d.Restart(ctx))
	assert.Equal(t, 1, srv.Calls("/api/audio/test"))
	assert.Equal(t, 1, srv.Calls("/api/system/restart"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
