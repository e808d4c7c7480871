package twon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektronisch/go2n/internal/devicetest"
)

func strPtr(s string) *string { return &s }

func TestMergeSwitches(t *testing.T) {
	tests := []struct {
		name     string
		caps     []SwitchCapability
		statuses []SwitchStatus
		want     []Switch
	}{
		{
			name:     "matched",
			caps:     []SwitchCapability{{Switch: 1, Enabled: true, Mode: strPtr("M")}},
			statuses: []SwitchStatus{{Switch: 1, Active: true, Locked: false}},
			want:     []Switch{{ID: 1, Enabled: true, Active: true, Locked: false, Mode: strPtr("M")}},
		},
		{
			name: "missing status defaults to inactive and unlocked",
			caps: []SwitchCapability{{Switch: 1, Enabled: true, Mode: strPtr("M")}},
			want: []Switch{{ID: 1, Enabled: true, Active: false, Locked: false, Mode: strPtr("M")}},
		},
		{
			name:     "disabled switch has no mode",
			caps:     []SwitchCapability{{Switch: 2, Enabled: false, Mode: strPtr("bistable")}},
			statuses: []SwitchStatus{{Switch: 2, Active: true, Locked: true}},
			want:     []Switch{{ID: 2, Enabled: false, Active: true, Locked: true}},
		},
		{
			name: "capability order kept, status order ignored",
			caps: []SwitchCapability{
				{Switch: 3, Enabled: true, Mode: strPtr("a")},
				{Switch: 1, Enabled: true, Mode: strPtr("b")},
				{Switch: 2, Enabled: false},
			},
			statuses: []SwitchStatus{
				{Switch: 1, Active: true},
				{Switch: 2, Locked: true},
				{Switch: 3, Active: true, Locked: true},
			},
			want: []Switch{
				{ID: 3, Enabled: true, Active: true, Locked: true, Mode: strPtr("a")},
				{ID: 1, Enabled: true, Active: true, Mode: strPtr("b")},
				{ID: 2, Enabled: false, Locked: true},
			},
		},
		{
			name:     "status without capability ignored",
			caps:     []SwitchCapability{{Switch: 1, Enabled: true}},
			statuses: []SwitchStatus{{Switch: 9, Active: true}},
			want:     []Switch{{ID: 1, Enabled: true}},
		},
		{
			name: "enabled switch without mode has no mode",
			caps: []SwitchCapability{{Switch: 4, Enabled: true}},
			want: []Switch{{ID: 4, Enabled: true}},
		},
		{
			name: "repeated capability id merged once, first entry wins",
			caps: []SwitchCapability{
				{Switch: 1, Enabled: true, Mode: strPtr("M")},
				{Switch: 2, Enabled: false},
				{Switch: 1, Enabled: false},
			},
			statuses: []SwitchStatus{{Switch: 1, Active: true}},
			want: []Switch{
				{ID: 1, Enabled: true, Active: true, Mode: strPtr("M")},
				{ID: 2, Enabled: false},
			},
		},
		{
			name: "no capabilities",
			want: []Switch{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeSwitches(tt.caps, tt.statuses)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeSwitches_Idempotent(t *testing.T) {
	caps := []SwitchCapability{{Switch: 1, Enabled: true, Mode: strPtr("M")}}
	statuses := []SwitchStatus{{Switch: 1, Active: true}}

	assert.Equal(t, mergeSwitches(caps, statuses), mergeSwitches(caps, statuses))
}

func TestMergePorts(t *testing.T) {
	tests := []struct {
		name     string
		caps     []PortCapability
		statuses []PortStatus
		want     []Port
	}{
		{
			name: "unmatched capability dropped",
			caps: []PortCapability{{Port: "A", Type: PortOutput}},
			want: []Port{},
		},
		{
			name:     "matched",
			caps:     []PortCapability{{Port: "A", Type: PortOutput}},
			statuses: []PortStatus{{Port: "A", State: true}},
			want:     []Port{{ID: "A", Type: PortOutput, State: true}},
		},
		{
			name: "order of matched capabilities kept",
			caps: []PortCapability{
				{Port: "relay1", Type: PortOutput},
				{Port: "input1", Type: PortInput},
				{Port: "relay2", Type: PortOutput},
			},
			statuses: []PortStatus{
				{Port: "relay2", State: true},
				{Port: "relay1"},
			},
			want: []Port{
				{ID: "relay1", Type: PortOutput},
				{ID: "relay2", Type: PortOutput, State: true},
			},
		},
		{
			name:     "repeated port id merged once",
			caps:     []PortCapability{{Port: "A", Type: PortOutput}, {Port: "A", Type: PortInput}},
			statuses: []PortStatus{{Port: "A", State: true}},
			want:     []Port{{ID: "A", Type: PortOutput, State: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergePorts(tt.caps, tt.statuses))
		})
	}
}

func TestMergeKeyed_DuplicateStatusLastWins(t *testing.T) {
	got := mergeKeyed(
		[]int{1},
		[]string{"1:a", "1:b"},
		func(c int) int { return c },
		func(s string) int { return int(s[0] - '0') },
		func(c int, s string, found bool) (string, bool) { return s, found },
	)
	assert.Equal(t, []string{"1:b"}, got)
}

func TestFetchFamilies_NotSupportedMeansEmpty(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"switch caps", "/api/switch/caps"},
		{"switch status", "/api/switch/status"},
		{"io caps", "/api/io/caps"},
		{"io status", "/api/io/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicetest.NewServer(t)
			dev.SetError(tt.path, 1)
			c := newTestClient(t, dev.Host())
			ctx := context.Background()

			switches, err := fetchSwitches(ctx, c)
			require.NoError(t, err)
			ports, err := fetchPorts(ctx, c)
			require.NoError(t, err)

			if tt.path == "/api/switch/caps" || tt.path == "/api/switch/status" {
				assert.Empty(t, switches)
				assert.NotNil(t, switches)
				assert.Len(t, ports, 2)
			} else {
				assert.Empty(t, ports)
				assert.NotNil(t, ports)
				assert.Len(t, switches, 2)
			}
		})
	}
}

func TestFetchLogCapabilities_NotSupported(t *testing.T) {
	dev := devicetest.NewServer(t)
	dev.SetError("/api/log/caps", 1)
	c := newTestClient(t, dev.Host())

	events, err := fetchLogCapabilities(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{}, events)
}

func TestFetchFamilies_OtherErrorsPropagate(t *testing.T) {
	dev := devicetest.NewServer(t)
	dev.SetError("/api/switch/status", 4)
	c := newTestClient(t, dev.Host())

	_, err := fetchSwitches(context.Background(), c)
	require.Error(t, err)
	assert.True(t, IsAPIError(err, APIErrFunctionDisabled))
}
