package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestHeaderRender(t *testing.T) {
	h := NewHeader("Device restart", "go2n restart", []Field{
		{Key: "Device", Value: "192.168.1.50"},
		{Key: "Auth", Value: "digest"},
	}).SetWidth(80)

	out := h.Render()
	for _, want := range []string{"DEVICE RESTART", "go2n restart", "192.168.1.50", "digest"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Device:") > strings.Index(out, "Auth:") {
		t.Error("Render() should keep parameter order")
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Switch 1 set", Field{Key: "State", Value: "ON"}),
			want:   []string{"SUCCESS", "Switch 1 set", "State:", "ON"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No switches"),
			want:   []string{"WARNING", "No switches"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Restart failed", errors.New("boom"), []string{"Check the host"}),
			want:   []string{"FAILED", "Error: boom", "Troubleshooting:", "Check the host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestResultAddDetailKeepsOrder(t *testing.T) {
	r := NewSuccessResult("done").AddDetail("First", "1").AddDetail("Second", "2")
	out := r.SetWidth(80).Render()
	if strings.Index(out, "First") > strings.Index(out, "Second") {
		t.Error("details rendered out of order")
	}
}

func TestProgressUpdateStep(t *testing.T) {
	p := NewProgress("Connect", "Read info", "Read switches", "Read ports")

	p.UpdateStep(1, StepRunning, "")
	if p.Current != 1 {
		t.Errorf("Current = %d, want 1", p.Current)
	}

	p.UpdateStep(1, StepComplete, "")
	p.UpdateStep(2, StepSkipped, "unprivileged")
	if p.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", p.Percent)
	}

	p.UpdateStep(3, StepFailed, "")
	if p.Percent != 0.5 {
		t.Errorf("failed steps should not advance progress, Percent = %v", p.Percent)
	}

	// Out of range is ignored
	p.UpdateStep(0, StepComplete, "")
	p.UpdateStep(9, StepComplete, "")

	out := p.Render()
	if !strings.Contains(out, "(unprivileged)") {
		t.Errorf("Render() missing step note:\n%s", out)
	}
	if !strings.Contains(out, "[4/4] Read ports") && !strings.Contains(out, "Read ports") {
		t.Errorf("Render() missing step line:\n%s", out)
	}
}

func TestRunnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runner := NewRunner(RunnerConfig{
		Title:   "Device Restart",
		Command: "go2n restart",
		Steps:   []string{"Connect", "Request restart"},
		Output:  &buf,
		Now: func() time.Time {
			clock = clock.Add(250 * time.Millisecond)
			return clock
		},
	})

	err := runner.Run(context.Background(), func(ctx context.Context, steps StepReporter) ([]Field, error) {
		steps.Start(1)
		steps.Complete(1, "2N IP Verso")
		steps.Start(2)
		steps.Complete(2, "")
		return []Field{{Key: "Device", Value: "Front door"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"DEVICE RESTART", "2N IP Verso", "Device Restart complete", "Front door", "Duration:", "250ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunnerFailure(t *testing.T) {
	var buf bytes.Buffer
	wantErr := errors.New("connection refused")
	var troubleshot error

	runner := NewRunner(RunnerConfig{
		Title:  "Device Restart",
		Steps:  []string{"Connect"},
		Output: &buf,
		Troubleshoot: func(err error) []string {
			troubleshot = err
			return []string{"Check the HTTP API is enabled"}
		},
	})

	err := runner.Run(context.Background(), func(ctx context.Context, steps StepReporter) ([]Field, error) {
		steps.Start(1)
		steps.Fail(1, "refused")
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	if !errors.Is(troubleshot, wantErr) {
		t.Error("Troubleshoot was not called with the operation error")
	}

	out := buf.String()
	for _, want := range []string{"Device Restart failed", "connection refused", "Check the HTTP API is enabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact", "restart\n", true},
		{"padded", "  restart  \n", true},
		{"no newline", "restart", true},
		{"wrong", "yes\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmRestart(strings.NewReader(tt.input), &out, "Front door")
			if got != tt.want {
				t.Errorf("ConfirmRestart(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Front door") {
				t.Error("warning box should name the device")
			}
		})
	}
}

func TestPrinterSection(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Section("Switches", "Switch 1: OFF (mode: monostable)\n")

	out := buf.String()
	if !strings.Contains(out, "=== Switches ===") || !strings.Contains(out, "Switch 1: OFF") {
		t.Errorf("Section() = %q", out)
	}
}

func TestWatchModel(t *testing.T) {
	calls := 0
	refresh := func(ctx context.Context) (string, error) {
		calls++
		return "Switch 1: ON", nil
	}
	m := NewWatchModel(context.Background(), "Front door", time.Second, refresh)

	if !strings.Contains(m.View(), "Connecting") {
		t.Errorf("initial View() = %q", m.View())
	}

	msg := m.Init()()
	if calls != 1 {
		t.Fatalf("refresh called %d times, want 1", calls)
	}

	updated, cmd := m.Update(msg)
	if cmd == nil {
		t.Error("Update(refreshMsg) should schedule the next tick")
	}
	view := updated.View()
	if !strings.Contains(view, "Switch 1: ON") {
		t.Errorf("View() = %q", view)
	}

	failed, _ := updated.Update(refreshMsg{err: errors.New("timeout"), at: time.Now()})
	view = failed.View()
	if !strings.Contains(view, "Switch 1: ON") || !strings.Contains(view, "Refresh failed: timeout") {
		t.Errorf("View() after failure = %q", view)
	}

	_, cmd = failed.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}
