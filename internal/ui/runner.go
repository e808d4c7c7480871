package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes one multi-step device command
type RunnerConfig struct {
	Title   string   // e.g., "Device Restart"
	Command string   // e.g., "go2n restart"
	Params  []Field  // Shown in the header
	Steps   []string // Step names, in order
	Output  io.Writer

	// Troubleshoot maps a failure to tips shown in the failure box
	Troubleshoot func(error) []string

	// Now is used to time the run (default time.Now)
	Now func() time.Time
}

// StepReporter is handed to an Operation to report progress. Step numbers
// are 1-based indexes into RunnerConfig.Steps.
type StepReporter interface {
	Start(step int)
	Complete(step int, message string)
	Skip(step int, message string)
	Fail(step int, message string)
}

// Operation does the work of a command and returns details for the
// success box.
type Operation func(ctx context.Context, steps StepReporter) ([]Field, error)

// Runner prints header, then step progress, then a result box.
type Runner struct {
	config   RunnerConfig
	progress *Progress
	out      io.Writer
	width    int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	width := GetTerminalWidth()
	progress := NewProgress(config.Steps...)
	progress.SetWidth(width)

	return &Runner{
		config:   config,
		progress: progress,
		out:      config.Output,
		width:    width,
	}
}

// Run executes op with UI updates and returns its error unchanged.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := r.config.Now()

	header := NewHeader(r.config.Title, r.config.Command, r.config.Params).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(ctx, r)
	duration := r.config.Now().Sub(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		var tips []string
		if r.config.Troubleshoot != nil {
			tips = r.config.Troubleshoot(err)
		}
		result := NewFailureResult(r.config.Title+" failed", err, tips).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.out, result.Render())
		return err
	}

	result := NewSuccessResult(r.config.Title+" complete", details...).
		AddDetail("Duration", duration.String()).
		SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, result.Render())
	return nil
}

// Start marks a step as running
func (r *Runner) Start(step int) {
	r.update(step, StepRunning, "")
}

// Complete marks a step as done
func (r *Runner) Complete(step int, message string) {
	r.update(step, StepComplete, message)
}

// Skip marks a step as not applicable
func (r *Runner) Skip(step int, message string) {
	r.update(step, StepSkipped, message)
}

// Fail marks a step as failed
func (r *Runner) Fail(step int, message string) {
	r.update(step, StepFailed, message)
}

func (r *Runner) update(step int, status StepStatus, message string) {
	if step < 1 || step > len(r.progress.Steps) {
		return
	}
	r.progress.UpdateStep(step, status, message)
	line := r.progress.renderStepLine(r.progress.Steps[step-1])
	if status == StepRunning {
		// Overwritten when the step finishes
		_, _ = fmt.Fprint(r.out, line+"\r")
		return
	}
	_, _ = fmt.Fprintln(r.out, line)
}
