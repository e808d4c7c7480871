// Package ui renders terminal output for the go2n CLI.
//
// Components are built on Lipgloss and Bubble Tea:
//
//   - Header: command banner with ordered parameters
//   - Progress: step list with a progress bar
//   - Result: success, warning and failure boxes
//   - Runner: header, then live step progress, then a result box
//   - WatchModel: a Bubble Tea view that refreshes device state on an interval
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Device Restart",
//	    Command: "go2n restart",
//	    Params:  []ui.Field{{Key: "Device", Value: host}},
//	    Steps:   []string{"Connect", "Request restart"},
//	})
//	err := runner.Run(ctx, func(ctx context.Context, steps ui.StepReporter) ([]ui.Field, error) {
//	    steps.Start(1)
//	    // ...
//	    steps.Complete(1, "")
//	    return nil, nil
//	})
//
// zap logging stays silent unless GO2N_LOG_LEVEL is set, so it does not
// interleave with this output.
package ui
