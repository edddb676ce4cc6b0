package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"crest/internal/checker"
	"crest/internal/ui"
)

type checkOutcome struct {
	report *checker.Report
	err    error
}

// runCheckWithUI runs the checker behind a Bubble Tea progress display. The
// checker owns the event channel and closes it when the run finishes, which
// quits the program.
func runCheckWithUI(ctx context.Context, title string, opts checker.Options, paths []string) (*checker.Report, error) {
	files, err := checker.ListFiles(paths)
	if err != nil {
		return nil, err
	}

	events := make(chan checker.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)
	opts.Progress = events

	go func() {
		report, err := checker.Run(ctx, opts, paths)
		outcomeCh <- checkOutcome{report: report, err: err}
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
