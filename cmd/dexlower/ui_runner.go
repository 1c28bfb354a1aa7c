package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"dexlower/internal/lower"
	"dexlower/internal/pipeline"
	"dexlower/internal/ui"
)

type lowerOutcome struct {
	result *lower.Result
	err    error
}

// runLowerWithUI runs the lowering in the background while a progress view
// consumes its events.
func runLowerWithUI(ctx context.Context, title string, types []string, req *lower.Request) (*lower.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing lower request")
	}
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := lower.Lower(ctx, reqCopy)
		outcomeCh <- lowerOutcome{result: res, err: err}
		close(events)
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, types, events), tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
