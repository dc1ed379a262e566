package cmd

import (
	"context"
	"os"

	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
	"github.com/schollz/progressbar/v3"
)

// initializeModel loads the model, drawing a download bar on stderr unless quiet.
func initializeModel(ctx context.Context, manager *lifecycle.Manager, quiet bool) error {
	if quiet {
		return manager.Initialize(ctx)
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Loading model"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionFullWidth(),
	)

	events := manager.AddListener()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			switch {
			case event.Status.Ready:
				_ = bar.Finish()
			case event.Type == "progress":
				_ = bar.Set(overallProgress(event.Status.Progress))
			}
		}
	}()

	err := manager.Initialize(ctx)
	manager.RemoveListener(events)
	<-done
	if err != nil {
		_ = bar.Exit()
	}
	return err
}

// overallProgress averages the per-file progress into a 0-100 value.
func overallProgress(items []lifecycle.ProgressItem) int {
	if len(items) == 0 {
		return 0
	}
	var total float64
	for _, item := range items {
		total += item.Progress
	}
	return int(total / float64(len(items)))
}
