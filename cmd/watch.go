package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously classify the configured frame source",
	Long: `Load the model and classify the configured frame source on a fixed
interval, printing every reading together with the dominant emotion so far.
Stop with Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 0, "Time between captures, overrides MONITOR_INTERVAL_MS")
	watchCmd.Flags().Bool("quiet", false, "Do not show the model download progress")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if interval := mustGetDuration(cmd, "interval"); interval > 0 {
		cfg.Monitor.Interval = interval
	}
	log := newLogger(cfg)

	src, err := source.FromConfig(cfg.Source, cfg.Worker.Timeout, log)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initializeModel(ctx, a.manager, mustGetBool(cmd, "quiet")); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	monitor := pipeline.NewMonitor(a.orchestrator, src, a.catalog, cfg.Monitor.Interval, cfg.Monitor.Timeout, log)
	readings, unsubscribe := monitor.Subscribe()
	defer unsubscribe()

	go func() {
		for r := range readings {
			printReading(r)
		}
	}()

	fmt.Printf("Watching every %s, press Ctrl+C to stop\n", cfg.Monitor.Interval)
	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if tag, count, ok := monitor.Dominant(); ok {
		fmt.Printf("\nDominant emotion: %s %s (%d readings)\n", a.catalog.Icon(tag), tag, count)
	}
	return nil
}

func printReading(r pipeline.Reading) {
	ts := r.Time.Format("15:04:05")
	if r.Error != "" {
		fmt.Printf("%s  %s\n", ts, r.Error)
		return
	}
	fmt.Printf("%s  %s %-8s %.4f   dominant: %s %s\n", ts, r.Icon, r.Emotion, r.Score, r.DominantIcon, r.Dominant)
}
