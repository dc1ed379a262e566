package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/emotion-sense/internal/constants"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/kozaktomas/emotion-sense/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Emotion Sense web server.
The server exposes the model status (also as server-sent events), one-shot
classification of the configured source or an uploaded image, and a
websocket stream of continuous readings.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on, overrides WEB_PORT")
	serveCmd.Flags().String("host", "", "Host to bind to, overrides WEB_HOST")
	serveCmd.Flags().Bool("no-monitor", false, "Disable continuous classification")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	log := newLogger(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// The server still starts without a source, uploads keep working.
	src, err := source.FromConfig(cfg.Source, cfg.Worker.Timeout, log)
	if err != nil {
		log.WithError(err).Warn("[App] no frame source, capture endpoints disabled")
		src = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.manager.Initialize(ctx); err != nil {
			log.WithError(err).Error("[App] model failed to load")
			return
		}
		log.Info("[App] model ready")
	}()

	deps := web.Dependencies{
		Model:    a.manager,
		Capturer: a.orchestrator,
		Source:   src,
		Catalog:  a.catalog,
		Log:      log,
	}
	if src != nil && !mustGetBool(cmd, "no-monitor") {
		monitor := pipeline.NewMonitor(a.orchestrator, src, a.catalog, cfg.Monitor.Interval, cfg.Monitor.Timeout, log)
		deps.Monitor = monitor
		go func() {
			_ = monitor.Run(ctx)
		}()
	}

	server := web.NewServer(cfg, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Emotion Sense on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
