package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/kozaktomas/emotion-sense/internal/modelapi"
	"github.com/kozaktomas/emotion-sense/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd is the child side of the process worker mode. It is started by
// the parent with commands on stdin and a reply pipe on fd 3.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run the inference worker (internal)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	log := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		NoColor: true,
		Output:  os.Stderr,
	})

	replies := os.NewFile(worker.ReplyFD, "replies")
	if replies == nil {
		return errors.New("reply pipe is not open")
	}
	defer replies.Close()

	// The parent normally stops us by closing stdin.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	model := worker.NewRemoteModel(modelapi.NewClient(cfg.Worker.ModelURL, cfg.Worker.Timeout))
	if err := worker.Serve(ctx, os.Stdin, replies, model, log); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}
