package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/emotion-sense/internal/faults"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [image]",
	Short: "Classify the emotion of the face in one frame",
	Long: `Load the model, capture one frame and print the detected emotion.

Without an argument the frame comes from the configured source (SOURCE,
SOURCE_PATH, SOURCE_URL, SOURCE_DEVICE). With an argument the given image
file is classified instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().Bool("json", false, "Output as JSON")
	classifyCmd.Flags().Bool("quiet", false, "Do not show the model download progress")
	classifyCmd.Flags().String("detector", "", "Face detector backend (http, yunet), overrides DETECTOR")
	classifyCmd.Flags().Float64("min-confidence", 0, "Minimum face confidence (0-1), overrides FACE_MIN_CONFIDENCE")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := loadConfig(cmd)
	jsonOutput := mustGetBool(cmd, "json")

	if detector := mustGetString(cmd, "detector"); detector != "" {
		cfg.Detector.Kind = detector
	}
	if minConf := mustGetFloat64(cmd, "min-confidence"); minConf > 0 {
		cfg.Detector.MinConfidence = minConf
	}

	log := newLogger(cfg)

	var src source.FrameSource
	if len(args) == 1 {
		src = source.NewFile(args[0])
	} else {
		var err error
		if src, err = source.FromConfig(cfg.Source, cfg.Worker.Timeout, log); err != nil {
			return err
		}
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := initializeModel(ctx, a.manager, jsonOutput || mustGetBool(cmd, "quiet")); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	out, err := a.orchestrator.CaptureAndClassify(ctx, src)
	if err != nil {
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]string{"error": faults.Describe(err)})
		}
		return fmt.Errorf("%s: %w", faults.Describe(err), err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	fmt.Printf("%s %s (%.4f)\n", out.Icon, out.Emotion, out.Score)
	return nil
}
