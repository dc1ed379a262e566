package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/emotion-sense/internal/config"
	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "emotion-sense",
	Short: "Classify facial emotions from a camera feed",
	Long: `Emotion Sense locates the face in a camera frame, normalizes it into a
48x48 grayscale patch and asks an isolated inference worker which emotion it
shows (sad, disgust, angry, neutral, fear, surprise or happy).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file, overrides LOG_FILE")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if level := mustGetString(cmd, "log-level"); level != "" {
		cfg.Log.Level = level
	}
	if file := mustGetString(cmd, "log-file"); file != "" {
		cfg.Log.File = file
	}
	return cfg
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
	})
}
