package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/demixkit/demix/cmd/demix/internal/config"
)

var (
	// Global flags
	verbose bool

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "demix",
	Short: "Split music into instrument stems",
	Long: `demix - neural music source separation.

Separates a mixed recording into vocals, drums, bass and other stems
(plus guitar and piano with six-source models) using a pretrained
hybrid transformer network, and analyzes tempo and key.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/demix/
  Linux:   ~/.config/demix/
  Windows: %AppData%/demix/

Examples:
  # Split a track into four stems
  demix split song.flac -o stems/

  # Vocals plus everything else, skipping the result cache
  demix split song.mp3 -o out/ --two-stems --no-cache

  # Estimate tempo and key
  demix analyze song.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Commands that need config get a clear error via GetConfig();
		// commands like 'demix version' keep working.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
