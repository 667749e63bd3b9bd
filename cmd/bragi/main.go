package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/logging"
)

var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "bragi",
	Short: "Bragi - Batch audio conversion for music libraries",
	Long:  "Bragi converts a directory tree of audio files into a target codec and bitrate, preserving metadata and folder structure, and reports how much space the run saved.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging initializes the global logger (called by commands
// before doing work).
func setupLogging(level string) {
	logger = logging.Setup(level)
}
