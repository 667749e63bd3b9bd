/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/pipeline"
	"github.com/friendsincode/bragi/internal/report"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a music library into a target format",
	Long:  "Walk the source directory, convert or copy every audio file into the target directory, reapply metadata, and write a markdown report of the results.",
	RunE:  runConvert,
}

// Convert flags
var (
	convertSource      string
	convertTarget      string
	convertCodec       string
	convertBitrate     int
	convertPreset      string
	convertPresetsFile string
	convertForce       bool
	convertDryRun      bool
	convertOverwrite   bool
	convertNoProgress  bool
	convertTimeout     int
	convertReport      string
	convertLogLevel    string
)

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertSource, "source", "", "Source directory to convert (required)")
	convertCmd.Flags().StringVar(&convertTarget, "target", "", "Target directory for converted files (required)")
	convertCmd.Flags().StringVar(&convertCodec, "codec", "", "Target codec (mp3, aac, opus, flac)")
	convertCmd.Flags().IntVar(&convertBitrate, "bitrate", 0, "Target bitrate in kbps (codec dependent)")
	convertCmd.Flags().StringVar(&convertPreset, "preset", "", "Named codec/bitrate preset (see 'bragi formats')")
	convertCmd.Flags().StringVar(&convertPresetsFile, "presets-file", "", "YAML file with additional presets")
	convertCmd.Flags().BoolVar(&convertForce, "force", false, "Fall back to defaults for anything not specified (mp3 at 320 kbps)")
	convertCmd.Flags().BoolVar(&convertDryRun, "dry-run", false, "Analyze and report without writing any file")
	convertCmd.Flags().BoolVar(&convertOverwrite, "overwrite", false, "Reprocess files whose target is already up to date")
	convertCmd.Flags().BoolVar(&convertNoProgress, "no-progress", false, "Disable the progress bar")
	convertCmd.Flags().IntVar(&convertTimeout, "timeout", 0, "Per-file encode timeout in seconds (0 disables)")
	convertCmd.Flags().StringVar(&convertReport, "report", "", "Report path (default: <target>/conversion-report.md)")
	convertCmd.Flags().StringVar(&convertLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	convertCmd.MarkFlagRequired("source")
	convertCmd.MarkFlagRequired("target")
}

func runConvert(cmd *cobra.Command, args []string) error {
	setupLogging(convertLogLevel)

	cfg, err := config.Resolve(config.Options{
		SourceDir:      convertSource,
		TargetDir:      convertTarget,
		Codec:          convertCodec,
		BitrateKbps:    convertBitrate,
		Preset:         convertPreset,
		PresetsFile:    convertPresetsFile,
		Force:          convertForce,
		DryRun:         convertDryRun,
		Overwrite:      convertOverwrite,
		NoProgress:     convertNoProgress,
		TimeoutSeconds: convertTimeout,
		ReportPath:     convertReport,
		LogLevel:       convertLogLevel,
	})
	if err != nil {
		return err
	}

	if err := checkTools(cfg); err != nil {
		return err
	}

	logger.Info().
		Str("source", cfg.SourceDir).
		Str("target", cfg.TargetDir).
		Str("format", cfg.Target.Label()).
		Bool("dry_run", cfg.DryRun).
		Msg("bragi starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(logger, cfg)

	// The bar draws on stderr, so it stays quiet for piped runs and
	// for dry runs whose report goes to stdout.
	var bar *progressbar.ProgressBar
	if !cfg.NoProgress && !cfg.DryRun && isatty.IsTerminal(os.Stderr.Fd()) {
		p.OnProgress(func(done, total int, path string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("converting"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(30),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(done)
		})
	}

	result, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("conversion run: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}
	if ctx.Err() != nil {
		logger.Warn().Msg("interrupted, results cover processed files only")
	}

	rep := report.New(result, cfg.DryRun)
	printSummary(rep)

	if cfg.DryRun {
		fmt.Printf("\n%s", rep.RenderMarkdown())
		return nil
	}
	if err := rep.WriteFile(cfg.ReportPath); err != nil {
		return err
	}
	fmt.Printf("\nReport written to %s\n", cfg.ReportPath)
	return nil
}

// checkTools fails fast when the external binaries are missing, so a
// run does not record the same error for every single file.
func checkTools(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found, install ffmpeg or set BRAGI_FFPROBE_PATH: %w", err)
	}
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found, install ffmpeg or set BRAGI_FFMPEG_PATH: %w", err)
	}
	return nil
}

func printSummary(rep *report.Report) {
	s := rep.Summary
	if rep.DryRun {
		fmt.Printf("\nDry Run Preview:\n")
	} else {
		fmt.Printf("\nConversion Complete!\n")
	}
	fmt.Printf("  Total files: %d\n", s.TotalFiles)
	fmt.Printf("  Converted:   %d\n", s.Converted)
	fmt.Printf("  Copied:      %d\n", s.Copied)
	if s.Skipped > 0 {
		fmt.Printf("  Up to date:  %d\n", s.Skipped)
	}
	fmt.Printf("  Errors:      %d\n", s.Errors)
	fmt.Printf("  Space saved: %s (%.1f%%)\n", report.FormatSize(s.BytesSaved), s.PercentSaved)
	fmt.Printf("  Duration:    %s\n", rep.Elapsed)

	if len(rep.Failed) > 0 {
		fmt.Printf("\nFailed:\n")
		for _, f := range rep.Failed {
			fmt.Printf("  - %s: %s\n", f.Path, f.Reason)
		}
	}
}
