/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/format"
	"github.com/friendsincode/bragi/internal/probe"
	"github.com/friendsincode/bragi/internal/tags"
)

var probeCmd = &cobra.Command{
	Use:   "probe [paths...]",
	Short: "Inspect audio files and print their properties as JSON",
	Long: "Analyze audio files with ffprobe and print codec, bitrate, duration and metadata as JSON.\n" +
		"Directory arguments are walked recursively for recognized audio files.",
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

var probeLogLevel string

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probeLogLevel, "log-level", "error", "Log level (trace, debug, info, warn, error)")
}

type probeOutput struct {
	Path  string          `json:"path"`
	Audio probe.AudioInfo `json:"audio"`
	Tags  *tags.Metadata  `json:"tags,omitempty"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	setupLogging(probeLogLevel)

	ffprobeBin := envOr("BRAGI_FFPROBE_PATH", envOr("FFPROBE_PATH", "ffprobe"))
	ffmpegBin := envOr("BRAGI_FFMPEG_PATH", envOr("FFMPEG_PATH", "ffmpeg"))
	prober := probe.New(logger, ffprobeBin)
	tagHandler := tags.NewHandler(logger, ffmpegBin, ffprobeBin)

	paths, err := expandProbePaths(args)
	if err != nil {
		return err
	}

	var outputs []probeOutput
	var failures int
	for _, path := range paths {
		info, err := prober.Probe(cmd.Context(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			failures++
			continue
		}
		out := probeOutput{Path: path, Audio: info}
		if meta, err := tagHandler.Read(cmd.Context(), path); err == nil && !meta.Empty() {
			out.Tags = &meta
		}
		outputs = append(outputs, out)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outputs); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files could not be probed", failures, len(paths))
	}
	return nil
}

// expandProbePaths resolves command line arguments to concrete files.
// Directories are walked for recognized audio files the same way a
// conversion run discovers them. Explicitly named files pass through
// untouched so probing an unrecognized extension still works.
func expandProbePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil || !st.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == arg {
					return err
				}
				fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, err)
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") && path != arg {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !format.IsAudioFile(d.Name()) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
