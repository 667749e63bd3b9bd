/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/bragi/internal/format"
)

// Defaults applied when --force is given without an explicit codec.
const (
	DefaultCodec       = format.CodecMP3
	DefaultBitrateKbps = 320
)

// Config is the fully resolved run configuration handed to the
// pipeline. All validation happens in Resolve; a Config in hand is
// ready to use.
type Config struct {
	SourceDir string
	TargetDir string
	Target    format.Target

	DryRun     bool
	Overwrite  bool
	NoProgress bool

	// EncodeTimeout bounds a single encoder invocation. Zero disables
	// the timeout; a timed-out file is recorded as failed and its
	// partial output removed.
	EncodeTimeout time.Duration

	ReportPath  string
	FFmpegPath  string
	FFprobePath string
	LogLevel    string
}

// Options carries the raw command-line values before resolution.
// Zero values mean "not set"; Resolve applies presets, environment
// fallbacks and defaults on top.
type Options struct {
	SourceDir   string
	TargetDir   string
	Codec       string
	BitrateKbps int
	Preset      string
	PresetsFile string

	Force      bool
	DryRun     bool
	Overwrite  bool
	NoProgress bool

	TimeoutSeconds int
	ReportPath     string
	LogLevel       string
}

// Resolve turns raw options into a validated Config.
//
// Codec and bitrate are resolved in priority order: explicit flags,
// then the named preset, then environment variables, then — only with
// --force — the mp3/320 defaults. Without --force an unset codec is
// an error rather than a guess.
func Resolve(opts Options) (*Config, error) {
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("source directory must be provided")
	}
	if opts.TargetDir == "" {
		return nil, fmt.Errorf("target directory must be provided")
	}

	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}
	targetDir, err := filepath.Abs(opts.TargetDir)
	if err != nil {
		return nil, fmt.Errorf("resolve target directory: %w", err)
	}
	if sourceDir == targetDir {
		return nil, fmt.Errorf("source and target directories must differ")
	}
	// A target inside the source tree would feed this run's output
	// back into the next run's discovery walk.
	if rel, err := filepath.Rel(sourceDir, targetDir); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("target directory %q is inside the source tree", targetDir)
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %q is not a directory", sourceDir)
	}

	codec := strings.ToLower(opts.Codec)
	bitrate := opts.BitrateKbps

	if opts.Preset != "" {
		preset, err := ResolvePreset(opts.Preset, presetsFile(opts))
		if err != nil {
			return nil, err
		}
		// Explicit flags still win over the preset.
		if codec == "" {
			codec = preset.Codec
		}
		if bitrate == 0 {
			bitrate = preset.BitrateKbps
		}
	}

	if codec == "" {
		codec = strings.ToLower(getEnvAny([]string{"BRAGI_CODEC"}, ""))
	}
	if bitrate == 0 {
		bitrate = getEnvIntAny([]string{"BRAGI_BITRATE"}, 0)
	}

	if codec == "" {
		if !opts.Force {
			return nil, fmt.Errorf("no target codec specified: use --codec, --preset, or --force to accept the %s/%d defaults", DefaultCodec, DefaultBitrateKbps)
		}
		codec = DefaultCodec
		if bitrate == 0 {
			bitrate = DefaultBitrateKbps
		}
	}

	if bitrate == 0 && !format.IsLossless(codec) {
		if !opts.Force {
			return nil, fmt.Errorf("no bitrate specified for %s: use --bitrate (allowed: %v) or --force to accept the default", codec, format.AllowedBitrates(codec))
		}
		bitrate = defaultBitrateFor(codec)
	}

	target, err := format.NewTarget(codec, bitrate)
	if err != nil {
		return nil, err
	}

	if opts.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}
	timeoutSec := opts.TimeoutSeconds
	if timeoutSec == 0 {
		timeoutSec = getEnvIntAny([]string{"BRAGI_TIMEOUT_SECONDS"}, 0)
	}

	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = filepath.Join(targetDir, "conversion-report.md")
	}

	cfg := &Config{
		SourceDir:     sourceDir,
		TargetDir:     targetDir,
		Target:        target,
		DryRun:        opts.DryRun,
		Overwrite:     opts.Overwrite,
		NoProgress:    opts.NoProgress || getEnvBoolAny([]string{"BRAGI_NO_PROGRESS", "NO_PROGRESS"}, false),
		EncodeTimeout: time.Duration(timeoutSec) * time.Second,
		ReportPath:    reportPath,
		FFmpegPath:    getEnvAny([]string{"BRAGI_FFMPEG_PATH", "FFMPEG_PATH"}, "ffmpeg"),
		FFprobePath:   getEnvAny([]string{"BRAGI_FFPROBE_PATH", "FFPROBE_PATH"}, "ffprobe"),
		LogLevel:      opts.LogLevel,
	}
	return cfg, nil
}

// defaultBitrateFor picks the top entry of a codec's bitrate menu,
// matching the mp3/320 force default.
func defaultBitrateFor(codec string) int {
	rates := format.AllowedBitrates(codec)
	if len(rates) == 0 {
		return 0
	}
	return rates[len(rates)-1]
}

func presetsFile(opts Options) string {
	if opts.PresetsFile != "" {
		return opts.PresetsFile
	}
	return getEnvAny([]string{"BRAGI_PRESETS"}, "")
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
