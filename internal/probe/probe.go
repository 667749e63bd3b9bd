/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package probe wraps ffprobe to extract the audio properties the
// decision engine works from: codec, bitrate, duration, sample rate,
// channel count and the lossless classification.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/format"
)

// ErrFFprobeNotFound reports that the ffprobe binary is not installed
// or not on PATH.
var ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")

// AudioInfo is the normalized probe result for one file.
type AudioInfo struct {
	Codec           string  `json:"codec"`
	BitrateKbps     int     `json:"bitrate_kbps,omitempty"`
	IsLossless      bool    `json:"is_lossless"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
}

// Label renders the codec/bitrate pair for reports, e.g. "ALAC (lossless)".
func (i AudioInfo) Label() string {
	return format.Label(i.Codec, i.BitrateKbps, i.IsLossless)
}

// ProbeError reports that a file could not be analyzed.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe %s: %v", e.Path, e.Err) }
func (e *ProbeError) Unwrap() error { return e.Err }

// Runner executes an external command and returns its stdout and
// stderr. The default implementation shells out; tests substitute
// canned output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Prober runs ffprobe against individual files.
type Prober struct {
	logger zerolog.Logger
	bin    string
	runner Runner
}

// New creates a Prober using the given ffprobe binary path.
func New(logger zerolog.Logger, bin string) *Prober {
	return NewWithRunner(logger, bin, execRunner{})
}

// NewWithRunner creates a Prober with a custom command runner.
func NewWithRunner(logger zerolog.Logger, bin string, runner Runner) *Prober {
	return &Prober{
		logger: logger.With().Str("component", "prober").Logger(),
		bin:    bin,
		runner: runner,
	}
}

// Probe analyzes one file and returns its normalized audio
// properties. It fails with a ProbeError when ffprobe cannot analyze
// the file, returns no audio stream, or is not installed (in which
// case the error also matches ErrFFprobeNotFound).
func (p *Prober) Probe(ctx context.Context, path string) (AudioInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	stdout, stderr, err := p.runner.Run(ctx, p.bin, args...)
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return AudioInfo{}, &ProbeError{Path: path, Err: ErrFFprobeNotFound}
		}
		return AudioInfo{}, &ProbeError{Path: path, Err: fmt.Errorf("ffprobe: %w%s", err, stderrHint(stderr))}
	}

	var result struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			BitRate    string `json:"bit_rate"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			BitRate  string `json:"bit_rate"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout, &result); err != nil {
		return AudioInfo{}, &ProbeError{Path: path, Err: fmt.Errorf("parse ffprobe output: %w", err)}
	}

	for _, stream := range result.Streams {
		if stream.CodecType != "audio" {
			continue
		}

		codec := normalizeCodec(stream.CodecName)

		// Some containers report the bitrate only at format level
		// (flac, wav), others per stream.
		bitrate := parseIntString(stream.BitRate)
		if bitrate == 0 {
			bitrate = parseIntString(result.Format.BitRate)
		}

		duration := parseFloatString(result.Format.Duration)
		if duration == 0 {
			duration = parseFloatString(stream.Duration)
		}

		info := AudioInfo{
			Codec:           codec,
			BitrateKbps:     bitrate / 1000,
			IsLossless:      format.IsLossless(codec),
			DurationSeconds: duration,
			SampleRate:      parseIntString(stream.SampleRate),
			Channels:        stream.Channels,
		}

		p.logger.Debug().
			Str("path", path).
			Str("codec", info.Codec).
			Int("bitrate_kbps", info.BitrateKbps).
			Bool("lossless", info.IsLossless).
			Msg("probed file")

		return info, nil
	}

	return AudioInfo{}, &ProbeError{Path: path, Err: errors.New("no audio stream found")}
}

// normalizeCodec collapses ffprobe codec names into the identifiers
// the rest of the pipeline works with: every pcm_* variant is plain
// pcm, every wmav1/wmav2/wmapro generation is plain wma.
func normalizeCodec(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(name, "pcm_"):
		return format.CodecPCM
	case strings.HasPrefix(name, "wma"):
		return format.CodecWMA
	}
	return name
}

func parseIntString(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func parseFloatString(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func stderrHint(stderr []byte) string {
	line := strings.TrimSpace(strings.SplitN(string(stderr), "\n", 2)[0])
	if line == "" {
		return ""
	}
	return ": " + line
}
