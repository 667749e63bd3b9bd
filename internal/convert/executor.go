/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package convert carries out the per-file work order: encode the
// source into the target format with ffmpeg, or copy it over
// unchanged. In dry-run mode nothing is written and sizes are
// projected instead.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/decision"
	"github.com/friendsincode/bragi/internal/format"
	"github.com/friendsincode/bragi/internal/probe"
)

// ErrFFmpegNotFound reports that the ffmpeg binary is not installed
// or not on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// EncodeError reports a failed or unusable encoder run.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encode %s: %v", e.Path, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// IOError reports a failed file copy or filesystem operation.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("io %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

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

// Request describes one file's work order.
type Request struct {
	Decision   decision.Decision
	SourcePath string
	TargetPath string
	Source     probe.AudioInfo
	Target     format.Target
}

// Outcome reports what landed at the target path. Projected outcomes
// come from dry runs: the size is an estimate and no file exists.
type Outcome struct {
	TargetPath string
	FinalSize  int64
	Projected  bool
}

// Executor turns decisions into files on disk.
type Executor struct {
	logger  zerolog.Logger
	ffmpeg  string
	runner  Runner
	dryRun  bool
	timeout time.Duration
}

// New creates an Executor from the resolved run configuration.
func New(logger zerolog.Logger, cfg *config.Config) *Executor {
	return NewWithRunner(logger, cfg, execRunner{})
}

// NewWithRunner creates an Executor with a custom command runner.
func NewWithRunner(logger zerolog.Logger, cfg *config.Config, runner Runner) *Executor {
	return &Executor{
		logger:  logger.With().Str("component", "executor").Logger(),
		ffmpeg:  cfg.FFmpegPath,
		runner:  runner,
		dryRun:  cfg.DryRun,
		timeout: cfg.EncodeTimeout,
	}
}

// Execute performs the request and returns the resulting file size.
// Failures leave no partial target file behind.
func (e *Executor) Execute(ctx context.Context, req Request) (Outcome, error) {
	if e.dryRun {
		return e.project(req)
	}

	if err := os.MkdirAll(filepath.Dir(req.TargetPath), 0o755); err != nil {
		return Outcome{}, &IOError{Path: req.TargetPath, Err: err}
	}

	if req.Decision == decision.Convert {
		return e.encode(ctx, req)
	}
	return e.copyFile(req)
}

// project estimates the outcome without touching the target tree.
// Copies land at the source size; conversions are sized from duration
// and target bitrate when both are known.
func (e *Executor) project(req Request) (Outcome, error) {
	fi, err := os.Stat(req.SourcePath)
	if err != nil {
		return Outcome{}, &IOError{Path: req.SourcePath, Err: err}
	}

	size := fi.Size()
	if req.Decision == decision.Convert && req.Source.DurationSeconds > 0 && req.Target.BitrateKbps > 0 {
		size = int64(req.Source.DurationSeconds * float64(req.Target.BitrateKbps) * 1000 / 8)
	}
	return Outcome{TargetPath: req.TargetPath, FinalSize: size, Projected: true}, nil
}

func (e *Executor) encode(ctx context.Context, req Request) (Outcome, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := encodeArgs(req.SourcePath, req.Target, req.TargetPath)
	start := time.Now()
	_, stderr, err := e.runner.Run(ctx, e.ffmpeg, args...)
	if err != nil {
		os.Remove(req.TargetPath)
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return Outcome{}, &EncodeError{Path: req.SourcePath, Err: ErrFFmpegNotFound}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{}, &EncodeError{Path: req.SourcePath, Err: fmt.Errorf("ffmpeg timed out after %s", e.timeout)}
		}
		return Outcome{}, &EncodeError{Path: req.SourcePath, Err: fmt.Errorf("ffmpeg: %w%s", err, stderrHint(stderr))}
	}

	fi, err := os.Stat(req.TargetPath)
	if err != nil || fi.Size() == 0 {
		os.Remove(req.TargetPath)
		return Outcome{}, &EncodeError{Path: req.SourcePath, Err: errors.New("ffmpeg produced no output")}
	}

	e.logger.Debug().
		Str("source", req.SourcePath).
		Str("target", req.TargetPath).
		Str("codec", req.Target.Codec).
		Dur("took", time.Since(start)).
		Msg("encoded")
	return Outcome{TargetPath: req.TargetPath, FinalSize: fi.Size()}, nil
}

func (e *Executor) copyFile(req Request) (Outcome, error) {
	in, err := os.Open(req.SourcePath)
	if err != nil {
		return Outcome{}, &IOError{Path: req.SourcePath, Err: err}
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return Outcome{}, &IOError{Path: req.SourcePath, Err: err}
	}

	out, err := os.Create(req.TargetPath)
	if err != nil {
		return Outcome{}, &IOError{Path: req.TargetPath, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(req.TargetPath)
		return Outcome{}, &IOError{Path: req.TargetPath, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(req.TargetPath)
		return Outcome{}, &IOError{Path: req.TargetPath, Err: err}
	}

	// Carry the source mtime over so an unchanged file is skipped on
	// the next run.
	if err := os.Chtimes(req.TargetPath, time.Now(), srcInfo.ModTime()); err != nil {
		e.logger.Debug().Err(err).Str("target", req.TargetPath).Msg("preserving mtime failed")
	}

	e.logger.Debug().
		Str("source", req.SourcePath).
		Str("target", req.TargetPath).
		Int64("bytes", srcInfo.Size()).
		Msg("copied")
	return Outcome{TargetPath: req.TargetPath, FinalSize: srcInfo.Size()}, nil
}

func encodeArgs(source string, target format.Target, out string) []string {
	args := []string{
		"-y",
		"-i", source,
		"-vn",
		"-map_metadata", "0",
		"-c:a", target.Encoder(),
	}
	if target.BitrateKbps > 0 {
		args = append(args, "-b:a", strconv.Itoa(target.BitrateKbps)+"k")
	}
	switch target.Codec {
	case format.CodecAAC:
		args = append(args, "-movflags", "+faststart")
	case format.CodecFLAC:
		args = append(args, "-compression_level", "8")
	}
	return append(args, out)
}

func stderrHint(stderr []byte) string {
	line := strings.TrimSpace(strings.SplitN(string(stderr), "\n", 2)[0])
	if line == "" {
		return ""
	}
	return ": " + line
}
