/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package pipeline orchestrates a conversion run: walk the source
// tree, probe each file, decide convert-vs-copy, execute, reapply
// metadata, and collect per-file results. One file's failure never
// aborts the run.
package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/convert"
	"github.com/friendsincode/bragi/internal/decision"
	"github.com/friendsincode/bragi/internal/format"
	"github.com/friendsincode/bragi/internal/probe"
	"github.com/friendsincode/bragi/internal/tags"
)

// FileResult records what happened to one discovered file. Once
// appended to the run it is never mutated. FinalSize is meaningful
// only when Err is nil.
type FileResult struct {
	SourcePath  string
	TargetPath  string
	Decision    decision.Decision
	SourceLabel string
	TargetLabel string
	SourceSize  int64
	FinalSize   int64
	Skipped     bool
	Err         error
}

// RunResult is the aggregate of one pipeline run. RunID ties the
// run's log lines to its report.
type RunResult struct {
	RunID      string
	SourceDir  string
	TargetDir  string
	Target     format.Target
	Files      []FileResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Prober analyzes a file's audio properties.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.AudioInfo, error)
}

// TagHandler reads and writes file metadata.
type TagHandler interface {
	Read(ctx context.Context, path string) (tags.Metadata, error)
	Write(ctx context.Context, path string, meta tags.Metadata) error
}

// Executor carries out a convert or copy work order.
type Executor interface {
	Execute(ctx context.Context, req convert.Request) (convert.Outcome, error)
}

// ProgressFunc is called after each file finishes processing.
type ProgressFunc func(done, total int, path string)

// Pipeline drives one conversion run from discovery to results.
type Pipeline struct {
	cfg      *config.Config
	logger   zerolog.Logger
	prober   Prober
	tags     TagHandler
	executor Executor
	progress ProgressFunc
}

// New wires a Pipeline with the real external-tool components.
func New(logger zerolog.Logger, cfg *config.Config) *Pipeline {
	return NewWithComponents(logger, cfg,
		probe.New(logger, cfg.FFprobePath),
		tags.NewHandler(logger, cfg.FFmpegPath, cfg.FFprobePath),
		convert.New(logger, cfg),
	)
}

// NewWithComponents wires a Pipeline with substitute components.
func NewWithComponents(logger zerolog.Logger, cfg *config.Config, prober Prober, tagHandler TagHandler, executor Executor) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		prober:   prober,
		tags:     tagHandler,
		executor: executor,
	}
}

// OnProgress registers a callback invoked after each processed file.
func (p *Pipeline) OnProgress(fn ProgressFunc) { p.progress = fn }

// Run processes every discovered file sequentially and returns the
// collected results. Cancellation is honored between files: already
// processed files keep their results and the run returns what it has.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	files, err := p.discover()
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		SourceDir: p.cfg.SourceDir,
		TargetDir: p.cfg.TargetDir,
		Target:    p.cfg.Target,
		StartedAt: time.Now(),
	}

	p.logger.Info().
		Str("run_id", result.RunID).
		Int("files", len(files)).
		Str("target", p.cfg.Target.Label()).
		Bool("dry_run", p.cfg.DryRun).
		Msg("starting conversion run")

	for i, source := range files {
		if ctx.Err() != nil {
			p.logger.Warn().
				Int("processed", i).
				Int("remaining", len(files)-i).
				Msg("run interrupted")
			break
		}

		result.Files = append(result.Files, p.processFile(ctx, source))
		if p.progress != nil {
			p.progress(i+1, len(files), source)
		}
	}

	result.FinishedAt = time.Now()
	p.logger.Info().
		Int("files", len(result.Files)).
		Dur("took", result.FinishedAt.Sub(result.StartedAt)).
		Msg("conversion run finished")
	return result, nil
}

// discover walks the source tree and collects recognized audio files
// in deterministic lexical order. Hidden files and directories are
// skipped.
func (p *Pipeline) discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.cfg.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.cfg.SourceDir {
				return err
			}
			p.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != p.cfg.SourceDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !format.IsAudioFile(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug().Int("files", len(files)).Str("dir", p.cfg.SourceDir).Msg("discovery complete")
	return files, nil
}

func (p *Pipeline) processFile(ctx context.Context, source string) FileResult {
	fr := FileResult{SourcePath: source}

	srcInfo, err := os.Stat(source)
	if err != nil {
		fr.Err = &convert.IOError{Path: source, Err: err}
		return p.recorded(fr)
	}
	fr.SourceSize = srcInfo.Size()

	audio, err := p.prober.Probe(ctx, source)
	if err != nil {
		fr.Err = err
		return p.recorded(fr)
	}
	fr.SourceLabel = audio.Label()

	meta, err := p.tags.Read(ctx, source)
	if err != nil {
		fr.Err = err
		return p.recorded(fr)
	}

	fr.Decision = decision.Decide(audio, p.cfg.Target)
	fr.TargetPath = p.targetPath(source, fr.Decision)
	if fr.Decision == decision.Convert {
		fr.TargetLabel = p.cfg.Target.Label()
	} else {
		fr.TargetLabel = fr.SourceLabel
	}

	// An up-to-date target from an earlier run is left alone unless
	// the user asked to overwrite. The computed decision still lands
	// in the results so repeated runs report the same totals.
	if !p.cfg.Overwrite {
		if fi, err := os.Stat(fr.TargetPath); err == nil && !fi.ModTime().Before(srcInfo.ModTime()) {
			fr.FinalSize = fi.Size()
			fr.Skipped = true
			return p.recorded(fr)
		}
	}

	outcome, err := p.executor.Execute(ctx, convert.Request{
		Decision:   fr.Decision,
		SourcePath: source,
		TargetPath: fr.TargetPath,
		Source:     audio,
		Target:     p.cfg.Target,
	})
	if err != nil {
		fr.Err = err
		return p.recorded(fr)
	}
	fr.FinalSize = outcome.FinalSize

	if !p.cfg.DryRun {
		if err := p.tags.Write(ctx, fr.TargetPath, meta); err != nil {
			fr.Err = err
			return p.recorded(fr)
		}
		// Tag rewrites shift the file size, so measure afterwards.
		if fi, err := os.Stat(fr.TargetPath); err == nil {
			fr.FinalSize = fi.Size()
		}
	}

	return p.recorded(fr)
}

// targetPath mirrors the source file's relative path under the target
// root. Conversions take the target format's extension, copies keep
// their own.
func (p *Pipeline) targetPath(source string, dec decision.Decision) string {
	rel, err := filepath.Rel(p.cfg.SourceDir, source)
	if err != nil {
		rel = filepath.Base(source)
	}
	target := filepath.Join(p.cfg.TargetDir, rel)
	if dec == decision.Convert {
		target = strings.TrimSuffix(target, filepath.Ext(target)) + p.cfg.Target.Extension()
	}
	return target
}

func (p *Pipeline) recorded(fr FileResult) FileResult {
	if fr.Err != nil {
		p.logger.Warn().Str("source", fr.SourcePath).Err(fr.Err).Msg("file failed")
		return fr
	}
	p.logger.Debug().
		Str("source", fr.SourcePath).
		Str("decision", string(fr.Decision)).
		Bool("skipped", fr.Skipped).
		Msg("file recorded")
	return fr
}
