/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package report turns a run's per-file results into summary
// statistics and the markdown document handed to the user.
package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/bragi/internal/decision"
	"github.com/friendsincode/bragi/internal/pipeline"
)

// Summary is the run-wide statistics block. Savings compare source
// and final sizes only for files that completed without error, so a
// failed file can never count as saved space.
type Summary struct {
	TotalFiles int
	Converted  int
	Copied     int
	Skipped    int
	Errors     int

	SourceBytes  int64
	FinalBytes   int64
	BytesSaved   int64
	PercentSaved float64
	SuccessRate  float64
}

// ConvertedRow is one line of the converted-files detail table:
// a file whose decision was Convert and which completed cleanly.
type ConvertedRow struct {
	Path        string
	SourceLabel string
	TargetLabel string
	SourceSize  int64
	FinalSize   int64
	Reduction   float64
}

// FailedFile pairs a file with the error that stopped it.
type FailedFile struct {
	Path   string
	Reason string
}

// Report is the rendered form of one run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	SourceDir   string
	TargetDir   string
	TargetLabel string
	DryRun      bool
	Elapsed     time.Duration

	Summary   Summary
	Converted []ConvertedRow
	Failed    []FailedFile
}

// New builds the full report for a finished run. The pipeline's run
// ID carries over so the report matches the run's log lines.
func New(result *pipeline.RunResult, dryRun bool) *Report {
	runID := result.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := &Report{
		RunID:       runID,
		GeneratedAt: time.Now(),
		SourceDir:   result.SourceDir,
		TargetDir:   result.TargetDir,
		TargetLabel: result.Target.Label(),
		DryRun:      dryRun,
		Elapsed:     result.FinishedAt.Sub(result.StartedAt).Round(time.Second),
		Summary:     Aggregate(result.Files),
	}

	for _, fr := range result.Files {
		rel := relPath(result.SourceDir, fr.SourcePath)
		if fr.Err != nil {
			r.Failed = append(r.Failed, FailedFile{Path: rel, Reason: fr.Err.Error()})
			continue
		}
		if fr.Decision != decision.Convert {
			continue
		}
		r.Converted = append(r.Converted, ConvertedRow{
			Path:        rel,
			SourceLabel: fr.SourceLabel,
			TargetLabel: fr.TargetLabel,
			SourceSize:  fr.SourceSize,
			FinalSize:   fr.FinalSize,
			Reduction:   reduction(fr.SourceSize, fr.FinalSize),
		})
	}
	return r
}

// Aggregate computes the summary statistics over per-file results.
// An empty result set yields zero counts and a 100% success rate.
func Aggregate(files []pipeline.FileResult) Summary {
	s := Summary{TotalFiles: len(files), SuccessRate: 100}

	var cleanSource int64
	for _, fr := range files {
		s.SourceBytes += fr.SourceSize
		if fr.Err != nil {
			s.Errors++
			continue
		}
		switch fr.Decision {
		case decision.Convert:
			s.Converted++
		default:
			s.Copied++
		}
		if fr.Skipped {
			s.Skipped++
		}
		s.FinalBytes += fr.FinalSize
		cleanSource += fr.SourceSize
	}

	s.BytesSaved = cleanSource - s.FinalBytes
	if cleanSource > 0 {
		s.PercentSaved = float64(s.BytesSaved) / float64(cleanSource) * 100
	}
	if s.TotalFiles > 0 {
		s.SuccessRate = float64(s.TotalFiles-s.Errors) / float64(s.TotalFiles) * 100
	}
	return s
}

// FormatSize converts bytes to human-readable form.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), []string{"KB", "MB", "GB", "TB"}[exp])
}

func reduction(source, final int64) float64 {
	if source <= 0 {
		return 0
	}
	return float64(source-final) / float64(source) * 100
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}
