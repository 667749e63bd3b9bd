/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package report

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/bragi/internal/decision"
	"github.com/friendsincode/bragi/internal/format"
	"github.com/friendsincode/bragi/internal/pipeline"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.01 {
		t.Errorf("%s = %.4f, want %.4f", name, got, want)
	}
}

func TestAggregateMixedRun(t *testing.T) {
	files := []pipeline.FileResult{
		{Decision: decision.Convert, SourceSize: 1000, FinalSize: 400},
		{Decision: decision.Convert, SourceSize: 2000, FinalSize: 600},
		{Decision: decision.Copy, SourceSize: 500, FinalSize: 500},
		{Decision: decision.Copy, SourceSize: 300, FinalSize: 300, Skipped: true},
		{Decision: decision.Convert, SourceSize: 800, Err: errors.New("encoder failed")},
	}

	s := Aggregate(files)
	if s.TotalFiles != 5 || s.Converted != 2 || s.Copied != 2 || s.Skipped != 1 || s.Errors != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.SourceBytes != 4600 {
		t.Errorf("SourceBytes = %d, want 4600", s.SourceBytes)
	}
	if s.FinalBytes != 1800 {
		t.Errorf("FinalBytes = %d, want 1800", s.FinalBytes)
	}

	// The errored file contributes nothing to savings: 3800 clean
	// source bytes became 1800.
	if s.BytesSaved != 2000 {
		t.Errorf("BytesSaved = %d, want 2000", s.BytesSaved)
	}
	approx(t, "PercentSaved", s.PercentSaved, 2000.0/3800.0*100)
	approx(t, "SuccessRate", s.SuccessRate, 80)
}

func TestAggregateEmptyRun(t *testing.T) {
	s := Aggregate(nil)
	if s.TotalFiles != 0 || s.Converted != 0 || s.Copied != 0 || s.Errors != 0 {
		t.Errorf("counts = %+v", s)
	}
	approx(t, "PercentSaved", s.PercentSaved, 0)
	approx(t, "SuccessRate", s.SuccessRate, 100)
}

func TestAggregateAllErrors(t *testing.T) {
	files := []pipeline.FileResult{
		{SourceSize: 100, Err: errors.New("bad")},
		{SourceSize: 200, Err: errors.New("worse")},
	}
	s := Aggregate(files)
	if s.Errors != 2 || s.FinalBytes != 0 || s.BytesSaved != 0 {
		t.Errorf("summary = %+v", s)
	}
	approx(t, "PercentSaved", s.PercentSaved, 0)
	approx(t, "SuccessRate", s.SuccessRate, 0)
}

func mustTarget(t *testing.T, codec string, bitrate int) format.Target {
	t.Helper()
	target, err := format.NewTarget(codec, bitrate)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	return target
}

func TestNewReportRowsAndFailures(t *testing.T) {
	started := time.Now().Add(-90 * time.Second)
	result := &pipeline.RunResult{
		SourceDir:  "/music/src",
		TargetDir:  "/music/dst",
		Target:     mustTarget(t, "mp3", 320),
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Files: []pipeline.FileResult{
			{
				SourcePath:  "/music/src/album/01.flac",
				Decision:    decision.Convert,
				SourceLabel: "FLAC (lossless)",
				TargetLabel: "MP3 @ 320 kbps",
				SourceSize:  1000,
				FinalSize:   250,
			},
			{
				SourcePath:  "/music/src/02.mp3",
				Decision:    decision.Copy,
				SourceLabel: "MP3 @ 192 kbps",
				TargetLabel: "MP3 @ 192 kbps",
				SourceSize:  600,
				FinalSize:   600,
			},
			{
				SourcePath: "/music/src/bad.mp3",
				Decision:   decision.Convert,
				SourceSize: 300,
				Err:        errors.New("probe failed"),
			},
		},
	}

	r := New(result, false)
	if r.RunID == "" || len(r.RunID) != 36 {
		t.Errorf("RunID = %q", r.RunID)
	}
	if r.TargetLabel != "MP3 @ 320 kbps" {
		t.Errorf("TargetLabel = %q", r.TargetLabel)
	}
	if r.Elapsed != 90*time.Second {
		t.Errorf("Elapsed = %s", r.Elapsed)
	}

	// Detail rows cover clean conversions only: copies and failures
	// stay out.
	if len(r.Converted) != 1 {
		t.Fatalf("converted rows = %d, want 1: %+v", len(r.Converted), r.Converted)
	}
	row := r.Converted[0]
	if row.Path != filepath.Join("album", "01.flac") {
		t.Errorf("row path = %q", row.Path)
	}
	approx(t, "Reduction", row.Reduction, 75)

	if len(r.Failed) != 1 {
		t.Fatalf("failed rows = %d, want 1", len(r.Failed))
	}
	if r.Failed[0].Path != "bad.mp3" || !strings.Contains(r.Failed[0].Reason, "probe failed") {
		t.Errorf("failed row = %+v", r.Failed[0])
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := &Report{
		RunID:       "11111111-2222-3333-4444-555555555555",
		GeneratedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		SourceDir:   "/music/src",
		TargetDir:   "/music/dst",
		TargetLabel: "MP3 @ 320 kbps",
		Elapsed:     90 * time.Second,
		Summary: Summary{
			TotalFiles: 3, Converted: 1, Copied: 1, Errors: 1,
			SourceBytes: 1900, FinalBytes: 850,
			BytesSaved: 750, PercentSaved: 46.875, SuccessRate: 66.6667,
		},
		Converted: []ConvertedRow{{
			Path:        "album/01.flac",
			SourceLabel: "FLAC (lossless)",
			TargetLabel: "MP3 @ 320 kbps",
			SourceSize:  1000,
			FinalSize:   250,
			Reduction:   75,
		}},
		Failed: []FailedFile{{Path: "bad.mp3", Reason: "probe failed"}},
	}

	doc := r.RenderMarkdown()
	for _, want := range []string{
		"# Conversion Report",
		"- Run ID: `11111111-2222-3333-4444-555555555555`",
		"- Date: 2026-03-14 15:09:26",
		"- Format: MP3 @ 320 kbps",
		"| Total files | 3 |",
		"| Converted | 1 |",
		"| Errors | 1 |",
		"| Success rate | 66.7% |",
		"| Elapsed | 1m30s |",
		"## Converted Files",
		"| album/01.flac | FLAC (lossless) | MP3 @ 320 kbps |",
		"| 75.0% |",
		"## Failed Files",
		"- `bad.mp3`: probe failed",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(doc, "dry run") {
		t.Error("real run rendered the dry run banner")
	}
	if strings.Contains(doc, "Already up to date") {
		t.Error("skip row rendered with zero skips")
	}

	r.DryRun = true
	r.Summary.Skipped = 2
	doc = r.RenderMarkdown()
	if !strings.Contains(doc, "dry run, nothing was written") {
		t.Error("dry run banner missing")
	}
	if !strings.Contains(doc, "| Already up to date | 2 |") {
		t.Error("skip row missing")
	}
}

func TestRenderMarkdownOmitsEmptySections(t *testing.T) {
	r := &Report{Summary: Summary{SuccessRate: 100}}
	doc := r.RenderMarkdown()
	if strings.Contains(doc, "## Converted Files") {
		t.Error("empty converted table rendered")
	}
	if strings.Contains(doc, "## Failed Files") {
		t.Error("empty failed list rendered")
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{26843546, "25.6 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.in); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	r := &Report{
		RunID:       "run",
		TargetLabel: "FLAC (lossless)",
		Summary:     Summary{SuccessRate: 100},
	}
	path := filepath.Join(t.TempDir(), "deep", "nested", "report.md")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "# Conversion Report") {
		t.Errorf("report content = %q", data)
	}
}
