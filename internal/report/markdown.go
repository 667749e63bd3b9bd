/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RenderMarkdown produces the report document.
func (r *Report) RenderMarkdown() string {
	var b strings.Builder

	b.WriteString("# Conversion Report\n\n")
	fmt.Fprintf(&b, "- Run ID: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Date: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- Source: `%s`\n", r.SourceDir)
	fmt.Fprintf(&b, "- Target: `%s`\n", r.TargetDir)
	fmt.Fprintf(&b, "- Format: %s\n", r.TargetLabel)
	if r.DryRun {
		b.WriteString("- Mode: dry run, nothing was written\n")
	}

	s := r.Summary
	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(&b, "| Total files | %d |\n", s.TotalFiles)
	fmt.Fprintf(&b, "| Converted | %d |\n", s.Converted)
	fmt.Fprintf(&b, "| Copied | %d |\n", s.Copied)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "| Already up to date | %d |\n", s.Skipped)
	}
	fmt.Fprintf(&b, "| Errors | %d |\n", s.Errors)
	fmt.Fprintf(&b, "| Source size | %s |\n", FormatSize(s.SourceBytes))
	fmt.Fprintf(&b, "| Final size | %s |\n", FormatSize(s.FinalBytes))
	fmt.Fprintf(&b, "| Space saved | %s (%.1f%%) |\n", FormatSize(s.BytesSaved), s.PercentSaved)
	fmt.Fprintf(&b, "| Success rate | %.1f%% |\n", s.SuccessRate)
	fmt.Fprintf(&b, "| Elapsed | %s |\n", r.Elapsed)

	if len(r.Converted) > 0 {
		b.WriteString("\n## Converted Files\n\n")
		b.WriteString("| File | From | To | Original | Final | Saved |\n")
		b.WriteString("|------|------|----|----------|-------|-------|\n")
		for _, row := range r.Converted {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %.1f%% |\n",
				row.Path, row.SourceLabel, row.TargetLabel,
				FormatSize(row.SourceSize), FormatSize(row.FinalSize), row.Reduction)
		}
	}

	if len(r.Failed) > 0 {
		b.WriteString("\n## Failed Files\n\n")
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Path, f.Reason)
		}
	}

	return b.String()
}

// WriteFile writes the rendered report, creating parent directories
// as needed.
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(r.RenderMarkdown()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
