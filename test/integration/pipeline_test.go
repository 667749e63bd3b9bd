/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/convert"
	"github.com/friendsincode/bragi/internal/decision"
	"github.com/friendsincode/bragi/internal/format"
	"github.com/friendsincode/bragi/internal/pipeline"
	"github.com/friendsincode/bragi/internal/probe"
	"github.com/friendsincode/bragi/internal/report"
	"github.com/friendsincode/bragi/internal/tags"
)

// junkMP3 is a minimal frame sync followed by padding, enough for the
// tag libraries to treat the file as an mp3.
var junkMP3 = append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 256)...)

// toolRunner stands in for ffprobe and ffmpeg: probes answer from a
// canned table keyed by file name, encodes and remuxes write junk mp3
// bytes to their output path.
type toolRunner struct {
	probes map[string]string
}

func (r *toolRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if len(args) == 0 {
		return nil, nil, errors.New("no arguments")
	}
	out := args[len(args)-1]
	if strings.Contains(name, "ffprobe") {
		js, ok := r.probes[filepath.Base(out)]
		if !ok {
			return nil, []byte("unrecognized format\n"), errors.New("exit status 1")
		}
		return []byte(js), nil, nil
	}
	if err := os.WriteFile(out, junkMP3, 0o644); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

func seedFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}

func seedTaggedMP3(t *testing.T, path, title, artist, album string) {
	t.Helper()
	seedFile(t, path, junkMP3)
	id3, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open id3: %v", err)
	}
	id3.SetDefaultEncoding(id3v2.EncodingUTF8)
	id3.SetTitle(title)
	id3.SetArtist(artist)
	id3.SetAlbum(album)
	if err := id3.Save(); err != nil {
		t.Fatalf("save id3: %v", err)
	}
	id3.Close()
}

func readID3(t *testing.T, path string) tag.Metadata {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	meta, err := tag.ReadFrom(f)
	if err != nil {
		t.Fatalf("read tags from %s: %v", path, err)
	}
	return meta
}

func newRunPipeline(t *testing.T, cfg *config.Config, runner *toolRunner) *pipeline.Pipeline {
	t.Helper()
	logger := zerolog.Nop()
	return pipeline.NewWithComponents(logger, cfg,
		probe.NewWithRunner(logger, cfg.FFprobePath, runner),
		tags.NewHandlerWithRunner(logger, cfg.FFmpegPath, cfg.FFprobePath, runner),
		convert.NewWithRunner(logger, cfg, runner),
	)
}

func TestFullConversionRun(t *testing.T) {
	sourceDir := filepath.Join(t.TempDir(), "library")
	targetDir := filepath.Join(t.TempDir(), "converted")

	target, err := format.NewTarget("mp3", 320)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	cfg := &config.Config{
		SourceDir:   sourceDir,
		TargetDir:   targetDir,
		Target:      target,
		ReportPath:  filepath.Join(targetDir, "conversion-report.md"),
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}

	// One mp3 under the ceiling (copied), one lossless flac
	// (converted), one opus under the ceiling (copied, retagged via
	// remux), one file ffprobe cannot read (error).
	seedTaggedMP3(t, filepath.Join(sourceDir, "album", "keep.mp3"), "Keeper", "The Holdouts", "First Press")
	seedFile(t, filepath.Join(sourceDir, "album", "big.flac"), []byte("NOT A REAL FLAC STREAM"))
	seedFile(t, filepath.Join(sourceDir, "skip.opus"), []byte("NOT A REAL OPUS STREAM"))
	seedFile(t, filepath.Join(sourceDir, "bad.wav"), []byte("GARBAGE"))

	runner := &toolRunner{probes: map[string]string{
		"keep.mp3": `{
			"streams": [{"codec_type": "audio", "codec_name": "mp3", "bit_rate": "192000", "sample_rate": "44100", "channels": 2}],
			"format": {"duration": "180.5", "bit_rate": "192000"}
		}`,
		"big.flac": `{
			"streams": [{"codec_type": "audio", "codec_name": "flac", "sample_rate": "44100", "channels": 2}],
			"format": {"duration": "100.0", "bit_rate": "900000", "tags": {"TITLE": "Big Song", "ARTIST": "The Longboats"}}
		}`,
		"skip.opus": `{
			"streams": [{"codec_type": "audio", "codec_name": "opus", "bit_rate": "128000", "channels": 2, "tags": {"title": "Skipper"}}],
			"format": {"duration": "60.0"}
		}`,
	}}

	result, err := newRunPipeline(t, cfg, runner).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Files) != 4 {
		t.Fatalf("processed %d files, want 4", len(result.Files))
	}

	byName := map[string]pipeline.FileResult{}
	for _, fr := range result.Files {
		byName[filepath.Base(fr.SourcePath)] = fr
	}

	if fr := byName["keep.mp3"]; fr.Decision != decision.Copy || fr.Err != nil {
		t.Errorf("keep.mp3 = %+v", fr)
	}
	if fr := byName["big.flac"]; fr.Decision != decision.Convert || fr.Err != nil {
		t.Errorf("big.flac = %+v", fr)
	}
	if fr := byName["skip.opus"]; fr.Decision != decision.Copy || fr.Err != nil {
		t.Errorf("skip.opus = %+v", fr)
	}
	var probeErr *probe.ProbeError
	if fr := byName["bad.wav"]; !errors.As(fr.Err, &probeErr) {
		t.Errorf("bad.wav error = %v, want ProbeError", fr.Err)
	}

	// The copied mp3 keeps its tags through the copy and rewrite.
	kept := readID3(t, filepath.Join(targetDir, "album", "keep.mp3"))
	if kept.Title() != "Keeper" || kept.Artist() != "The Holdouts" || kept.Album() != "First Press" {
		t.Errorf("copied mp3 tags = %q/%q/%q", kept.Title(), kept.Artist(), kept.Album())
	}

	// The converted file lands with the target extension and carries
	// the source metadata that came out of the probe fallback.
	converted := readID3(t, filepath.Join(targetDir, "album", "big.mp3"))
	if converted.Title() != "Big Song" || converted.Artist() != "The Longboats" {
		t.Errorf("converted tags = %q/%q", converted.Title(), converted.Artist())
	}

	// The failed file produced no target.
	if _, err := os.Stat(filepath.Join(targetDir, "bad.wav")); !os.IsNotExist(err) {
		t.Error("errored file left a target behind")
	}

	rep := report.New(result, false)
	s := rep.Summary
	if s.TotalFiles != 4 || s.Converted != 1 || s.Copied != 2 || s.Errors != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.SuccessRate != 75 {
		t.Errorf("success rate = %.1f, want 75.0", s.SuccessRate)
	}

	if err := rep.WriteFile(cfg.ReportPath); err != nil {
		t.Fatalf("write report: %v", err)
	}
	doc, err := os.ReadFile(cfg.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{
		"| Total files | 4 |",
		"| album/big.flac | FLAC (lossless) | MP3 @ 320 kbps |",
		"- `bad.wav`:",
	} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestSecondRunIsIdempotent(t *testing.T) {
	sourceDir := filepath.Join(t.TempDir(), "library")
	targetDir := filepath.Join(t.TempDir(), "converted")

	target, err := format.NewTarget("mp3", 320)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	cfg := &config.Config{
		SourceDir:   sourceDir,
		TargetDir:   targetDir,
		Target:      target,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}

	seedTaggedMP3(t, filepath.Join(sourceDir, "keep.mp3"), "Keeper", "The Holdouts", "First Press")
	seedFile(t, filepath.Join(sourceDir, "big.flac"), []byte("NOT A REAL FLAC STREAM"))

	runner := &toolRunner{probes: map[string]string{
		"keep.mp3": `{
			"streams": [{"codec_type": "audio", "codec_name": "mp3", "bit_rate": "192000", "channels": 2}],
			"format": {"duration": "180.5", "bit_rate": "192000"}
		}`,
		"big.flac": `{
			"streams": [{"codec_type": "audio", "codec_name": "flac", "channels": 2}],
			"format": {"duration": "100.0", "bit_rate": "900000"}
		}`,
	}}

	p := newRunPipeline(t, cfg, runner)
	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	s1, s2 := report.Aggregate(first.Files), report.Aggregate(second.Files)
	if s1.TotalFiles != s2.TotalFiles || s1.Converted != s2.Converted ||
		s1.Copied != s2.Copied || s1.Errors != s2.Errors {
		t.Errorf("summaries differ:\nfirst:  %+v\nsecond: %+v", s1, s2)
	}

	// Everything was already up to date on the second pass.
	if s2.Skipped != 2 {
		t.Errorf("second run skipped %d files, want 2", s2.Skipped)
	}
	for _, fr := range second.Files {
		if !fr.Skipped {
			t.Errorf("%s was reprocessed", fr.SourcePath)
		}
	}
}
