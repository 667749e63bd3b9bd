/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tags reads and writes embedded audio metadata across the
// container-specific tagging schemes: ID3 for mp3, MP4 atoms for
// m4a/aac, Vorbis comments for flac/ogg/opus, ASF attributes for wma
// and RIFF INFO for wav. Callers work with one normalized Metadata
// record; the per-container mapping stays inside this package.
package tags

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Metadata is the normalized tag record carried from a source file to
// its converted or copied counterpart. An empty string means the
// field is absent; absent fields are never written, so they cannot
// blank out values already present in the destination.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	TrackNumber string `json:"track_number,omitempty"`
	DiscNumber  string `json:"disc_number,omitempty"`
	Year        string `json:"year,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Comment     string `json:"comment,omitempty"`

	// CoverArt is carried as an opaque blob; it is never re-encoded
	// or resized on the way through.
	CoverArt  []byte `json:"-"`
	CoverMIME string `json:"cover_mime,omitempty"`
}

// Field is one set text tag, keyed by its canonical name.
type Field struct {
	Key   string
	Value string
}

// Fields returns the set text fields in canonical order. Keys follow
// the generic names ffmpeg understands for every muxer, so the result
// can feed a remux invocation directly.
func (m Metadata) Fields() []Field {
	all := []Field{
		{"title", m.Title},
		{"artist", m.Artist},
		{"album", m.Album},
		{"album_artist", m.AlbumArtist},
		{"track", m.TrackNumber},
		{"disc", m.DiscNumber},
		{"date", m.Year},
		{"genre", m.Genre},
		{"comment", m.Comment},
	}
	fields := make([]Field, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Empty reports whether the record carries nothing to write.
func (m Metadata) Empty() bool {
	return len(m.Fields()) == 0 && len(m.CoverArt) == 0
}

// HasCover reports whether embedded cover art was extracted.
func (m Metadata) HasCover() bool {
	return len(m.CoverArt) > 0
}

// MetadataReadError reports a file whose container could not be
// recognized at all. Merely absent tags are not an error.
type MetadataReadError struct {
	Path string
	Err  error
}

func (e *MetadataReadError) Error() string {
	return fmt.Sprintf("read tags %s: %v", e.Path, e.Err)
}
func (e *MetadataReadError) Unwrap() error { return e.Err }

// MetadataWriteError reports that tags could not be applied to an
// output file.
type MetadataWriteError struct {
	Path string
	Err  error
}

func (e *MetadataWriteError) Error() string {
	return fmt.Sprintf("write tags %s: %v", e.Path, e.Err)
}
func (e *MetadataWriteError) Unwrap() error { return e.Err }

// Runner executes an external command and returns its stdout and
// stderr. Tests substitute canned behavior.
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

// Handler dispatches reads and writes to the scheme matching a file's
// container. mp3 and flac are handled natively; the remaining
// containers go through ffprobe for reads and an ffmpeg stream-copy
// remux for writes.
type Handler struct {
	logger  zerolog.Logger
	ffmpeg  string
	ffprobe string
	runner  Runner
}

// NewHandler creates a Handler using the given ffmpeg and ffprobe
// binary paths for the containers that need them.
func NewHandler(logger zerolog.Logger, ffmpegPath, ffprobePath string) *Handler {
	return NewHandlerWithRunner(logger, ffmpegPath, ffprobePath, execRunner{})
}

// NewHandlerWithRunner creates a Handler with a custom command runner.
func NewHandlerWithRunner(logger zerolog.Logger, ffmpegPath, ffprobePath string, runner Runner) *Handler {
	return &Handler{
		logger:  logger.With().Str("component", "tags").Logger(),
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		runner:  runner,
	}
}

// scheme is one container-specific tagging convention.
type scheme interface {
	Name() string
	Read(ctx context.Context, path string) (Metadata, error)
	Write(ctx context.Context, path string, meta Metadata) error
}

// schemeFor picks the tagging scheme by file extension.
func (h *Handler) schemeFor(path string) (scheme, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return id3Scheme{h}, true
	case ".m4a", ".aac":
		return mp4Scheme{h}, true
	case ".flac", ".ogg", ".opus":
		return vorbisScheme{h}, true
	case ".wma":
		return asfScheme{h}, true
	case ".wav":
		return riffScheme{h}, true
	}
	return nil, false
}

// SchemeName returns the tagging scheme used for the given path, or
// "" when the container is unrecognized.
func (h *Handler) SchemeName(path string) string {
	s, ok := h.schemeFor(path)
	if !ok {
		return ""
	}
	return s.Name()
}

// Read extracts the embedded metadata of a file. A file without any
// tags yields an empty Metadata and no error; only a wholly
// unrecognized container fails, with a MetadataReadError.
func (h *Handler) Read(ctx context.Context, path string) (Metadata, error) {
	s, ok := h.schemeFor(path)
	if !ok {
		return Metadata{}, &MetadataReadError{Path: path, Err: fmt.Errorf("unrecognized container %q", filepath.Ext(path))}
	}

	meta, err := s.Read(ctx, path)
	if err != nil {
		var readErr *MetadataReadError
		if errors.As(err, &readErr) {
			return Metadata{}, err
		}
		return Metadata{}, &MetadataReadError{Path: path, Err: err}
	}

	h.logger.Debug().
		Str("path", path).
		Str("scheme", s.Name()).
		Int("fields", len(meta.Fields())).
		Bool("cover", meta.HasCover()).
		Msg("read tags")
	return meta, nil
}

// Write applies a metadata record to an output file, mapping to the
// destination's tagging scheme. Fields with no equivalent in that
// scheme are skipped silently; only a destination that cannot carry
// tags at all fails, with a MetadataWriteError. Writing an empty
// record is a no-op.
func (h *Handler) Write(ctx context.Context, path string, meta Metadata) error {
	if meta.Empty() {
		return nil
	}

	s, ok := h.schemeFor(path)
	if !ok {
		return &MetadataWriteError{Path: path, Err: fmt.Errorf("unrecognized container %q", filepath.Ext(path))}
	}

	if err := s.Write(ctx, path, meta); err != nil {
		var writeErr *MetadataWriteError
		if errors.As(err, &writeErr) {
			return err
		}
		return &MetadataWriteError{Path: path, Err: err}
	}

	h.logger.Debug().
		Str("path", path).
		Str("scheme", s.Name()).
		Int("fields", len(meta.Fields())).
		Bool("cover", meta.HasCover()).
		Msg("wrote tags")
	return nil
}
