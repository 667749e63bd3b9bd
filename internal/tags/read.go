/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// readNative parses tags in-process. It covers mp3, m4a, flac, ogg
// and opus; a file without tags is success with an empty record.
// Errors other than "no tags" mean the parser could not handle the
// container, and the caller falls back to the probing tool.
func (h *Handler) readNative(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Metadata{}, nil
		}
		return Metadata{}, err
	}

	meta := Metadata{
		Title:       strings.TrimSpace(m.Title()),
		Artist:      strings.TrimSpace(m.Artist()),
		Album:       strings.TrimSpace(m.Album()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Genre:       strings.TrimSpace(m.Genre()),
		Comment:     strings.TrimSpace(m.Comment()),
	}
	if year := m.Year(); year != 0 {
		meta.Year = strconv.Itoa(year)
	}
	if num, total := m.Track(); num != 0 {
		meta.TrackNumber = formatIndexPair(num, total)
	}
	if num, total := m.Disc(); num != 0 {
		meta.DiscNumber = formatIndexPair(num, total)
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		meta.CoverArt = pic.Data
		meta.CoverMIME = pic.MIMEType
		if meta.CoverMIME == "" {
			meta.CoverMIME = sniffImageMIME(pic.Data)
		}
	}
	return meta, nil
}

// readProbed extracts tags via ffprobe for containers the native
// parser does not cover (wma, wav, raw aac). The demuxer normalizes
// container-specific attribute names into generic keys, so one
// mapping serves all of them.
func (h *Handler) readProbed(ctx context.Context, path string) (Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	stdout, _, err := h.runner.Run(ctx, h.ffprobe, args...)
	if err != nil {
		return Metadata{}, &MetadataReadError{Path: path, Err: fmt.Errorf("container not recognized: %w", err)}
	}

	var result struct {
		Format struct {
			Tags map[string]string `json:"tags"`
		} `json:"format"`
		Streams []struct {
			CodecType string            `json:"codec_type"`
			Tags      map[string]string `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout, &result); err != nil {
		return Metadata{}, &MetadataReadError{Path: path, Err: fmt.Errorf("parse probe output: %w", err)}
	}

	// ogg and opus keep their comments at stream level; everything
	// else reports them on the format. Format-level values win.
	merged := make(map[string]string)
	hasVideo := false
	for _, stream := range result.Streams {
		if stream.CodecType == "video" {
			hasVideo = true
		}
		for k, v := range stream.Tags {
			merged[strings.ToLower(k)] = v
		}
	}
	for k, v := range result.Format.Tags {
		merged[strings.ToLower(k)] = v
	}

	var meta Metadata
	for key, value := range merged {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case "title":
			meta.Title = value
		case "artist", "author":
			meta.Artist = value
		case "album":
			meta.Album = value
		case "album_artist", "albumartist", "album-artist":
			meta.AlbumArtist = value
		case "track", "tracknumber":
			meta.TrackNumber = value
		case "disc", "discnumber":
			meta.DiscNumber = value
		case "date", "year":
			meta.Year = value
		case "genre":
			meta.Genre = value
		case "comment", "description":
			meta.Comment = value
		}
	}

	// Embedded art rides along as a video stream; pull it out with a
	// stream copy so the blob stays byte-identical.
	if hasVideo {
		if data, mime := h.extractCover(ctx, path); len(data) > 0 {
			meta.CoverArt = data
			meta.CoverMIME = mime
		}
	}
	return meta, nil
}

// extractCover copies the attached picture stream out of a file.
// Failure is not an error; a file simply has no carryable art then.
func (h *Handler) extractCover(ctx context.Context, path string) ([]byte, string) {
	tmp, err := os.CreateTemp("", "bragi-cover-*.img")
	if err != nil {
		return nil, ""
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"-y",
		"-i", path,
		"-an",
		"-map", "0:v:0",
		"-c", "copy",
		"-f", "image2",
		tmpPath,
	}
	if _, _, err := h.runner.Run(ctx, h.ffmpeg, args...); err != nil {
		h.logger.Debug().Str("path", path).Err(err).Msg("no extractable cover art")
		return nil, ""
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil || len(data) == 0 {
		return nil, ""
	}
	return data, sniffImageMIME(data)
}

// readNativeWithFallback tries the in-process parser first and falls
// back to ffprobe when the container defeats it.
func (h *Handler) readNativeWithFallback(ctx context.Context, path string) (Metadata, error) {
	meta, err := h.readNative(path)
	if err == nil {
		return meta, nil
	}
	h.logger.Debug().Str("path", path).Err(err).Msg("native tag parse failed, probing instead")
	return h.readProbed(ctx, path)
}

// formatIndexPair renders a position/total pair the way track and
// disc numbers are conventionally written: "3/12", or "3" when the
// total is unknown.
func formatIndexPair(num, total int) string {
	if total > 0 {
		return fmt.Sprintf("%d/%d", num, total)
	}
	return strconv.Itoa(num)
}

// splitIndexPair is the inverse of formatIndexPair: "3/12" yields
// ("3", "12"), a bare "3" yields ("3", "").
func splitIndexPair(value string) (num, total string) {
	parts := strings.SplitN(value, "/", 2)
	num = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		total = strings.TrimSpace(parts[1])
	}
	return num, total
}

// sniffImageMIME identifies cover art bytes by magic number.
func sniffImageMIME(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

type id3Scheme struct{ h *Handler }

func (s id3Scheme) Name() string { return "id3" }

func (s id3Scheme) Read(ctx context.Context, path string) (Metadata, error) {
	return s.h.readNativeWithFallback(ctx, path)
}

type mp4Scheme struct{ h *Handler }

func (s mp4Scheme) Name() string { return "mp4" }

func (s mp4Scheme) Read(ctx context.Context, path string) (Metadata, error) {
	return s.h.readNativeWithFallback(ctx, path)
}

type vorbisScheme struct{ h *Handler }

func (s vorbisScheme) Name() string { return "vorbis" }

func (s vorbisScheme) Read(ctx context.Context, path string) (Metadata, error) {
	return s.h.readNativeWithFallback(ctx, path)
}

type asfScheme struct{ h *Handler }

func (s asfScheme) Name() string { return "asf" }

func (s asfScheme) Read(ctx context.Context, path string) (Metadata, error) {
	return s.h.readProbed(ctx, path)
}

type riffScheme struct{ h *Handler }

func (s riffScheme) Name() string { return "riff" }

func (s riffScheme) Read(ctx context.Context, path string) (Metadata, error) {
	return s.h.readProbed(ctx, path)
}
