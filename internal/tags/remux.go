/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tags

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Field allow-sets per remuxed scheme. Keys missing from a set have
// no equivalent in that container and are skipped silently.
var (
	mp4RemuxFields = fieldSet("title", "artist", "album", "album_artist", "track", "disc", "date", "genre", "comment")
	asfRemuxFields = fieldSet("title", "artist", "album", "album_artist", "track", "date", "genre", "comment")
	// RIFF INFO has no slot for album artist or disc either.
	riffRemuxFields = fieldSet("title", "artist", "album", "track", "date", "genre", "comment")
)

func fieldSet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

type coverMode int

const (
	// coverNone drops art: the container has no mapping for it.
	coverNone coverMode = iota
	// coverAttachedPic muxes the art as an attached picture stream.
	coverAttachedPic
	// coverVorbisBlock embeds the art as a base64 Vorbis picture
	// comment, the convention for ogg and opus.
	coverVorbisBlock
)

type remuxSpec struct {
	muxer  string
	fields map[string]bool
	cover  coverMode

	// vorbis switches to explicit Vorbis comment key names with
	// split track/disc totals instead of the generic metadata keys.
	vorbis bool
}

func (s mp4Scheme) Write(ctx context.Context, path string, meta Metadata) error {
	if strings.EqualFold(filepath.Ext(path), ".aac") {
		// A raw ADTS stream has no atom structure to hang tags on.
		return &MetadataWriteError{Path: path, Err: fmt.Errorf("raw aac stream cannot carry tags")}
	}
	return s.h.remuxWrite(ctx, path, meta, remuxSpec{
		muxer:  "mp4",
		fields: mp4RemuxFields,
		cover:  coverAttachedPic,
	})
}

func (s vorbisScheme) Write(ctx context.Context, path string, meta Metadata) error {
	if strings.EqualFold(filepath.Ext(path), ".flac") {
		return s.h.writeFLAC(path, meta)
	}
	return s.h.remuxWrite(ctx, path, meta, remuxSpec{
		muxer:  "ogg",
		cover:  coverVorbisBlock,
		vorbis: true,
	})
}

func (s asfScheme) Write(ctx context.Context, path string, meta Metadata) error {
	return s.h.remuxWrite(ctx, path, meta, remuxSpec{
		muxer:  "asf",
		fields: asfRemuxFields,
		cover:  coverNone,
	})
}

func (s riffScheme) Write(ctx context.Context, path string, meta Metadata) error {
	return s.h.remuxWrite(ctx, path, meta, remuxSpec{
		muxer:  "wav",
		fields: riffRemuxFields,
		cover:  coverNone,
	})
}

// remuxWrite rewrites a file's metadata with a lossless stream copy:
// remux into a sibling temp file with -metadata overrides, then
// rename over the original. Existing tags for keys we are not setting
// survive the copy.
func (h *Handler) remuxWrite(ctx context.Context, path string, meta Metadata, spec remuxSpec) error {
	tmp := path + ".tmp"

	args := []string{"-y", "-i", path}

	if spec.cover == coverAttachedPic && meta.HasCover() {
		coverFile, err := writeCoverTemp(meta)
		if err != nil {
			return fmt.Errorf("stage cover art: %w", err)
		}
		defer os.Remove(coverFile)
		args = append(args,
			"-i", coverFile,
			"-map", "0:a",
			"-map", "1:v",
			"-c", "copy",
			"-disposition:v:0", "attached_pic",
		)
	} else {
		args = append(args, "-map", "0", "-c", "copy")
	}

	if spec.vorbis {
		for _, entry := range vorbisEntries(meta) {
			args = append(args, "-metadata", entry)
		}
	} else {
		for _, field := range meta.Fields() {
			if !spec.fields[field.Key] {
				continue
			}
			args = append(args, "-metadata", field.Key+"="+field.Value)
		}
	}

	if spec.cover == coverVorbisBlock && meta.HasCover() {
		block := buildPictureBlock(meta.CoverArt, coverMIME(meta))
		args = append(args, "-metadata", "METADATA_BLOCK_PICTURE="+base64.StdEncoding.EncodeToString(block))
	}

	args = append(args, "-f", spec.muxer, tmp)

	if _, stderr, err := h.runner.Run(ctx, h.ffmpeg, args...); err != nil {
		os.Remove(tmp)
		return commandErr("remux", err, stderr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace original: %w", err)
	}
	return nil
}

// writeCoverTemp stages the cover blob as a file ffmpeg can take as a
// second input. The extension matters: the image2 demuxer picks its
// decoder by suffix.
func writeCoverTemp(meta Metadata) (string, error) {
	ext := ".jpg"
	if coverMIME(meta) == "image/png" {
		ext = ".png"
	}
	tmp, err := os.CreateTemp("", "bragi-cover-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(meta.CoverArt); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// commandErr folds the tail of a tool's stderr into the error so run
// reports say what the tool actually complained about.
func commandErr(op string, err error, stderr []byte) error {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last != "" {
		return fmt.Errorf("%s: %w: %s", op, err, last)
	}
	return fmt.Errorf("%s: %w", op, err)
}
