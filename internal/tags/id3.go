/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tags

import (
	"context"
	"fmt"

	"github.com/bogem/id3v2/v2"
)

func (s id3Scheme) Write(ctx context.Context, path string, meta Metadata) error {
	return s.h.writeID3(path, meta)
}

// writeID3 applies the record to an mp3 file in place. Frames for
// absent fields are left untouched so values carried over by the
// encoder survive.
func (h *Handler) writeID3(path string, meta Metadata) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer t.Close()

	t.SetDefaultEncoding(id3v2.EncodingUTF8)

	if meta.Title != "" {
		t.SetTitle(meta.Title)
	}
	if meta.Artist != "" {
		t.SetArtist(meta.Artist)
	}
	if meta.Album != "" {
		t.SetAlbum(meta.Album)
	}
	if meta.Genre != "" {
		t.SetGenre(meta.Genre)
	}
	if meta.Year != "" {
		t.SetYear(meta.Year)
	}
	if meta.AlbumArtist != "" {
		t.AddTextFrame("TPE2", id3v2.EncodingUTF8, meta.AlbumArtist)
	}
	if meta.TrackNumber != "" {
		t.AddTextFrame("TRCK", id3v2.EncodingUTF8, meta.TrackNumber)
	}
	if meta.DiscNumber != "" {
		t.AddTextFrame("TPOS", id3v2.EncodingUTF8, meta.DiscNumber)
	}
	if meta.Comment != "" {
		// COMM frames accumulate rather than replace; clear before
		// adding so a remuxed comment does not end up duplicated.
		t.DeleteFrames("COMM")
		t.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     meta.Comment,
		})
	}
	if meta.HasCover() {
		t.DeleteFrames("APIC")
		t.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    coverMIME(meta),
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     meta.CoverArt,
		})
	}

	if err := t.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

func coverMIME(meta Metadata) string {
	if meta.CoverMIME != "" {
		return meta.CoverMIME
	}
	return sniffImageMIME(meta.CoverArt)
}
