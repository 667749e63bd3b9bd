/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tags

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	flac "github.com/go-flac/go-flac"
)

// vorbisFieldNames translates canonical field keys into the upper
// case names Vorbis comments use.
var vorbisFieldNames = map[string]string{
	"title":        "TITLE",
	"artist":       "ARTIST",
	"album":        "ALBUM",
	"album_artist": "ALBUMARTIST",
	"date":         "DATE",
	"genre":        "GENRE",
	"comment":      "COMMENT",
}

// vorbisEntries renders the record as KEY=value comment entries.
// Track and disc pairs split into NUMBER/TOTAL per the Vorbis field
// conventions, so "3/12" becomes TRACKNUMBER=3 plus TRACKTOTAL=12.
func vorbisEntries(meta Metadata) []string {
	var entries []string
	for _, field := range meta.Fields() {
		switch field.Key {
		case "track":
			num, total := splitIndexPair(field.Value)
			entries = append(entries, "TRACKNUMBER="+num)
			if total != "" {
				entries = append(entries, "TRACKTOTAL="+total)
			}
		case "disc":
			num, total := splitIndexPair(field.Value)
			entries = append(entries, "DISCNUMBER="+num)
			if total != "" {
				entries = append(entries, "DISCTOTAL="+total)
			}
		default:
			entries = append(entries, vorbisFieldNames[field.Key]+"="+field.Value)
		}
	}
	return entries
}

// writeFLAC rewrites the metadata blocks of a flac file in place.
// Existing comments for keys we are not setting stay untouched.
func (h *Handler) writeFLAC(path string, meta Metadata) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse flac: %w", err)
	}

	vc := &vorbisComment{vendor: "bragi"}
	vcIndex := -1
	for i, block := range f.Meta {
		if block.Type == flac.VorbisComment {
			parsed, err := parseVorbisComment(block.Data)
			if err != nil {
				return fmt.Errorf("parse vorbis comment block: %w", err)
			}
			vc = parsed
			vcIndex = i
			break
		}
	}

	// Drop existing entries only for the keys being set; everything
	// else (REPLAYGAIN_*, MUSICBRAINZ_*, ...) rides along untouched.
	entries := vorbisEntries(meta)
	setting := make(map[string]bool, len(entries))
	for _, e := range entries {
		setting[strings.ToUpper(strings.SplitN(e, "=", 2)[0])] = true
	}
	kept := vc.comments[:0]
	for _, c := range vc.comments {
		key := strings.ToUpper(strings.SplitN(c, "=", 2)[0])
		if !setting[key] {
			kept = append(kept, c)
		}
	}
	vc.comments = append(kept, entries...)

	data := vc.marshal()
	if vcIndex >= 0 {
		f.Meta[vcIndex].Data = data
	} else {
		f.Meta = append(f.Meta, &flac.MetaDataBlock{Type: flac.VorbisComment, Data: data})
	}

	if meta.HasCover() {
		filtered := f.Meta[:0]
		for _, block := range f.Meta {
			if block.Type != flac.Picture {
				filtered = append(filtered, block)
			}
		}
		f.Meta = append(filtered, &flac.MetaDataBlock{
			Type: flac.Picture,
			Data: buildPictureBlock(meta.CoverArt, coverMIME(meta)),
		})
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac: %w", err)
	}
	return nil
}

// vorbisComment is the parsed payload of a Vorbis comment block:
// a vendor string plus KEY=value entries, all length-prefixed in
// little endian.
type vorbisComment struct {
	vendor   string
	comments []string
}

func parseVorbisComment(data []byte) (*vorbisComment, error) {
	r := bytes.NewReader(data)

	var vendorLen uint32
	if err := binary.Read(r, binary.LittleEndian, &vendorLen); err != nil {
		return nil, err
	}
	vendor := make([]byte, vendorLen)
	if _, err := io.ReadFull(r, vendor); err != nil {
		return nil, err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	vc := &vorbisComment{vendor: string(vendor)}
	for i := uint32(0); i < count; i++ {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, err
		}
		comment := make([]byte, length)
		if _, err := io.ReadFull(r, comment); err != nil {
			return nil, err
		}
		vc.comments = append(vc.comments, string(comment))
	}
	return vc, nil
}

func (vc *vorbisComment) marshal() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(vc.vendor)))
	buf.WriteString(vc.vendor)
	binary.Write(&buf, binary.LittleEndian, uint32(len(vc.comments)))
	for _, c := range vc.comments {
		binary.Write(&buf, binary.LittleEndian, uint32(len(c)))
		buf.WriteString(c)
	}
	return buf.Bytes()
}

// buildPictureBlock assembles a FLAC picture block (type 3, front
// cover) around the untouched image bytes. Dimensions are probed from
// the image header; zero when the format defeats the decoder, which
// players tolerate.
func buildPictureBlock(data []byte, mime string) []byte {
	var width, height, depth uint32
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width = uint32(cfg.Width)
		height = uint32(cfg.Height)
		depth = 24
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(3)) // front cover
	binary.Write(&buf, binary.BigEndian, uint32(len(mime)))
	buf.WriteString(mime)
	binary.Write(&buf, binary.BigEndian, uint32(0)) // no description
	binary.Write(&buf, binary.BigEndian, width)
	binary.Write(&buf, binary.BigEndian, height)
	binary.Write(&buf, binary.BigEndian, depth)
	binary.Write(&buf, binary.BigEndian, uint32(0)) // not paletted
	binary.Write(&buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
