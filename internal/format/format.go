/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package format holds the codec registry shared by the prober, the
// decision engine and the conversion executor: codec identifiers,
// lossless classification, target bitrate menus, file extensions and
// the ffmpeg encoder names used to produce each target.
package format

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Codec identifiers as normalized from ffprobe codec names.
const (
	CodecMP3    = "mp3"
	CodecAAC    = "aac"
	CodecALAC   = "alac"
	CodecFLAC   = "flac"
	CodecOpus   = "opus"
	CodecVorbis = "vorbis"
	CodecPCM    = "pcm"
	CodecWMA    = "wma"
)

// Target describes the requested output format of a run.
// A zero BitrateKbps means the codec carries no bitrate ceiling,
// which is only valid for lossless targets.
type Target struct {
	Codec       string
	BitrateKbps int
}

// losslessCodecs is the closed set of codecs treated as lossless.
// Anything not listed here is classified lossy, including codecs we
// have never heard of; an unknown codec must never be mistaken for a
// lossless source when deciding whether to re-encode.
var losslessCodecs = map[string]bool{
	CodecFLAC: true,
	CodecALAC: true,
	CodecPCM:  true,
}

// targetExtensions maps each supported target codec to the container
// extension its output files carry.
var targetExtensions = map[string]string{
	CodecMP3:  ".mp3",
	CodecAAC:  ".m4a",
	CodecFLAC: ".flac",
	CodecOpus: ".opus",
}

// encoderNames maps each supported target codec to the ffmpeg encoder
// that produces it.
var encoderNames = map[string]string{
	CodecMP3:  "libmp3lame",
	CodecAAC:  "aac",
	CodecFLAC: "flac",
	CodecOpus: "libopus",
}

// allowedBitrates lists the bitrate menu per target codec, in kbps.
// FLAC has no menu: it is lossless and takes no bitrate argument.
var allowedBitrates = map[string][]int{
	CodecMP3:  {128, 192, 256, 320},
	CodecAAC:  {96, 128, 192, 256},
	CodecOpus: {64, 96, 128, 192},
	CodecFLAC: {},
}

// audioExtensions is the set of file extensions picked up during
// directory discovery. Everything else is ignored silently.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".wma":  true,
}

// IsLossless reports whether the given normalized codec identifier is
// a lossless coding format.
func IsLossless(codec string) bool {
	return losslessCodecs[strings.ToLower(codec)]
}

// IsAudioFile reports whether the file name carries one of the audio
// extensions handled by the pipeline. The check is case-insensitive.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// TargetCodecs returns the supported target codec identifiers in
// stable alphabetical order.
func TargetCodecs() []string {
	codecs := make([]string, 0, len(targetExtensions))
	for c := range targetExtensions {
		codecs = append(codecs, c)
	}
	sort.Strings(codecs)
	return codecs
}

// AllowedBitrates returns the bitrate menu for a target codec, or nil
// when the codec is not a supported target.
func AllowedBitrates(codec string) []int {
	rates, ok := allowedBitrates[strings.ToLower(codec)]
	if !ok {
		return nil
	}
	out := make([]int, len(rates))
	copy(out, rates)
	return out
}

// NewTarget validates a codec/bitrate pair and returns the Target it
// describes. Lossless codecs reject a bitrate; lossy codecs require
// one from their menu.
func NewTarget(codec string, bitrateKbps int) (Target, error) {
	codec = strings.ToLower(codec)
	if _, ok := targetExtensions[codec]; !ok {
		return Target{}, fmt.Errorf("unsupported target codec %q (supported: %s)", codec, strings.Join(TargetCodecs(), ", "))
	}
	if IsLossless(codec) {
		if bitrateKbps != 0 {
			return Target{}, fmt.Errorf("codec %q is lossless and takes no bitrate", codec)
		}
		return Target{Codec: codec}, nil
	}
	menu := allowedBitrates[codec]
	for _, r := range menu {
		if r == bitrateKbps {
			return Target{Codec: codec, BitrateKbps: bitrateKbps}, nil
		}
	}
	return Target{}, fmt.Errorf("bitrate %dk not allowed for %s (allowed: %s)", bitrateKbps, codec, joinInts(menu))
}

// Extension returns the container extension for the target, including
// the leading dot.
func (t Target) Extension() string {
	return targetExtensions[t.Codec]
}

// Encoder returns the ffmpeg encoder name for the target codec.
func (t Target) Encoder() string {
	return encoderNames[t.Codec]
}

// Lossless reports whether the target codec is lossless.
func (t Target) Lossless() bool {
	return IsLossless(t.Codec)
}

// Label renders the target for reports, e.g. "MP3 @ 320 kbps" or
// "FLAC (lossless)".
func (t Target) Label() string {
	return Label(t.Codec, t.BitrateKbps, t.Lossless())
}

// Label renders a codec/bitrate pair for human-readable output.
// Lossless codecs render as "FLAC (lossless)"; lossy codecs with a
// known bitrate render as "MP3 @ 320 kbps"; a lossy codec whose
// bitrate could not be determined renders as just "MP3".
func Label(codec string, bitrateKbps int, lossless bool) string {
	name := strings.ToUpper(codec)
	if codec == "" {
		name = "UNKNOWN"
	}
	if lossless {
		return name + " (lossless)"
	}
	if bitrateKbps <= 0 {
		return name
	}
	return fmt.Sprintf("%s @ %d kbps", name, bitrateKbps)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
