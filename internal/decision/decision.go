/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package decision holds the convert-vs-copy rules. Deciding is a
// pure function of the probed source properties and the requested
// target; it never touches the filesystem.
package decision

import (
	"github.com/friendsincode/bragi/internal/format"
	"github.com/friendsincode/bragi/internal/probe"
)

// Decision says what the executor should do with a file.
type Decision string

const (
	// Convert re-encodes the source into the target codec.
	Convert Decision = "convert"
	// Copy duplicates the source byte-for-byte, keeping its container.
	Copy Decision = "copy"
)

// Decide applies the conversion rules in order; the first match wins.
//
//  1. Lossy source, lossless target: convert. No quality is recovered
//     by this, but the run delivers the container the user asked for
//     instead of leaving stray lossy files in the output tree. This is
//     deliberate; do not change it to a copy without revisiting how
//     mixed source trees should behave.
//  2. Same codec and the source sits at or under the bitrate ceiling
//     (or the target has no ceiling): copy.
//  3. Lossless source, lossy target: convert. There is no bitrate
//     comparison that makes sense for a lossless source.
//  4. Source bitrate above the target ceiling: convert (downsample).
//  5. Otherwise: copy. The source either meets the ceiling already or
//     its bitrate is unknown, and re-encoding would only lose quality.
func Decide(source probe.AudioInfo, target format.Target) Decision {
	if target.Lossless() && !source.IsLossless {
		return Convert
	}
	if source.Codec == target.Codec &&
		(target.BitrateKbps == 0 || source.BitrateKbps <= target.BitrateKbps) {
		return Copy
	}
	if source.IsLossless && !target.Lossless() {
		return Convert
	}
	if source.BitrateKbps > target.BitrateKbps {
		return Convert
	}
	return Copy
}
