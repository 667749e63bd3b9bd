/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/bragi/internal/format"
)

// Preset names a codec/bitrate pair so runs can be configured with a
// single flag. A zero bitrate is only valid for lossless codecs.
type Preset struct {
	Codec       string `yaml:"codec"`
	BitrateKbps int    `yaml:"bitrate"`
}

// builtinPresets ship with the binary and can be overridden per name
// by a presets file.
var builtinPresets = map[string]Preset{
	"portable":  {Codec: format.CodecMP3, BitrateKbps: 192},
	"standard":  {Codec: format.CodecMP3, BitrateKbps: 320},
	"streaming": {Codec: format.CodecOpus, BitrateKbps: 128},
	"voice":     {Codec: format.CodecOpus, BitrateKbps: 64},
	"archive":   {Codec: format.CodecFLAC},
}

// LoadPresets returns the preset table: the builtins, with entries
// from the YAML file at path layered on top when path is non-empty.
func LoadPresets(path string) (map[string]Preset, error) {
	presets := make(map[string]Preset, len(builtinPresets))
	for name, p := range builtinPresets {
		presets[name] = p
	}
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	var fromFile map[string]Preset
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parse presets file %s: %w", path, err)
	}
	for name, p := range fromFile {
		presets[name] = p
	}
	return presets, nil
}

// ResolvePreset looks up a preset by name, consulting the presets
// file at path when given. The preset's codec/bitrate pair is
// validated before it is returned.
func ResolvePreset(name, path string) (Preset, error) {
	presets, err := LoadPresets(path)
	if err != nil {
		return Preset{}, err
	}
	preset, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (available: %s)", name, joinNames(presets))
	}
	if _, err := format.NewTarget(preset.Codec, preset.BitrateKbps); err != nil {
		return Preset{}, fmt.Errorf("preset %q: %w", name, err)
	}
	return preset, nil
}

// PresetNames returns the available preset names in sorted order,
// including any defined by the file at path.
func PresetNames(path string) ([]string, error) {
	presets, err := LoadPresets(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func joinNames(presets map[string]Preset) string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
