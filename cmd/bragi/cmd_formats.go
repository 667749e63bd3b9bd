/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/format"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported target formats and presets",
	RunE:  runFormats,
}

var formatsPresetsFile string

func init() {
	rootCmd.AddCommand(formatsCmd)
	formatsCmd.Flags().StringVar(&formatsPresetsFile, "presets-file", "", "YAML file with additional presets")
}

func runFormats(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-6s %-10s %s\n", "CODEC", "EXTENSION", "BITRATES (kbps)")
	for _, codec := range format.TargetCodecs() {
		rates := format.AllowedBitrates(codec)
		column := "lossless"
		if len(rates) > 0 {
			parts := make([]string, len(rates))
			for i, r := range rates {
				parts[i] = strconv.Itoa(r)
			}
			column = strings.Join(parts, ", ")
		}
		fmt.Printf("%-6s %-10s %s\n", codec, format.Target{Codec: codec}.Extension(), column)
	}

	names, err := config.PresetNames(formatsPresetsFile)
	if err != nil {
		return err
	}
	fmt.Printf("\nPresets:\n")
	for _, name := range names {
		preset, err := config.ResolvePreset(name, formatsPresetsFile)
		if err != nil {
			return err
		}
		label := format.Label(preset.Codec, preset.BitrateKbps, format.IsLossless(preset.Codec))
		fmt.Printf("  %-10s %s\n", name, label)
	}
	return nil
}
