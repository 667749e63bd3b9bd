/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE:  runVersion,
}

var versionCheck bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check GitHub for a newer release")
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("bragi %s\n", version.Version)
	if !versionCheck {
		return nil
	}

	setupLogging("error")
	info, err := version.CheckLatest(cmd.Context(), logger)
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}
	if !info.UpdateAvailable {
		fmt.Println("You are running the latest version.")
		return nil
	}

	fmt.Printf("Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
	if info.ReleaseURL != "" {
		fmt.Printf("  %s\n", info.ReleaseURL)
	}
	if info.ReleaseNotes != "" {
		fmt.Printf("\n%s\n", info.ReleaseNotes)
	}
	return nil
}
