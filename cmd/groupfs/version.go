// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/groupfs/internal/buildinfo"
	"github.com/autobrr/groupfs/internal/update"
)

func RunVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				data, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Print(buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func RunUpdateCommand() *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update groupfs to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			updater := update.NewUpdater(update.Config{Version: buildinfo.Version})

			if checkOnly {
				latest, newer, err := updater.Check(cmd.Context())
				if err != nil {
					return err
				}
				if newer {
					cmd.Printf("Update available: %s -> %s\n", buildinfo.Version, latest.Version())
				} else {
					cmd.Printf("Already on the latest version (%s)\n", buildinfo.Version)
				}
				return nil
			}

			updated, err := updater.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			if updated {
				cmd.Println("Updated successfully. Restart groupfs to use the new version.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether a newer release exists")
	return cmd
}
