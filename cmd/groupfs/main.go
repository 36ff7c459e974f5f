// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/groupfs/internal/buildinfo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "groupfs",
		Short:         "Find and clean up expired files in chat group file stores",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		RunServeCommand(),
		RunScanCommand(),
		RunQuotaCommand(),
		RunSearchCommand(),
		RunDeleteCommand(),
		RunVersionCommand(),
		RunUpdateCommand(),
	)
	return root
}
