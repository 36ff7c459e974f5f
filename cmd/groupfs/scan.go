// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/internal/services/cronsched"
	"github.com/autobrr/groupfs/internal/services/filescan"
	"github.com/autobrr/groupfs/internal/services/notifications"
)

type scopeFlags struct {
	configDir string
	scope     int64
	output    string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	addConfigFlag(cmd, &f.configDir)
	cmd.Flags().Int64Var(&f.scope, "scope", 0, "group id to operate on")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputText, "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("scope")
}

func (f *scopeFlags) resolve() (remote.Scope, error) {
	if err := validateOutput(f.output); err != nil {
		return 0, err
	}
	scope := remote.Scope(f.scope)
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	return scope, nil
}

func RunScanCommand() *cobra.Command {
	var (
		flags  scopeFlags
		mode   string
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Check every file of a scope and optionally report or delete invalid ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := flags.resolve()
			if err != nil {
				return err
			}
			scanMode, err := models.ParseScanMode(mode)
			if err != nil {
				return err
			}

			a, err := newApp(flags.configDir, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, scanErr := a.files.Scan(cmd.Context(), scope, scanMode)
			if notify {
				deliverRunEvent(cmd.Context(), a.notifier, scope, scanMode, report, scanErr)
			}
			if scanErr != nil {
				return scanErr
			}

			return writeOutput(cmd.OutOrStdout(), flags.output, report, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, notifications.FormatReport(report))
				return err
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", "check", "scan mode: check, report or delete")
	cmd.Flags().BoolVar(&notify, "notify", false, "send the run notification")
	return cmd
}

func deliverRunEvent(ctx context.Context, notifier *notifications.Service, scope remote.Scope, mode models.ScanMode, report *models.ScanReport, runErr error) {
	event := notifications.Event{
		Type:        notifications.EventScanCompleted,
		Scope:       scope,
		TriggeredBy: cronsched.TriggerManual,
		Mode:        mode,
		Report:      report,
	}
	if runErr != nil {
		event.Type = notifications.EventScanFailed
		event.ErrorMessage = runErr.Error()
	}
	if err := notifier.Deliver(context.WithoutCancel(ctx), event); err != nil {
		log.Error().Err(err).Msg("failed to send run notification")
	}
}

func RunQuotaCommand() *cobra.Command {
	var flags scopeFlags

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show storage usage of a scope against its configured limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := flags.resolve()
			if err != nil {
				return err
			}

			a, err := newApp(flags.configDir, false)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.files.CheckQuota(cmd.Context(), scope)
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), flags.output, status, func(w io.Writer) error {
				return writeQuota(w, status)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func writeQuota(w io.Writer, q *models.QuotaStatus) error {
	files := fmt.Sprintf("%d / %d", q.FileCount, q.LimitCount)
	if q.MaxFiles > 0 {
		files += fmt.Sprintf(" (limit %d)", q.MaxFiles)
	}
	space := fmt.Sprintf("%s / %s", notifications.FormatBytes(q.UsedBytes), notifications.FormatBytes(q.TotalBytes))
	if q.MaxGB > 0 {
		space += fmt.Sprintf(" (limit %.2fGB)", q.MaxGB)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Scope:\t%s\n", q.Scope)
	fmt.Fprintf(tw, "Files:\t%s\n", files)
	fmt.Fprintf(tw, "Space:\t%s\n", space)
	if err := tw.Flush(); err != nil {
		return err
	}
	if q.Exceeded() {
		_, err := fmt.Fprintln(w, notifications.FormatQuota(q))
		return err
	}
	return nil
}

func RunSearchCommand() *cobra.Command {
	var (
		flags scopeFlags
		query filescan.Query
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find files by name or filter expression",
		Example: `  groupfs search --scope 123456 --term report
  groupfs search --scope 123456 --where 'size > 100 * MiB && ageDays > 30'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := flags.resolve()
			if err != nil {
				return err
			}

			a, err := newApp(flags.configDir, false)
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.files.Find(cmd.Context(), scope, query)
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), flags.output, found, func(w io.Writer) error {
				return writeFileTable(w, found)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&query.Term, "term", "", "name or part of a name")
	cmd.Flags().BoolVar(&query.Fuzzy, "fuzzy", false, "rank fuzzy matches instead of substring matching")
	cmd.Flags().StringVar(&query.Where, "where", "", "filter expression over name, folder, size, modified, ageDays, uploader")
	return cmd
}

func writeFileTable(w io.Writer, files []filescan.FileRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIZE\tMODIFIED\tFOLDER\tNAME")
	for _, f := range files {
		folder := f.FolderName
		if folder == "" {
			folder = "/"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.ID, notifications.FormatBytes(f.SizeBytes), notifications.FormatTimestamp(f.ModifiedAt), folder, f.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d file(s)\n", len(files))
	return err
}

func RunDeleteCommand() *cobra.Command {
	var (
		flags scopeFlags
		ids   []string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete selected files of a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := flags.resolve()
			if err != nil {
				return err
			}

			a, err := newApp(flags.configDir, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.files.DeleteFiles(cmd.Context(), scope, ids)
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), flags.output, report, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, notifications.FormatReport(report))
				return err
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVar(&ids, "id", nil, "file id to delete (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
