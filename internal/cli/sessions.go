// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/restore"
)

// statusCmd shows the stored report of one restore session.
var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the report of a restore session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := db.DefaultStore().GetRestoreSession(args[0])
		if err != nil {
			return fmt.Errorf("session %s not found: %w", args[0], err)
		}
		var report restore.Report
		if err := json.Unmarshal([]byte(m.ReportJSON), &report); err != nil {
			return fmt.Errorf("stored report is unreadable: %w", err)
		}
		return renderReport(cmd.OutOrStdout(), &report, outputFormat)
	},
}

// sessionsCmd lists past restore sessions.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List restore sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := db.DefaultStore().ListRestoreSessions()
		if err != nil {
			return err
		}
		return renderSessions(cmd.OutOrStdout(), rows, outputFormat)
	},
}
