// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jinkaiteo/edms-sub000/internal/backup"
	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/restore"
)

var createMissingUsers bool
var commitPerTier bool
var skipValidation bool
var restoreDetached bool
var normalThreshold float64
var restoreTimeout int

func addRestoreFlags(cmd *cobra.Command) {
	if cmd.Flags().Lookup("create-missing-users") != nil {
		return
	}
	cmd.Flags().BoolVar(&createMissingUsers, "create-missing-users", false, "Create inactive placeholder users for referenced usernames missing on both sides")
	cmd.Flags().BoolVar(&commitPerTier, "commit-per-tier", false, "Commit after every dependency tier instead of one transaction per run")
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "Skip the post-restore integrity validation pass")
	cmd.Flags().BoolVar(&restoreDetached, "detach", false, "Run as a tracked session: print the session id immediately, then wait for completion")
	cmd.Flags().Float64Var(&normalThreshold, "normal-threshold", 1.0, "Fraction of id-coincident preserved entities required to classify the destination as normal")
	cmd.Flags().IntVar(&restoreTimeout, "timeout", 0, "Timeout in seconds for the restore (0 means no timeout)")
}

// restoreOptions folds config-file values and command-line flags into the
// engine options. Flags win when explicitly set.
func restoreOptions(cmd *cobra.Command) restore.Options {
	rc := appConfig.Restore
	if cmd.Flags().Changed("create-missing-users") {
		rc.CreateMissingUsers = createMissingUsers
	}
	if cmd.Flags().Changed("commit-per-tier") {
		rc.CommitPerTier = commitPerTier
	}
	if cmd.Flags().Changed("skip-validation") {
		rc.SkipValidation = skipValidation
	}
	if cmd.Flags().Changed("normal-threshold") {
		rc.NormalThreshold = normalThreshold
	}
	if cmd.Flags().Changed("timeout") {
		rc.TimeoutSeconds = restoreTimeout
	}
	if rc.NormalThreshold == 0 {
		rc.NormalThreshold = restore.DefaultDetectPolicy().NormalThreshold
	}
	return restore.Options{
		Policy: restore.Policy{
			CreateMissingUsers:     rc.CreateMissingUsers,
			CreateMissingPreserved: rc.CreateMissingPreserved,
		},
		Detect:         restore.DetectPolicy{NormalThreshold: rc.NormalThreshold},
		ArtifactDir:    appConfig.ArtifactDir,
		CommitPerTier:  rc.CommitPerTier,
		Timeout:        time.Duration(rc.TimeoutSeconds) * time.Second,
		SkipValidation: rc.SkipValidation,
	}
}

// restoreCmd reconciles a backup package into the current database.
var restoreCmd = &cobra.Command{
	Use:   "restore <package-file>",
	Short: "Restore a backup package, reconciling records by natural key",
	Long: `Restores a backup package into the configured database. The restore is
non-destructive: existing records matched by natural key are linked, not
overwritten, and records whose references cannot be resolved are skipped
individually without aborting the run.

The engine detects whether the destination has been reset (seed entities
re-created with new ids) and remaps legacy identifiers accordingly.
Legacy packages that still carry raw-id references are accepted and
shimmed transparently.

Example:
  edms restore ./edms-backup-2026-08-30.edms.zst`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := backup.ReadArchiveFile(args[0])
		if err != nil {
			return fmt.Errorf("could not read package: %w", err)
		}

		svc := restore.NewService(db.DefaultStore(), nil)
		opts := restoreOptions(cmd)

		if restoreDetached {
			id, err := svc.StartRestore(cmd.Context(), pkg, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Restore session %s queued. Check it with: edms status %s\n", id, id)
			// The session runs detached from the command context, but the
			// process must outlive it or the run is lost. Interrupting the
			// wait leaves the session running until Cancel is called.
			sess, err := svc.Wait(cmd.Context(), id)
			if err != nil {
				svc.Cancel(id)
				if _, werr := svc.Wait(context.Background(), id); werr != nil {
					return werr
				}
				sess, _ = svc.Session(id)
			}
			fmt.Printf("Restore session %s %s\n", id, sess.Status())
			return nil
		}

		report, err := svc.Restore(cmd.Context(), pkg, opts)
		if report != nil {
			if rerr := renderReport(cmd.OutOrStdout(), report, outputFormat); rerr != nil {
				return rerr
			}
		}
		return err
	},
}
