// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/restore"
)

// verifyCmd runs the integrity validation pass on its own, outside any
// restore: artifact checksums plus the foreign-key sweep.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify artifact checksums and referential completeness",
	Long: `Recomputes the SHA-256 checksum of every stored document version
artifact against the database and sweeps all declared foreign keys for
references to rows that do not exist. Problems are reported, nothing is
modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := restore.Validate(cmd.Context(), db.DefaultStore().Bun(), appConfig.ArtifactDir)
		if err != nil {
			return err
		}
		return renderValidation(cmd.OutOrStdout(), v, outputFormat)
	},
}
