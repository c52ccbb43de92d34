// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jinkaiteo/edms-sub000/internal/backup"
	"github.com/jinkaiteo/edms-sub000/internal/db"
)

// backupCmd dumps the database into a natural-key package archive.
var backupCmd = &cobra.Command{
	Use:   "backup [output-file]",
	Short: "Create a compressed natural-key backup package",
	Long: `Dumps the EDMS database into a Zstandard-compressed package archive.
Every cross-record reference inside the package is expressed by natural
key (role name, username, document number) rather than raw database id,
so the package restores cleanly into destinations whose ids have drifted.

Binary artifacts of document versions are carried inside the archive and
checksummed in the manifest.

If no output file is given, 'edms-backup-YYYY-MM-DD.edms.zst' is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile := fmt.Sprintf("edms-backup-%s.edms.zst", time.Now().Format("2006-01-02"))
		if len(args) == 1 {
			outputFile = args[0]
			if !strings.HasSuffix(outputFile, ".zst") {
				outputFile += ".zst"
			}
		}

		pkg, err := backup.Export(db.DefaultStore(), appConfig.SourceSystem)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		if err := backup.WriteArchiveFile(pkg, appConfig.ArtifactDir, outputFile); err != nil {
			return fmt.Errorf("could not write package: %w", err)
		}
		if err := db.DefaultStore().LogAction("backup", fmt.Sprintf("wrote %s (%d records)", outputFile, pkg.TotalRecords())); err != nil {
			return fmt.Errorf("could not record audit entry: %w", err)
		}
		fmt.Printf("Backup written to %s (%d records)\n", outputFile, pkg.TotalRecords())
		return nil
	},
}
