// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cli sets up the command-line interface for the EDMS backup and
// restore tooling using the Cobra library: the root command, the
// backup/restore/status/sessions/verify subcommands and their flags.
package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jinkaiteo/edms-sub000/internal/config"
	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/logging"
)

var version = "dev"   // set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

var cfgFile string
var verbose bool
var outputFormat string

var appConfig config.Config

// Execute runs the CLI entrypoint. The cmd/edms main package calls this
// and handles process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupDefaultServices loads the configuration and opens the database. It
// runs as PersistentPreRunE so every subcommand starts from a ready store.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	appConfig, err = config.LoadConfig[config.Config](cmd, config.Defaults(), optionalConfigPath)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error loading config: %w", err)
		}
		// First run: persist a default file so later runs have one to edit.
		if writeErr := config.WriteConfigFile(&appConfig, false); writeErr != nil {
			logging.Warnf("could not write default config file: %v", writeErr)
		}
	}

	if verbose || appConfig.Debug {
		logging.SetDebug(true)
		db.SetDebug(true)
	}

	if err := db.InitDB(appConfig.DBType, appConfig.DBDSN); err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	return nil
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

func applyDefaultFlags(cmd *cobra.Command) {
	// pflag panics on duplicate definitions and NewRootCmd may run more
	// than once in tests, so check first.
	if cmd.Flags().Lookup("db_type") == nil {
		cmd.Flags().String("db_type", "sqlite", "Database type (sqlite, postgres, mysql)")
	}
	if cmd.Flags().Lookup("db_dsn") == nil {
		cmd.Flags().String("db_dsn", "edms.db", "Database connection string (DSN)")
	}
	if cmd.Flags().Lookup("artifact_dir") == nil {
		cmd.Flags().String("artifact_dir", "artifacts", "Directory for document version artifacts")
	}
}

// NewRootCmd creates and configures a new root cobra command. Tests use it
// to get isolated instances.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edms",
		Short: "EDMS backup and restore tooling with natural-key reconciliation.",
		Long: `edms creates portable backup packages of an EDMS database and restores
them into destinations whose surrogate identifiers no longer match the
source. Records are reconciled by natural key (role names, usernames,
document numbers) rather than raw ids, so a restore into a reset or
partially populated destination links, remaps or creates records instead
of corrupting references.`,
		PersistentPreRunE: setupDefaultServices,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
	applyDefaultFlags(cmd)

	applyDefaultFlags(backupCmd)
	applyDefaultFlags(restoreCmd)
	applyDefaultFlags(statusCmd)
	applyDefaultFlags(sessionsCmd)
	applyDefaultFlags(verifyCmd)
	addRestoreFlags(restoreCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		// No database needed for version output.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("version: %s\n", resolveVersion())
			fmt.Printf("commit: %s\n", gitCommit)
			if buildDate != "" {
				fmt.Printf("built: %s\n", buildDate)
			}
		},
	}

	cmd.AddCommand(
		backupCmd,
		restoreCmd,
		statusCmd,
		sessionsCmd,
		verifyCmd,
		versionCmd,
	)

	return cmd
}

func resolveVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return version
}

func compositeVersion() string {
	v := resolveVersion()
	if gitCommit != "" && gitCommit != "dev" {
		v = v + " (" + gitCommit + ")"
	}
	if buildDate != "" {
		v = v + " built: " + buildDate
	}
	return v
}
