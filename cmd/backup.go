// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/threecommaio/sdwmigrate/pkg/migrate"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Collects dom0 configuration, sd-gpg keys and sd-app data into a migration directory",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			yes, _        = cmd.Flags().GetBool("yes")
			stagingDir, _ = cmd.Flags().GetString("staging-dir")
			config        = migrate.DefaultConfig()
		)
		config.WorkDir = viper.GetString("workdir")
		config.ConfigDir = viper.GetString("config-dir")
		config.QubesDir = viper.GetString("qubes-dir")
		config.MarginKB = viper.GetInt64("margin-kb")
		config.RequireAppData = viper.GetBool("require-app-data")
		config.StagingParent = stagingDir

		m := &migrate.Migrator{
			Config:    config,
			Bridge:    bridge(),
			Keyring:   keyring(),
			Capacity:  migrate.DiskCapacity{},
			Confirmer: &migrate.PromptConfirmer{In: os.Stdin, Out: os.Stdout},
			Fs:        osFs(),
			Out:       os.Stdout,
		}
		if yes {
			m.Confirmer = migrate.AlwaysConfirm
		}
		if viper.GetBool("progress") {
			m.Progress = os.Stderr
		}

		// partial completion is reported on stdout only
		if _, err := m.Run(context.Background()); err != nil {
			if errors.Cause(err) == migrate.ErrConfirmationDeclined {
				os.Exit(1)
			}
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringP("workdir", "w", ".", "directory in which the migration directory is created")
	backupCmd.Flags().String("config-dir", migrate.DefaultConfigDir, "dom0 configuration directory")
	backupCmd.Flags().String("qubes-dir", migrate.DefaultQubesDir, "qubes configuration directory copied into the migration")
	backupCmd.Flags().Int64("margin-kb", migrate.DefaultMarginKB, "free space in KB that must remain after staging sd-app data")
	backupCmd.Flags().Bool("require-app-data", false, "treat the sd-app data archive as required for success")
	backupCmd.Flags().Bool("progress", true, "show a progress bar while archiving")
	backupCmd.Flags().String("staging-dir", "", "parent of the temporary gpg home (default is the system temp dir)")
	backupCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	viper.BindPFlag("workdir", backupCmd.Flags().Lookup("workdir"))
	viper.BindPFlag("config-dir", backupCmd.Flags().Lookup("config-dir"))
	viper.BindPFlag("qubes-dir", backupCmd.Flags().Lookup("qubes-dir"))
	viper.BindPFlag("margin-kb", backupCmd.Flags().Lookup("margin-kb"))
	viper.BindPFlag("require-app-data", backupCmd.Flags().Lookup("require-app-data"))
	viper.BindPFlag("progress", backupCmd.Flags().Lookup("progress"))
}
