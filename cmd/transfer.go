// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/threecommaio/sdwmigrate/pkg/migrate"
)

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Archives a directory from a VM into dom0 if there is room for it",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			domain, _   = cmd.Flags().GetString("domain")
			path, _     = cmd.Flags().GetString("path")
			dest, _     = cmd.Flags().GetString("dest")
			marginKB, _ = cmd.Flags().GetInt64("margin-kb")
			quiet, _    = cmd.Flags().GetBool("quiet")
		)

		t := &migrate.CapacityGatedTransfer{
			Bridge:   bridge(),
			Capacity: migrate.DiskCapacity{},
			Fs:       osFs(),
		}
		if !quiet {
			t.Progress = os.Stderr
		}

		outcome := t.Transfer(context.Background(), domain, path, dest, marginKB)
		fmt.Fprintln(os.Stdout, outcome.Reason)
		if !outcome.Performed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringP("domain", "d", migrate.TargetApp, "VM to archive from")
	transferCmd.Flags().StringP("path", "p", migrate.DefaultAppDataPath, "directory to archive inside the VM")
	transferCmd.Flags().StringP("dest", "o", ".", "local directory receiving the archive")
	transferCmd.Flags().Int64("margin-kb", migrate.DefaultMarginKB, "free space in KB that must remain after staging")
	transferCmd.Flags().BoolP("quiet", "q", false, "hide the progress bar")
}
