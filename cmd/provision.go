// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/threecommaio/sdwmigrate/pkg/migrate"
	"github.com/threecommaio/sdwmigrate/pkg/provision"
)

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Applies or removes the SecureDrop Workstation salt configuration",
}

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Destroys the workstation VMs and reverts dom0 configuration",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			yes, _    = cmd.Flags().GetBool("yes")
			dryRun, _ = cmd.Flags().GetBool("dry-run")
			confirmer migrate.Confirmer
		)
		confirmer = &migrate.PromptConfirmer{In: os.Stdin, Out: os.Stdout}
		if yes || dryRun {
			confirmer = migrate.AlwaysConfirm
		}
		ok, err := confirmer.Confirm("This will destroy all SecureDrop Workstation VMs. Continue? (y/Y to continue, any key to quit) ")
		if err != nil {
			log.Fatal(err)
		}
		if !ok {
			os.Exit(1)
		}

		paths := provisionPaths(cmd)
		runner := provision.NewRunner(os.Stdout, dryRun)
		if err := runner.Run(context.Background(), provision.UninstallPlan(paths)); err != nil {
			log.Fatal(err)
		}
		if !dryRun {
			fmt.Fprintln(os.Stdout, provision.UninstallNotice(paths))
		}
	},
}

func provisionPaths(cmd *cobra.Command) provision.Paths {
	var (
		scripts, _ = cmd.Flags().GetString("scripts-path")
		salt, _    = cmd.Flags().GetString("salt-path")
	)
	return provision.Paths{Scripts: scripts, Salt: salt}
}

func init() {
	rootCmd.AddCommand(provisionCmd)
	provisionCmd.AddCommand(uninstallCmd)

	provisionCmd.PersistentFlags().String("scripts-path", provision.DefaultScriptsPath, "install location of the dom0 config package")
	provisionCmd.PersistentFlags().String("salt-path", provision.DefaultSaltPath, "salt tree receiving the configuration")
	provisionCmd.PersistentFlags().Bool("dry-run", false, "print the steps without running them")
	uninstallCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
