// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/threecommaio/sdwmigrate/pkg/provision"
)

func init() {
	provisionCmd.AddCommand(applyCmd)
}

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Copy the workstation configuration into salt and provision every VM",
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		runner := provision.NewRunner(os.Stdout, dryRun)
		if err := runner.CheckNotRoot(); err != nil {
			log.Fatal(err)
		}
		if err := runner.Run(context.Background(), provision.ApplyPlan(provisionPaths(cmd))); err != nil {
			log.Fatal(err)
		}
	},
}
