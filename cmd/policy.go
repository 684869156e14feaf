// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/threecommaio/sdwmigrate/pkg/policy"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspects the qrexec RPC policies of the workstation",
}

// checkCmd represents the policy check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Calls RPC services from each source VM and compares the outcome with the expected policy",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			file, _        = cmd.Flags().GetString("file")
			policyFiles, _ = cmd.Flags().GetStringSlice("policy-files")
			fs             = osFs()
			exps           = policy.DefaultExpectations
			failed         int
		)

		if missing := policy.MissingPolicyFiles(fs, policyFiles); len(missing) > 0 {
			for _, m := range missing {
				log.Errorf("policy file not found: %s", m)
			}
			os.Exit(1)
		}

		if file != "" {
			loaded, err := policy.LoadExpectations(fs, file)
			if err != nil {
				log.Fatal(err)
			}
			exps = loaded
		}

		checker := &policy.Checker{Bridge: bridge()}
		for _, r := range checker.Check(context.Background(), exps) {
			verdict := "PASS"
			if !r.Passed() {
				verdict = "FAIL"
				failed++
			}
			if r.Err != nil {
				fmt.Fprintf(os.Stdout, "%s %s (%v)\n", verdict, r.Expectation, r.Err)
				continue
			}
			fmt.Fprintf(os.Stdout, "%s %s (exit status %d)\n", verdict, r.Expectation, r.ExitCode)
		}
		if failed > 0 {
			log.Errorf("%d of %d policy expectation(s) failed", failed, len(exps))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("file", "f", "", "YAML file of expectations (default is the built-in logging policy)")
	checkCmd.Flags().StringSlice("policy-files", policy.DefaultPolicyFiles, "policy files that must be installed")
}
