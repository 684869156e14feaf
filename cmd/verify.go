// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/threecommaio/sdwmigrate/pkg/gpg"
	"github.com/threecommaio/sdwmigrate/pkg/migrate"
)

// verifyCmd represents the verify-keys command
var verifyCmd = &cobra.Command{
	Use:   "verify-keys",
	Short: "Exports the secret keys of a VM and checks them against the submission key fingerprint",
	Run: func(cmd *cobra.Command, args []string) {
		var (
			domain, _     = cmd.Flags().GetString("domain")
			raw, _        = cmd.Flags().GetString("fingerprint")
			configDir, _  = cmd.Flags().GetString("config-dir")
			exportDir, _  = cmd.Flags().GetString("export-dir")
			stagingDir, _ = cmd.Flags().GetString("staging-dir")
			fs            = osFs()
			reference     gpg.Fingerprint
		)

		if raw != "" {
			fp, ok := gpg.ParseFingerprint(raw)
			if !ok {
				log.Fatalf("%q is not a %d character fingerprint", raw, gpg.FingerprintLength)
			}
			reference = fp
		} else {
			fp, err := migrate.ReadReferenceFingerprint(fs, filepath.Join(configDir, migrate.ConfigFile))
			if err != nil {
				log.Fatal(err)
			}
			reference = fp
		}

		verifier := &migrate.KeyCustodyVerifier{
			Bridge:        bridge(),
			Keyring:       keyring(),
			Fs:            fs,
			ExportDir:     exportDir,
			StagingParent: stagingDir,
		}
		outcome := verifier.Verify(context.Background(), domain, reference)
		if !outcome.Matched {
			fmt.Fprintln(os.Stdout, outcome.Failure)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "%d key(s) exported from %s to %s, %s found\n",
			outcome.ImportedCount, domain, outcome.ExportPath, reference)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringP("domain", "d", migrate.TargetGPG, "VM holding the secret keys")
	verifyCmd.Flags().StringP("fingerprint", "f", "", "expected fingerprint (default is submission_key_fpr from config.json)")
	verifyCmd.Flags().String("config-dir", migrate.DefaultConfigDir, "directory holding config.json")
	verifyCmd.Flags().StringP("export-dir", "o", ".", "directory receiving the armored export")
	verifyCmd.Flags().String("staging-dir", "", "parent of the temporary gpg home (default is the system temp dir)")
}
