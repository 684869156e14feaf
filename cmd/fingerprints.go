// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/threecommaio/sdwmigrate/pkg/gpg"
)

// fingerprintsCmd represents the fingerprints command
var fingerprintsCmd = &cobra.Command{
	Use:   "fingerprints [file]",
	Short: "Prints the fingerprints in a gpg --with-colons listing or an armored key export",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		armored, _ := cmd.Flags().GetBool("armored")

		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = ioutil.ReadAll(os.Stdin)
		} else {
			data, err = afero.ReadFile(osFs(), args[0])
		}
		if err != nil {
			log.Fatal(err)
		}

		set, err := parseFingerprints(bytes.NewReader(data), armored)
		if err != nil {
			log.Fatal(err)
		}
		for _, fp := range set.Sorted() {
			fmt.Fprintln(os.Stdout, fp)
		}
	},
}

func parseFingerprints(r io.Reader, armored bool) (gpg.FingerprintSet, error) {
	if armored {
		return gpg.ArmoredFingerprints(r)
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return gpg.ExtractFingerprints(data), nil
}

func init() {
	rootCmd.AddCommand(fingerprintsCmd)

	fingerprintsCmd.Flags().BoolP("armored", "a", false, "input is an ASCII armored secret key export")
}
