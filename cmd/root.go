// Copyright © 2018 ThreeComma.io <hello@threecomma.io>

package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/threecommaio/sdwmigrate/pkg/gpg"
	"github.com/threecommaio/sdwmigrate/pkg/migrate"
	"github.com/threecommaio/sdwmigrate/pkg/qrexec"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sdwmigrate",
	Short: "SecureDrop Workstation migration and provisioning helper for dom0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sdwmigrate.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("bridge", qrexec.DefaultBinary, "command used to run commands in other qubes")
	rootCmd.PersistentFlags().String("gpg", gpg.DefaultBinary, "gpg binary used for local key checks")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("bridge", rootCmd.PersistentFlags().Lookup("bridge"))
	viper.BindPFlag("gpg", rootCmd.PersistentFlags().Lookup("gpg"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".sdwmigrate" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".sdwmigrate")
	}

	viper.SetEnvPrefix("sdwmigrate")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	err := viper.ReadInConfig()

	log.SetOutput(os.Stderr)
	log.SetFormatter(migrate.UTCFormatter{Formatter: &log.TextFormatter{FullTimestamp: true}})

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if err == nil {
		log.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}

func bridge() qrexec.Bridge {
	return qrexec.NewQubesBridge(viper.GetString("bridge"))
}

func keyring() gpg.Keyring {
	return gpg.NewTool(viper.GetString("gpg"))
}

func osFs() afero.Fs {
	return afero.NewOsFs()
}
