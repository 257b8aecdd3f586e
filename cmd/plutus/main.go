// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the plutus CLI. It submits project
// descriptions to the funding-report service, follows stage progress as it
// streams in, and keeps a local archive of finished reports.
package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/plutus/internal/logging"
	"github.com/pdiddy/plutus/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// log is configured in PersistentPreRunE; commands may use it from RunE.
	log = logrus.StandardLogger()

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets = secrets.Secrets{}

	closeLog = func() error { return nil }
)

// rootCmd is the base command for the plutus CLI.
var rootCmd = &cobra.Command{
	Use:   "plutus",
	Short: "Find research funders for a project description",
	Long: `plutus asks the funding-report service which organisations fund research
like yours. It streams stage progress while the service generates search
terms, finds funded papers for each term, compiles funding data and writes a
summary, then prints the final report and stores it in a local archive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, closer, err := logging.New(loadConfig().Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		log, closeLog = l, closer

		s, err := secrets.Load(viper.GetString("secrets_dir"), log)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.WithField("keys", keys).Debug("loaded secrets")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./plutus.yaml or ~/.config/plutus/plutus.yaml)")
	pf.String("base-url", "", "report service URL")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "also append logs to this file")
	pf.String("secrets-dir", "", "directory of credential files")

	viper.BindPFlag("stream.base_url", pf.Lookup("base-url"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.file", pf.Lookup("log-file"))
	viper.BindPFlag("secrets_dir", pf.Lookup("secrets-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("plutus")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "plutus"))
		}
	}

	viper.SetEnvPrefix("PLUTUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
