package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/scttfrdmn/camofinder/pkg/camo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "camofinder",
	Short: "Find camouflaged, dark and incomplete regions of a genome",
	Long: `camofinder identifies regions where the genome is 'camouflaged', 'dark'
or 'incomplete' for a set of aligned reads.

Camouflaged regions are those where the aligner assigns a low MAPQ
(e.g., MAPQ == 0 in BWA) because reads align to multiple locations
equally well. Dark regions have depth <= --dark-depth, or a large share
of reads with MAPQ < 10. Incomplete regions are those where the
reference base is unknown ('N' or 'n'). Incomplete regions are reported
separately from dark regions, and vice versa.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func main() {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nERROR: %v\n\n", err)

		// Input and configuration problems get the usage text as well
		var inputErr *camo.InputError
		var configErr *camo.ConfigError
		if errors.As(err, &inputErr) || errors.As(err, &configErr) {
			cmd.Usage()
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (YAML, TOML or JSON) with defaults for any flag")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig wires viper to the config file and CAMO_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.SetEnvPrefix("camo")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func initLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return &camo.ConfigError{Option: "log level", Value: logLevel, Reason: err.Error()}
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfgFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			return &camo.InputError{Kind: "config file", Path: cfgFile, Err: err}
		}
		logrus.Debugf("using config file %s", viper.ConfigFileUsed())
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("camofinder version %s\n", version)
	},
}
