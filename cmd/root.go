package cmd

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cmmoran/cxxffigen/internal/logging"
)

var (
	configFiles    []string
	level, version string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "cxxffigen",
	Short:         "generate Go FFI bindings from C++ headers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&level, "level", "l", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config", []string{}, "config file(s) - multiple config files are merged with last specified file having highest priority")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	l := newLogger(level)

	if len(configFiles) > 0 {
		// Use config file from the flag.
		viper.SetConfigFile(configFiles[0])
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		l.Info("using config file(s)", zap.String("config", viper.ConfigFileUsed()))
	} else {
		l.Debug("unable to use config file(s)", zap.Error(err), zap.String("config", viper.ConfigFileUsed()))
	}
	if len(configFiles) > 1 {
		for _, file := range configFiles[1:] {
			if configBytes, err := os.ReadFile(file); err == nil {
				if err = viper.MergeConfig(bytes.NewReader(configBytes)); err != nil {
					l.Warn("failed to merge config file", zap.Error(err), zap.String("file", file))
				} else {
					l.Info("merged config file", zap.String("file", file))
				}
			} else {
				l.Warn("unable to read config file", zap.Error(err), zap.String("file", file))
			}
		}
	}
	if len(version) > 0 {
		viper.Set("version", version)
	}

	// The flag wins; the config file only applies when the flag is not set.
	if llstr := viper.GetString("common.log.level"); llstr != "" && !rootCmd.PersistentFlags().Changed("level") {
		newLogger(llstr)
	}
}

func newLogger(lvl string) *zap.Logger {
	l, err := logging.New(lvl)
	if err != nil {
		l = zap.NewNop()
	}
	logging.SetLogger(l)
	return l
}
