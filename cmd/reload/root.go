package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "reloads.yaml"

type rootOptions struct {
	configPaths []string
	verbose     bool
	logFile     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "reload",
		Short:         "Schedule monthly card balance reloads",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defCfg := defaultConfigFile
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defCfg = v
	}
	cmd.PersistentFlags().StringArrayVarP(&opts.configPaths, "config", "c", []string{defCfg}, "configuration file to run reloads from (repeat to merge cards)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also append JSON logs to this file")

	cmd.AddCommand(newRunCmd(opts), newDaemonCmd(opts), newStatusCmd(opts))
	return cmd
}
