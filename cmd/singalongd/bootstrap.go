package main

import (
	"strings"

	"github.com/spf13/cobra"

	"singalong/internal/config"
	"singalong/internal/daemonrun"
)

type options struct {
	configPath  string
	logLevel    string
	development bool
}

type runFunc func(cmd *cobra.Command, cfg *config.Config, opts daemonrun.Options) error

func runDaemon(cmd *cobra.Command, cfg *config.Config, opts daemonrun.Options) error {
	return daemonrun.Run(cmd.Context(), cfg, opts)
}

func newCommand(getenv func(string) string) *cobra.Command {
	return newCommandWithRunner(getenv, runDaemon)
}

// newCommandWithRunner builds the singalongd command. Environment variables
// fill in whatever the flags leave empty so the binary also works under
// service managers that only pass environment.
func newCommandWithRunner(getenv func(string) string, run runFunc) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "singalongd",
		Short:         "Run the singalong daemon in the foreground",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved := opts.withEnv(getenv)
			cfg, _, _, err := config.Load(resolved.configPath)
			if err != nil {
				return err
			}
			return run(cmd, cfg, daemonrun.Options{
				LogLevel:    resolved.logLevel,
				Development: resolved.development,
			})
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (env SINGALONG_CONFIG)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (env SINGALONG_LOG_LEVEL)")
	cmd.Flags().BoolVar(&opts.development, "dev", false, "Enable development logging")
	return cmd
}

func (o options) withEnv(getenv func(string) string) options {
	if strings.TrimSpace(o.configPath) == "" {
		o.configPath = strings.TrimSpace(getenv("SINGALONG_CONFIG"))
	}
	if strings.TrimSpace(o.logLevel) == "" {
		o.logLevel = strings.TrimSpace(getenv("SINGALONG_LOG_LEVEL"))
	}
	return o
}
