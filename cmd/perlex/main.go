package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/perlex/config"
)

var version = "0.1.0"

// cfg is loaded before any subcommand runs.
var cfg *config.Config

func main() {
	var envFiles []string
	var verbosity int
	var logFile string

	rootCmd := &cobra.Command{
		Use:          "perlex",
		Short:        "Find, collect and recover Perl heredocs",
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("verbose") {
				loaded.LogVerbosity = verbosity
			}
			if logFile != "" {
				loaded.LogFile = logFile
			}
			var path *string
			if loaded.LogFile != "" {
				path = &loaded.LogFile
			}
			commonlog.Configure(loaded.LogVerbosity, path)
			cfg = loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().StringArrayVar(&envFiles, "env-file", nil, "env file to load instead of .env")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newRecoverCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newLSPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
