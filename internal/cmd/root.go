// Package cmd implements the pgtemp command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vaxhacker/pgtemp/internal/config"
)

var (
	verbosityFlag int
	configFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "pgtemp",
	Short: "Disposable PostgreSQL servers for tests and experiments",
	Long: `pgtemp provisions a throwaway PostgreSQL server under a temporary
directory, addressed through a unix socket instead of a TCP port, and
tears everything down when the process ends.

With no local PostgreSQL installation, pgtemp falls back to running the
server inside a docker container.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosityFlag, "verbosity", "v", 1,
		"output verbosity (0 silences subordinate command output, 2 echoes commands)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"config file (default $PGTEMP_CONFIG or <user-config-dir>/pgtemp/config.toml)")
}

// loadFile loads the TOML config honoring the --config flag.
func loadFile() (*config.File, error) {
	if configFlag != "" {
		return config.Load(configFlag)
	}
	return config.LoadDefault()
}
