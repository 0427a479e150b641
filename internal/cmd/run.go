package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vaxhacker/pgtemp/internal/config"
	"github.com/vaxhacker/pgtemp/internal/pgserver"
)

var (
	runDatabases []string
	runRetries   int
	runInterval  time.Duration
	runImage     string
	runDir       string
	runSockDir   string
	runOptions   []string
	runRunAs     string
	runStateFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision a temporary server and keep it until interrupted",
	Long: `Provision a temporary PostgreSQL server, print its connection
details, and block until SIGINT or SIGTERM. The server process, its data
directory, and its socket directory are removed on exit.

Settings are resolved in order: flags, then PGTEMP_* environment
variables, then the config file.

Examples:
  pgtemp run                         # empty server, default tools
  pgtemp run -d alpha -d beta        # create two databases
  pgtemp run --image postgres:16     # force container mode
  pgtemp run -o fsync=off -o log_min_messages=warning`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runDatabases, "db", "d", nil,
		"database to create once the server is ready (repeatable)")
	runCmd.Flags().IntVar(&runRetries, "retries", 0, "readiness probe attempts")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "pause before each readiness probe attempt")
	runCmd.Flags().StringVar(&runImage, "image", "", "force container mode with this image")
	runCmd.Flags().StringVar(&runDir, "dir", "", "reuse this base directory instead of allocating one")
	runCmd.Flags().StringVar(&runSockDir, "socket-dir", "", "use this socket directory instead of <base>/socket")
	runCmd.Flags().StringArrayVarP(&runOptions, "option", "o", nil,
		"server configuration option key=value (repeatable)")
	runCmd.Flags().StringVar(&runRunAs, "run-as", "", "OS account to run the server as")
	runCmd.Flags().StringVar(&runStateFile, "state", "", "write instance state JSON to this path")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := startInstance(cfg)
	if err != nil {
		return err
	}
	defer srv.Cleanup()

	printSummary(srv)

	if runStateFile != "" {
		if err := pgserver.SaveState(runStateFile, srv.State()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not write state file: %v\n", err)
		} else {
			defer os.Remove(runStateFile)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println()
	return nil
}

// buildConfig folds the config file, PGTEMP_* environment variables, and
// flags (in ascending precedence) into a pgserver.Config.
func buildConfig(cmd *cobra.Command) (pgserver.Config, error) {
	file, err := loadFile()
	if err != nil {
		return pgserver.Config{}, err
	}

	verbosity := 1
	if file.Verbosity != nil {
		verbosity = *file.Verbosity
	}
	verbosity = config.EnvInt(config.EnvVerbosity, verbosity)
	if cmd.Root().PersistentFlags().Changed("verbosity") {
		verbosity = verbosityFlag
	}

	cfg := pgserver.Config{
		Databases:     runDatabases,
		Verbosity:     verbosity,
		Retries:       config.EnvInt(config.EnvRetries, file.Retries),
		RetryInterval: config.EnvDuration(config.EnvRetryInterval, file.RetryInterval.Duration),
		DockerImage:   config.EnvString(config.EnvImage, file.Image),
		RunAs:         runRunAs,
		InitDB:        file.Tools.InitDB,
		Postgres:      file.Tools.Postgres,
		Psql:          file.Tools.Psql,
		CreateUser:    file.Tools.CreateUser,
		Dir:           runDir,
		SocketDir:     runSockDir,
	}

	if cmd.Flags().Changed("retries") {
		cfg.Retries = runRetries
	}
	if cmd.Flags().Changed("interval") {
		cfg.RetryInterval = runInterval
	}
	if runImage != "" {
		cfg.DockerImage = runImage
	}

	if len(file.Options) > 0 || len(runOptions) > 0 {
		cfg.Options = make(map[string]string, len(file.Options)+len(runOptions))
	}
	for k, v := range file.Options {
		cfg.Options[k] = v
	}
	for _, opt := range runOptions {
		k, v, err := parseOption(opt)
		if err != nil {
			return pgserver.Config{}, err
		}
		cfg.Options[k] = v
	}

	return cfg, nil
}

// parseOption splits a "key=value" flag argument.
func parseOption(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("invalid option %q: expected key=value", s)
	}
	return k, v, nil
}

func printSummary(srv *pgserver.Server) {
	fmt.Println(header("temporary postgres ready"))
	fmt.Printf("  %s %s\n", dimText("socket:"), srv.SocketDir)
	fmt.Printf("  %s %s\n", dimText("data:  "), srv.DataDir)
	for _, db := range srv.State().Databases {
		fmt.Printf("  %s %s\n", dimText("db:    "), okText(db))
	}
	fmt.Printf("  %s %s\n", dimText("connect:"), srv.ConnHint())
	fmt.Println(dimText("press Ctrl-C to stop"))
}
