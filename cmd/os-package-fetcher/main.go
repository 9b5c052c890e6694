package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/os-package-fetcher/internal/config"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/pkgfetcher"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
)

// Exit codes
const (
	exitOK               = 0
	exitError            = 1
	exitResolutionFailed = 2
	exitDownloadsFailed  = 3
)

// Version information, set at build time
var (
	Version   = "dev"
	BuildDate = "unknown"
	CommitSHA = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

// Loaded in PersistentPreRunE
var (
	globalConfig *config.GlobalConfig
	flushLogger  = func() {}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := createRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	flushLogger()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case ospackage.IsResolutionError(err):
		return exitResolutionFailed
	case errors.Is(err, pkgfetcher.ErrDownloadsFailed):
		return exitDownloadsFailed
	default:
		return exitError
	}
}

func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "os-package-fetcher [flags] PACKAGE...",
		Short: "Resolves and downloads RPM and DEB packages with their dependencies",
		Long: `os-package-fetcher loads the package indexes of the configured RPM
(repomd) and DEB (Packages) repositories, resolves the requested packages
together with everything they depend on, and downloads the resulting files
with checksum verification.`,
		Version:           fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, CommitSHA),
		Args:              cobra.MinimumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfigAndLogging,
		RunE:              executeFetch,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	addFetchFlags(rootCmd)
	return rootCmd
}

// resolveRequestedLogLevel returns the level requested on the command line,
// or "" when the configuration decides.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil {
		if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
			return "debug"
		}
	}
	return ""
}

// initConfigAndLogging loads the configuration, applies command line
// overrides and starts the logger.
func initConfigAndLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if lvl := resolveRequestedLogLevel(cmd); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := applyFetchFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	_, flush, err := logger.Init(config.NewConfigHelpers(cfg).LogLevel())
	if err != nil {
		return err
	}
	flushLogger = flush
	globalConfig = cfg

	log := logger.Logger()
	if configFile != "" {
		log.Infof("using configuration %s", configFile)
	}
	log.Debugf("os-package-fetcher %s", Version)
	return nil
}
