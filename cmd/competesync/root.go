package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"competesync/pkg/config"
	"competesync/pkg/logger"
	"competesync/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile  string
	logLevel    string
	quiet       bool
	database    string
	backend     string
	credentials string
	maxPages    int
	headless    bool
	wait        time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "competesync",
	Short: "Sync competitions and participants from a challenge-protected event API",
	Long: `competesync pulls competition and participant lists from a SimplyCompete
tenant that sits behind a bot-challenge interstitial.

Clearance cookies are obtained by a real headless Chrome session, cached in a
credential store and refreshed automatically when the API rejects them.
Results are kept in a local SQLite database and can be served over HTTP.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintBanner()
		}
	},
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("Error", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default .competesync.yaml or ~/.config/competesync/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress status output")
	flags.StringVar(&database, "database", "", "SQLite database path")
	flags.StringVar(&backend, "backend", "", "credential backend (file, encrypted, keyring, env)")
	flags.StringVar(&credentials, "credentials", "", "credential file for the file and encrypted backends")
	flags.IntVar(&maxPages, "max-pages", 0, "maximum pages per fetch")
	flags.BoolVar(&headless, "headless", true, "run the challenge browser headless")
	flags.DurationVar(&wait, "wait", 0, "time to let the challenge settle after the entry page loads")

	rootCmd.SetVersionTemplate(`competesync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges file, environment and the flags the user actually set,
// then initializes the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("log-level") {
		flags["log-level"] = logLevel
	}
	if changed("database") {
		flags["database"] = database
	}
	if changed("backend") {
		flags["backend"] = backend
	}
	if changed("credentials") {
		flags["credentials"] = credentials
	}
	if changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if changed("headless") {
		flags["headless"] = headless
	}
	if changed("wait") {
		flags["wait"] = wait
	}
	if changed("listen") {
		flags["listen"] = listenAddr
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
