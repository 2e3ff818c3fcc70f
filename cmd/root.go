// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for sqlworker.
// The run command consumes requests from the message bus; the remaining
// commands run one request locally or inspect and manage the configuration,
// the keychain and the outcome journal. Commands are built with Cobra.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sqlworker/internal/config"
	"sqlworker/internal/keychain"
	"sqlworker/internal/logging"
	"sqlworker/internal/session"
	"sqlworker/internal/xdg"
)

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
)

// errRequestFailed makes the process exit with status 1 without printing;
// the failure has already been reported.
var errRequestFailed = errors.New("request failed")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sqlworker",
	Short: "Message-driven worker running schema and data operations on SQL databases",
	Long: `sqlworker receives requests over a NATS JetStream subject, runs one of a fixed set of
schema or data operations against a named database and publishes the outcome to the
requester's reply subject.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI application. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errRequestFailed) {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/sqlworker/config.yaml)")
	pf.StringVar(&envFile, "env-file", "", "env file with SQLWORKER_ variables (default ./.env if present)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")
}

// setup loads the configuration with cmd's flags on top and builds the
// logger it selects.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{
		File:    cfgFile,
		EnvFile: envFile,
		Flags:   cmd.Flags(),
	})
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}
	return cfg, logger, nil
}

// secrets opens the OS keychain when a database refers to it. A nil store
// makes keyring URIs fail as connection failures at request time.
func secrets(cfg *config.Config, logger *slog.Logger) session.SecretStore {
	needed := false
	for _, db := range cfg.Databases {
		if strings.HasPrefix(db.URI, config.KeyringPrefix) {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}
	km, err := keychain.NewManager()
	if err != nil {
		logger.Warn("keychain unavailable, keyring databases cannot connect", "error", err)
		return nil
	}
	return km
}

// journalConfig fills in the default journal file for the sqlite driver.
func journalConfig(j config.Journal) (config.Journal, error) {
	if j.Driver != "sqlite" || j.Path != "" {
		return j, nil
	}
	dir, err := xdg.StateDir()
	if err != nil {
		return j, fmt.Errorf("journal.path is not set and no state directory is available: %w", err)
	}
	j.Path = filepath.Join(dir, "journal.db")
	return j, nil
}
