package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/sessiondb/internal/cli"
	"github.com/aretw0/sessiondb/internal/config"
	"github.com/aretw0/sessiondb/internal/dto"
	"github.com/aretw0/sessiondb/internal/logging"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/spf13/cobra"
)

// app carries the state shared by every command of one invocation.
type app struct {
	configPath string
	data       string
	memory     bool
	redis      string
	logLevel   string
	logFile    string

	cfg       dto.FileConfig
	logger    *slog.Logger
	logCloser io.Closer
	prompter  *cli.Prompter
}

// NewRootCmd creates the sessiondb command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{prompter: cli.NewPrompter()})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sessiondb",
		Short:         "sessiondb is an expiry-aware session store",
		Long:          `sessiondb stores HTTP sessions in a SQLite datafile, in memory or in Redis, and lets you inspect and manage them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&a.data, "data", "", fmt.Sprintf("Session datafile (default %q)", sessionstore.DefaultFilename))
	flags.BoolVar(&a.memory, "memory", false, "Keep sessions in memory only")
	flags.StringVar(&a.redis, "redis", "", "Redis URL (e.g. redis://localhost:6379/0)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFile, "log-file", "", "Also write logs to this file, rotated by size")

	rootCmd.AddCommand(newSessionCmd(a))
	rootCmd.AddCommand(newCompactCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setup loads the configuration file, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Store.Filename = a.data
	}
	if flags.Changed("memory") {
		cfg.Store.InMemoryOnly = a.memory
	}
	if flags.Changed("redis") {
		cfg.Store.RedisURL = a.redis
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = a.logFile
	}
	a.cfg = cfg

	logger, closer, err := logging.New(logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		JSON:       cfg.Log.JSON,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.logCloser = closer
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
