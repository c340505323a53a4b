/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/config"
	"github.com/martylamb/messagelog/pkg/di"
	"github.com/martylamb/messagelog/pkg/store"
)

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

type settingsKey struct{}

// settings is the resolved configuration of one invocation
type settings struct {
	configPath string
	config     *config.Config
	logger     *slog.Logger
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "msglog",
	Short: "msglog - durable append-only message log",
	Long: `msglog stores opaque messages in a single append-only file. Messages are
grouped into checksummed transactions and replayed in order on open; a
transaction cut short by a crash is discarded, a corrupted one is reported.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), settingsKey{}, s))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().String("log-file", "", "Message log file (overrides log_file)")
	rootCmd.PersistentFlags().Bool("auto-sync", false, "Fsync after every append (overrides auto_sync)")
	rootCmd.PersistentFlags().String("log-level", "", "Diagnostic log level: debug, info, warn, error")
}

// loadSettings reads the config file when present and applies flag overrides
func loadSettings(cmd *cobra.Command) (*settings, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("auto-sync") {
		cfg.AutoSync, _ = flags.GetBool("auto-sync")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	return &settings{configPath: configPath, config: cfg, logger: logger}, nil
}

func settingsFrom(cmd *cobra.Command) *settings {
	s, ok := cmd.Context().Value(settingsKey{}).(*settings)
	if !ok {
		panic("settings not loaded")
	}
	return s
}

// logConfig returns the store settings with the invocation's logger
func (s *settings) logConfig() store.LogConfig {
	lc := s.config.LogConfig()
	lc.Logger = s.logger
	return lc
}

// openLog opens the configured log without delivering messages
func openLog(cmd *cobra.Command) (*store.MessageLog, error) {
	s := settingsFrom(cmd)
	log, err := store.Open(s.logConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.config.LogFile, err)
	}
	return log, nil
}
