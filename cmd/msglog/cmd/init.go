/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file and create the message log",
	Long: `Write a configuration file with a generated API key and create an empty
message log at the configured path.

Examples:
  msglog init
  msglog init --config ./msglog.yaml --log-file ./data/orders.log`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settingsFrom(cmd)
		force, _ := cmd.Flags().GetBool("force")

		if config.ConfigExists(s.configPath) && !force {
			cmd.Printf("Config already exists at %s. Use --force to overwrite.\n", s.configPath)
			return nil
		}

		cfg, err := config.BootstrapConfig(s.configPath, s.config.LogFile)
		if err != nil {
			return err
		}
		s.config = cfg

		log, err := openLog(cmd)
		if err != nil {
			return err
		}
		if err := log.Close(); err != nil {
			return fmt.Errorf("failed to close log: %w", err)
		}

		cmd.Printf("Config written to %s\n", s.configPath)
		cmd.Printf("Message log: %s\n", cfg.LogFile)
		cmd.Printf("API key: %s\n", cfg.Server.APIKey)
		cmd.Printf("\nYou can now start the server with:\n")
		cmd.Printf("  msglog serve --config %s\n", s.configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}
