/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/api"
	"github.com/martylamb/messagelog/pkg/kvmap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve the message log over HTTP until interrupted. The server holds the log
lock, so other msglog commands cannot open the same file while it runs.

With --kv the log is served as a key-value map under /api/v1/kv and raw
appends are refused.

Examples:
  msglog serve
  msglog serve --kv --port 9000 --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settingsFrom(cmd)
		flags := cmd.Flags()

		serverConfig := api.ServerConfig{
			Port:   s.config.Server.Port,
			Bind:   s.config.Server.Bind,
			APIKey: s.config.Server.APIKey,
			Logger: s.logger,
		}
		if flags.Changed("port") {
			serverConfig.Port, _ = flags.GetInt("port")
		}
		if flags.Changed("bind") {
			serverConfig.Bind, _ = flags.GetString("bind")
		}
		if flags.Changed("api-key") {
			serverConfig.APIKey, _ = flags.GetString("api-key")
		}
		asMap, _ := flags.GetBool("kv")

		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		starter := container.GetServerStarter()

		if asMap {
			m, err := kvmap.Open(s.logConfig())
			if err != nil {
				return err
			}
			defer m.Close()
			return starter.StartServer(ctx, m.Log(), m, serverConfig)
		}

		log, err := openLog(cmd)
		if err != nil {
			return err
		}
		defer log.Close()
		return starter.StartServer(ctx, log, nil, serverConfig)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides server.port)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind (overrides server.bind)")
	serveCmd.Flags().String("api-key", "", "API key for /api/v1 (overrides server.api_key)")
	serveCmd.Flags().Bool("kv", false, "Serve the log as a key-value map")
}
