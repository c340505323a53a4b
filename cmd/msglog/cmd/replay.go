package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/esc"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Print every message in log order",
	Long: `Print every message in the log, oldest first.

Formats:
  text     one message per line, as stored
  hex      one message per line, hex encoded
  stuffed  a byte-stuffed stream that 'append --stuffed' reads back`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		handle, flush, err := messagePrinter(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}

		log, err := openLog(cmd)
		if err != nil {
			return err
		}
		defer log.Close()

		if _, err := log.Replay(handle); err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
		return flush()
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringP("format", "f", "text", "Output format: text, hex or stuffed")
}

// messagePrinter returns a handler writing messages to w in format
func messagePrinter(w io.Writer, format string) (func([]byte) error, func() error, error) {
	switch format {
	case "text", "hex":
		out := bufio.NewWriter(w)
		return func(message []byte) error {
			var err error
			if format == "hex" {
				_, err = out.WriteString(hex.EncodeToString(message))
			} else {
				_, err = out.Write(message)
			}
			if err != nil {
				return err
			}
			return out.WriteByte('\n')
		}, out.Flush, nil
	case "stuffed":
		out := esc.NewWriter(w)
		return out.WriteMessage, out.Flush, nil
	default:
		return nil, nil, fmt.Errorf("unknown format %q (want text, hex or stuffed)", format)
	}
}
