package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/esc"
)

// appendCmd represents the append command
var appendCmd = &cobra.Command{
	Use:   "append [message]...",
	Short: "Append messages as one transaction",
	Long: `Append every argument as a message of a single transaction. With --stuffed
the messages are read from stdin as a byte-stuffed stream instead.

Examples:
  msglog append created:42 paid:42
  msglog replay --format stuffed --log-file old.log | msglog append --stuffed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stuffed, _ := cmd.Flags().GetBool("stuffed")

		var messages [][]byte
		if stuffed {
			if len(args) > 0 {
				return fmt.Errorf("--stuffed reads messages from stdin and takes no arguments")
			}
			decoded, err := esc.Decode(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to decode stdin: %w", err)
			}
			messages = decoded
		} else {
			for _, arg := range args {
				messages = append(messages, []byte(arg))
			}
		}

		log, err := openLog(cmd)
		if err != nil {
			return err
		}
		defer log.Close()

		if err := log.Append(messages...); err != nil {
			return fmt.Errorf("failed to append: %w", err)
		}
		size, err := log.Size()
		if err != nil {
			return err
		}

		cmd.Printf("Appended %d messages (log size %d bytes)\n", len(messages), size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(appendCmd)
	appendCmd.Flags().Bool("stuffed", false, "Read a byte-stuffed message stream from stdin")
}
