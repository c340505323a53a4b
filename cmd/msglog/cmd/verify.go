package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Scan the log and report its state",
	Long: `Open the log, scan every transaction and report what the scan found. A
corrupt transaction makes the command fail; a partial trailing transaction is
reported as discarded bytes and will be overwritten by the next append.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		log, err := openLog(cmd)
		if err != nil {
			return err
		}
		defer log.Close()

		result := log.LastReplay()
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		cmd.Printf("Log:             %s\n", log.Path())
		cmd.Printf("Transactions:    %d\n", result.Transactions)
		cmd.Printf("Messages:        %d\n", result.Messages)
		cmd.Printf("File size:       %d bytes\n", result.FileSize)
		cmd.Printf("Valid length:    %d bytes\n", result.ValidLength)
		if result.BytesDiscarded > 0 {
			cmd.Printf("Truncated tail:  %d bytes\n", result.BytesDiscarded)
		}
		cmd.Printf("Scan time:       %s\n", result.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Bool("json", false, "Print the result as JSON")
}
