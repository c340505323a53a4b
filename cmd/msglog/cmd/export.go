package cmd

import (
	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/storage"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <archive-dir>",
	Short: "Copy the log into a pebble archive",
	Long: `Replay the log into a pebble database in archive-dir, numbering messages
from 0 in log order. An existing archive is replaced. The archive can be read
back by sequence number with 'export --show'.

Examples:
  msglog export ./archive
  msglog export ./archive --show --from 100 --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetBool("show")
		from, _ := cmd.Flags().GetUint64("from")
		limit, _ := cmd.Flags().GetInt("limit")

		archive, err := storage.OpenArchive(args[0])
		if err != nil {
			return err
		}
		defer archive.Close()

		if show {
			shown := 0
			return archive.Ascend(from, func(seq uint64, message []byte) bool {
				cmd.Printf("%d\t%q\n", seq, message)
				shown++
				return limit <= 0 || shown < limit
			})
		}

		log, err := openLog(cmd)
		if err != nil {
			return err
		}
		defer log.Close()

		manifest, err := archive.Export(log)
		if err != nil {
			return err
		}
		cmd.Printf("Exported %d messages from %s (export %s)\n", manifest.Messages, manifest.Source, manifest.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().Bool("show", false, "Print archived messages instead of exporting")
	exportCmd.Flags().Uint64("from", 0, "First sequence number to print with --show")
	exportCmd.Flags().Int("limit", 0, "Maximum messages to print with --show (0 = all)")
}

