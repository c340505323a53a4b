package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/martylamb/messagelog/pkg/kvmap"
)

// kvCmd groups the map commands
var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Use the log as a key-value map",
	Long: `Treat the log as the history of a string map: every put, delete or clear is
one logged command, and opening the map replays them in order.`,
}

var kvPutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Set a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMap(cmd, func(m *kvmap.Map) error {
			prev, existed, err := m.Put(args[0], args[1])
			if err != nil {
				return err
			}
			if existed {
				cmd.Printf("Replaced '%s' (was '%s')\n", args[0], prev)
			} else {
				cmd.Printf("Stored '%s'\n", args[0])
			}
			return nil
		})
	},
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMap(cmd, func(m *kvmap.Map) error {
			value, ok := m.Lookup(args[0])
			if !ok {
				return fmt.Errorf("key not found: %s", args[0])
			}
			if value == nil {
				cmd.Println("<null>")
				return nil
			}
			cmd.Println(*value)
			return nil
		})
	},
}

var kvDelCmd = &cobra.Command{
	Use:     "del <key>",
	Aliases: []string{"delete", "rm"},
	Short:   "Remove a key",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMap(cmd, func(m *kvmap.Map) error {
			_, existed, err := m.Remove(args[0])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("key not found: %s", args[0])
			}
			cmd.Printf("Deleted '%s'\n", args[0])
			return nil
		})
	},
}

var kvListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		withValues, _ := cmd.Flags().GetBool("values")

		return withMap(cmd, func(m *kvmap.Map) error {
			m.Ascend(func(key string, value *string) bool {
				if !strings.HasPrefix(key, prefix) {
					return true
				}
				switch {
				case !withValues:
					cmd.Println(key)
				case value == nil:
					cmd.Printf("%s\t<null>\n", key)
				default:
					cmd.Printf("%s\t%s\n", key, *value)
				}
				return true
			})
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvPutCmd, kvGetCmd, kvDelCmd, kvListCmd)

	kvListCmd.Flags().String("prefix", "", "Only list keys with this prefix")
	kvListCmd.Flags().Bool("values", false, "Print values next to keys")
}

// withMap opens the configured log as a map for the duration of fn
func withMap(cmd *cobra.Command, fn func(m *kvmap.Map) error) error {
	s := settingsFrom(cmd)

	m, err := kvmap.Open(s.logConfig())
	if err != nil {
		return err
	}

	fnErr := fn(m)
	if err := m.Close(); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}
