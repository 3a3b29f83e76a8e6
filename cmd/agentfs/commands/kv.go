package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentfs/agentfs/internal/cli/output"
	"github.com/agentfs/agentfs/pkg/kvstore"
)

var (
	kvDBPath string
	kvPrefix string
	kvOutput string
)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Inspect and edit the agent key-value store",
	Long: `Inspect and edit the key-value store persisted alongside the filesystem
records.

Values are stored as JSON. "kv set" parses its value argument as JSON and
falls back to storing it as a plain string when it does not parse.

Examples:
  agentfs kv list
  agentfs kv list --prefix task/
  agentfs kv get task/current
  agentfs kv set task/current '{"step": 3}'
  agentfs kv delete task/current`,
}

var kvListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys and values",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(kvOutput)
		if err != nil {
			return err
		}

		kv, closeStore, err := openKV()
		if err != nil {
			return err
		}
		defer closeStore()

		entries, err := kv.List(cmd.Context(), kvPrefix)
		if err != nil {
			return err
		}

		printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
		if format != output.FormatTable {
			return printer.Print(entries)
		}

		table := output.NewTableData("KEY", "VALUE")
		for _, entry := range entries {
			table.AddRow(entry.Key, string(entry.Value))
		}
		return printer.Print(table)
	},
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the JSON value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, closeStore, err := openKV()
		if err != nil {
			return err
		}
		defer closeStore()

		raw, err := kv.GetRaw(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	},
}

var kvSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value under a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, closeStore, err := openKV()
		if err != nil {
			return err
		}
		defer closeStore()

		// Accept raw JSON; treat anything that does not parse as a string.
		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}
		return kv.Set(cmd.Context(), args[0], value)
	},
}

var kvDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, closeStore, err := openKV()
		if err != nil {
			return err
		}
		defer closeStore()

		return kv.Delete(cmd.Context(), args[0])
	},
}

func init() {
	kvCmd.PersistentFlags().StringVar(&kvDBPath, "db", "", "SQLite database path (default: first managed mount in config)")
	kvListCmd.Flags().StringVar(&kvPrefix, "prefix", "", "Restrict listing to keys with this prefix")
	kvListCmd.Flags().StringVarP(&kvOutput, "output", "o", "table", "Output format (table, json, yaml)")

	kvCmd.AddCommand(kvListCmd)
	kvCmd.AddCommand(kvGetCmd)
	kvCmd.AddCommand(kvSetCmd)
	kvCmd.AddCommand(kvDeleteCmd)
}

func openKV() (*kvstore.KV, func(), error) {
	st, err := openStore(kvDBPath)
	if err != nil {
		return nil, nil, err
	}
	kv, err := kvstore.New(st.DB())
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return kv, func() { st.Close() }, nil
}
