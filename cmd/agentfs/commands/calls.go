package commands

import (
	"github.com/spf13/cobra"

	"github.com/agentfs/agentfs/internal/cli/output"
	"github.com/agentfs/agentfs/internal/cli/timeutil"
	"github.com/agentfs/agentfs/pkg/audit"
)

var (
	callsDBPath string
	callsStatus string
	callsLimit  int
	callsOutput string
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect the tool-call audit log",
	Long: `Inspect the audit log of tool invocations persisted alongside the
filesystem records.

Examples:
  agentfs calls list
  agentfs calls list --status error --limit 10
  agentfs calls list --output json
  agentfs calls show 4f7c2b9e-...`,
}

var callsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded tool calls, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(callsOutput)
		if err != nil {
			return err
		}

		log, closeStore, err := openAudit()
		if err != nil {
			return err
		}
		defer closeStore()

		calls, err := log.List(cmd.Context(), callsStatus, callsLimit)
		if err != nil {
			return err
		}

		printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
		if format != output.FormatTable {
			return printer.Print(calls)
		}

		table := output.NewTableData("ID", "TOOL", "STATUS", "STARTED", "DURATION")
		for _, call := range calls {
			table.AddRow(call.ID, call.Name, call.Status,
				timeutil.FormatMillis(call.StartedAt),
				timeutil.FormatDurationMillis(call.DurationMs))
		}
		return printer.Print(table)
	},
}

var callsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one tool call in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(callsOutput)
		if err != nil {
			return err
		}

		log, closeStore, err := openAudit()
		if err != nil {
			return err
		}
		defer closeStore()

		call, err := log.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if format != output.FormatTable {
			return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(call)
		}

		pairs := [][2]string{
			{"ID", call.ID},
			{"Tool", call.Name},
			{"Status", call.Status},
			{"Started", timeutil.FormatMillis(call.StartedAt)},
		}
		if call.CompletedAt != 0 {
			pairs = append(pairs,
				[2]string{"Completed", timeutil.FormatMillis(call.CompletedAt)},
				[2]string{"Duration", timeutil.FormatDurationMillis(call.DurationMs)},
			)
		}
		if len(call.Parameters) > 0 {
			pairs = append(pairs, [2]string{"Parameters", string(call.Parameters)})
		}
		if len(call.Result) > 0 {
			pairs = append(pairs, [2]string{"Result", string(call.Result)})
		}
		if call.Error != "" {
			pairs = append(pairs, [2]string{"Error", call.Error})
		}
		return output.SimpleTable(cmd.OutOrStdout(), pairs)
	},
}

func init() {
	callsCmd.PersistentFlags().StringVar(&callsDBPath, "db", "", "SQLite database path (default: first managed mount in config)")
	callsCmd.PersistentFlags().StringVarP(&callsOutput, "output", "o", "table", "Output format (table, json, yaml)")
	callsListCmd.Flags().StringVar(&callsStatus, "status", "", "Filter by status (pending, success, error)")
	callsListCmd.Flags().IntVar(&callsLimit, "limit", 50, "Maximum number of calls to list")

	callsCmd.AddCommand(callsListCmd)
	callsCmd.AddCommand(callsShowCmd)
}

func openAudit() (*audit.Log, func(), error) {
	st, err := openStore(callsDBPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := audit.New(st.DB())
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return log, func() { st.Close() }, nil
}
