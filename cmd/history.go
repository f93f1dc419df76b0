package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/esicorp/securetransfer/internal/audit"
	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	historyLimit     int
	historyReverse   bool
	historyUser      string
	historyOperation string
	historySince     string
	historyUntil     string
	historyJSON      bool
	historyClearYes  bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "number", "n", 0, "limit number of entries shown")
	historyCmd.Flags().BoolVar(&historyReverse, "reverse", false, "show most recent entries first")
	historyCmd.Flags().StringVar(&historyUser, "user", "", "filter by local user name")
	historyCmd.Flags().StringVar(&historyOperation, "operation", "", "filter by operation type (comma-separated)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "show entries after date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON array")

	historyClearCmd.Flags().BoolVarP(&historyClearYes, "yes", "y", false, "skip the confirmation prompt")
	historyCmd.AddCommand(historyClearCmd)
}

// resetHistoryCommandState resets the history command's global state for testing.
func resetHistoryCommandState() {
	historyLimit = 0
	historyReverse = false
	historyUser = ""
	historyOperation = ""
	historySince = ""
	historyUntil = ""
	historyJSON = false
	historyClearYes = false
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Shows the transfer audit log",
	Long: `Displays every send, receive, decrypt and batch operation recorded on
this machine, oldest first.

Examples:
  securetransfer history                       # Full log
  securetransfer history -n 10 --reverse       # Ten most recent entries
  securetransfer history --operation send,receive
  securetransfer history --since 2024-01-01
  securetransfer history clear                 # Remove stored sessions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting history command")

		result, err := workflows.History(cmd.Context(), env, workflows.HistoryOptions{
			Limit:      historyLimit,
			Reverse:    historyReverse,
			User:       historyUser,
			Operations: historyOperation,
			Since:      historySince,
			Until:      historyUntil,
		})
		if err != nil {
			fmt.Println(failureMessage(err))
			return &ReportedError{Err: err}
		}

		Logger.Debugf("Read %d entries, %d after filtering", result.TotalEntriesBeforeFilter, len(result.Entries))

		if historyJSON {
			return outputHistoryJSON(result.Entries)
		}

		switch {
		case result.TotalEntriesBeforeFilter == 0:
			fmt.Println(ui.Info.Sprint("ℹ") + " No transfers recorded yet.")
		case len(result.Entries) == 0:
			fmt.Println(ui.Info.Sprint("ℹ") + " No entries match the filters.")
		default:
			outputHistory(result.Entries)
		}

		fmt.Printf("\n%d sessions stored in %s\n", len(result.Sessions), ui.Path.Sprint(env.Settings.TransfersPath))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deletes every stored transfer session",
	Long: `Removes the session directories under the transfers folder, including
received envelopes and extracted files. The audit log is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting history clear command")

		if !historyClearYes && !confirm("Delete every session in "+env.Settings.TransfersPath+"?") {
			fmt.Println(ui.Arrow() + " Nothing was deleted")
			return nil
		}

		result, err := workflows.ClearHistory(cmd.Context(), env)
		if err != nil {
			fmt.Println(failureMessage(err))
			return &ReportedError{Err: err}
		}

		fmt.Printf("%s Removed %d sessions\n", ui.Check(), result.Removed)
		return nil
	},
}

func outputHistoryJSON(entries []audit.Entry) error {
	if entries == nil {
		entries = []audit.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entries to JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func outputHistory(entries []audit.Entry) {
	for _, e := range entries {
		result := ui.Success.Sprint(e.Result)
		if e.Result != audit.ResultOK {
			result = ui.Error.Sprint(e.Result)
		}
		fmt.Printf("%-19s  %-12s  %-15s  %-6s  %s\n",
			workflows.FormatDateTime(e.Timestamp), e.User, e.Operation, result, workflows.FormatDetails(e))
	}
}
