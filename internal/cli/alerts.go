package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/observability"
)

var alertsJSON bool

var severityRank = map[observability.AlertSeverity]int{
	observability.SeverityHigh:   0,
	observability.SeverityMedium: 1,
	observability.SeverityLow:    2,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active ingestion and grading alerts",
	Long: `Evaluate alert conditions against the event log, most severe first.

  high    a dcs.log file failed to process
  medium  a squadron's boarding rate is below alerts.min_boarding_rate
  low     more than alerts.max_undecodable_grades grade comments could not be decoded`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank[alerts[i].Severity] < severityRank[alerts[j].Severity]
		})

		out := cmd.OutOrStdout()
		if alertsJSON {
			if alerts == nil {
				alerts = []observability.Alert{}
			}
			return printJSON(out, alerts)
		}
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		rows := make([][]string, len(alerts))
		for i, a := range alerts {
			severity := string(a.Severity)
			rows[i] = []string{
				styleForSeverity(severity).Render(strings.ToUpper(severity)),
				a.Condition,
				a.Message,
			}
		}
		fmt.Fprintln(out, renderTable([]string{"Severity", "Condition", "Message"}, rows))
		fmt.Fprintf(out, "%d active alert(s)\n", len(alerts))
		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output alerts as JSON")
	rootCmd.AddCommand(alertsCmd)
}
