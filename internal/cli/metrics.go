package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
	"github.com/valter-silva-au/greenie/internal/observability"
	"github.com/valter-silva-au/greenie/pkg/models"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display ingestion and grading metrics",
	Long: `Display metrics derived from the event log for the configured squadron.

Counts cover processed and failed files, recorded passes by grade and pilot,
unassigned and invalid passes, undecodable grades, discarded AI comments and
the boarding rate. --since takes an age (7d, 2w, 24h) or a date (2024-03-10)
and refers to when greenie ingested the events.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		since := metricsSince
		if since == "" {
			since = "7d"
		}
		sinceTime, err := core.ParseSince(time.Now(), since)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		m, err := MetricsCalc.Calculate(sinceTime, squadron())
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			return printJSON(out, m)
		}

		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Metrics for %s since %s", squadron(), sinceTime.Format(time.DateOnly))))
		fmt.Fprintln(out, renderTable([]string{"Metric", "Value"}, metricRows(m)))

		if len(m.PassesByGrade) > 0 {
			fmt.Fprintln(out, headerStyle.Render("Passes by grade"))
			fmt.Fprintln(out, renderTable([]string{"Grade", "Passes"}, countRows(m.PassesByGrade, func(g string) string {
				return styleForGrade(models.Grade(g)).Render(g)
			})))
		}
		if len(m.PassesByPilot) > 0 {
			fmt.Fprintln(out, headerStyle.Render("Passes by pilot"))
			fmt.Fprintln(out, renderTable([]string{"Pilot", "Passes"}, countRows(m.PassesByPilot, nil)))
		}
		if m.OldestEvent != nil && m.NewestEvent != nil {
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d events from %s to %s",
				m.EventCount, formatTime(*m.OldestEvent), formatTime(*m.NewestEvent))))
		}
		return nil
	},
}

func metricRows(m *observability.Metrics) [][]string {
	itoa := strconv.Itoa
	return [][]string{
		{"Files processed", itoa(m.FilesProcessed)},
		{"Files failed", itoa(m.FilesFailed)},
		{"Passes recorded", itoa(m.PassesRecorded)},
		{"Unassigned passes", itoa(m.UnassignedPasses)},
		{"Invalid passes", itoa(m.InvalidPasses)},
		{"Undecodable grades", itoa(m.Undecodable)},
		{"AI comments discarded", itoa(m.AIDiscarded)},
		{"Traps", itoa(m.Traps)},
		{"Boarding rate", formatRate(m.BoardingRate)},
	}
}

// countRows lists counts most frequent first; label styles the key.
func countRows(counts map[string]int, label func(string) string) [][]string {
	keys := sortedKeys(counts)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		name := k
		if label != nil {
			name = label(k)
		}
		rows[i] = []string{name, strconv.Itoa(counts[k])}
	}
	return rows
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Events ingested since this age or date (e.g. 7d, 24h, 2024-03-10)")
	rootCmd.AddCommand(metricsCmd)
}
