package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
	"github.com/valter-silva-au/greenie/pkg/models"
)

var (
	statsPilot         string
	statsSince         string
	statsTop           int
	statsPhaseTop      int
	statsExcludePhases []string
	statsJSON          bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Rank the technique errors in recorded passes",
	Long: `Parse the LSO remarks of recorded passes and rank the technique errors by
weighted score (high intensity counts 2, medium 1, low 0.5).

The report shows the grade distribution, the average score, the boarding
rate, the top errors overall and the top errors in each approach phase.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Passes == nil {
			return fmt.Errorf("pass store not initialized")
		}

		filter, err := passFilter(statsPilot, statsSince)
		if err != nil {
			return err
		}
		passes, err := Passes.ListPasses(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("listing passes: %w", err)
		}

		opts := reportOptions()
		if cmd.Flags().Changed("top") {
			opts.Top = statsTop
		}
		if cmd.Flags().Changed("phase-top") {
			opts.PhaseTop = statsPhaseTop
		}
		if cmd.Flags().Changed("exclude-phase") {
			opts.ExcludePhases = statsExcludePhases
		}
		if opts.Top < 0 || opts.PhaseTop < 0 {
			return fmt.Errorf("--top and --phase-top must not be negative")
		}

		report := core.BuildErrorReport(passes, opts)

		out := cmd.OutOrStdout()
		if statsJSON {
			return printJSON(out, report)
		}
		printReport(out, report, statsPilot)
		return nil
	},
}

func printReport(w io.Writer, report core.ErrorReport, pilot string) {
	title := "Squadron " + squadron()
	if pilot != "" {
		title = "Pilot " + pilot
	}
	fmt.Fprintln(w, headerStyle.Render(title))

	if report.PassCount == 0 {
		fmt.Fprintln(w, "No passes found.")
		return
	}

	avg := "n/a"
	if report.AverageScore != nil {
		avg = strconv.FormatFloat(*report.AverageScore, 'f', 2, 64)
	}
	fmt.Fprintf(w, "  %-16s %d\n", "Passes:", report.PassCount)
	fmt.Fprintf(w, "  %-16s %s\n", "Average score:", avg)
	fmt.Fprintf(w, "  %-16s %s\n\n", "Boarding rate:", formatRate(report.BoardingRate))

	var gradeRows [][]string
	for _, g := range models.AllGrades() {
		if n := report.GradeCounts[g]; n > 0 {
			gradeRows = append(gradeRows, []string{styleForGrade(g).Render(string(g)), strconv.Itoa(n)})
		}
	}
	fmt.Fprintln(w, renderTable([]string{"Grade", "Passes"}, gradeRows))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Top errors"))
	if len(report.Top) == 0 {
		fmt.Fprintln(w, "  No technique errors in the remarks.")
		return
	}
	fmt.Fprintln(w, renderTable([]string{"Code", "Score", "Count"}, aggregatedRows(report.Top)))

	if len(report.ByPhase) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("By phase"))
	var phaseRows [][]string
	for _, ps := range report.ByPhase {
		for _, row := range aggregatedRows(ps.Errors) {
			phaseRows = append(phaseRows, append([]string{phaseLabel(ps.Phase)}, row...))
		}
	}
	fmt.Fprintln(w, renderTable([]string{"Phase", "Code", "Score", "Count"}, phaseRows))
}

func aggregatedRows(errs []models.AggregatedError) [][]string {
	rows := make([][]string, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []string{
			e.Code,
			strconv.FormatFloat(e.Score, 'f', 1, 64),
			strconv.Itoa(e.Count),
		})
	}
	return rows
}

// sortedKeys returns the keys of m ordered by value descending, then name.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func init() {
	statsCmd.Flags().StringVar(&statsPilot, "pilot", "", "Only passes flown by this pilot")
	statsCmd.Flags().StringVar(&statsSince, "since", "", "Only passes flown since this age or date (e.g. 7d, 2w, 2024-03-10)")
	statsCmd.Flags().IntVar(&statsTop, "top", core.DefaultTopN, "Number of errors to rank overall (default from config)")
	statsCmd.Flags().IntVar(&statsPhaseTop, "phase-top", core.DefaultPhaseTopN, "Number of errors to rank per phase (default from config)")
	statsCmd.Flags().StringSliceVar(&statsExcludePhases, "exclude-phase", nil, "Phases to leave out of the per-phase table (default from config)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output the report as JSON")
	rootCmd.AddCommand(statsCmd)
}
