package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/pkg/models"
)

var pilotsJSON bool

type pilotSummary struct {
	Name         string   `json:"name"`
	Passes       int      `json:"passes"`
	AverageScore *float64 `json:"average_score,omitempty"`
}

var pilotsCmd = &cobra.Command{
	Use:   "pilots",
	Short: "List the squadron's pilots",
	Long: `List the pilots of the configured squadron with how many passes each has
flown and their average score.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Passes == nil {
			return fmt.Errorf("pass store not initialized")
		}

		ctx := context.Background()
		pilots, err := Passes.ListPilots(ctx, squadron())
		if err != nil {
			return fmt.Errorf("listing pilots: %w", err)
		}
		passes, err := Passes.ListPasses(ctx, models.PassFilter{Squadron: squadron()})
		if err != nil {
			return fmt.Errorf("listing passes: %w", err)
		}
		summaries := summarizePilots(pilots, passes)

		out := cmd.OutOrStdout()
		if pilotsJSON {
			return printJSON(out, summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No pilots found.")
			return nil
		}

		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{s.Name, strconv.Itoa(s.Passes), formatScore(s.AverageScore)})
		}
		fmt.Fprintln(out, renderTable([]string{"Pilot", "Passes", "Avg score"}, rows))
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d pilot(s) in %s", len(summaries), squadron())))
		return nil
	},
}

// summarizePilots counts passes per pilot and averages the scored ones.
// Pilots keep the store's order.
func summarizePilots(pilots []models.Pilot, passes []models.Pass) []pilotSummary {
	type tally struct {
		passes, scored int
		total          float64
	}
	byName := make(map[string]*tally, len(pilots))
	for _, p := range pilots {
		byName[p.Name] = &tally{}
	}
	for _, p := range passes {
		if p.Pilot == nil {
			continue
		}
		t, ok := byName[*p.Pilot]
		if !ok {
			continue
		}
		t.passes++
		if p.Score != nil {
			t.scored++
			t.total += *p.Score
		}
	}

	out := make([]pilotSummary, 0, len(pilots))
	for _, p := range pilots {
		t := byName[p.Name]
		s := pilotSummary{Name: p.Name, Passes: t.passes}
		if t.scored > 0 {
			avg := t.total / float64(t.scored)
			s.AverageScore = &avg
		}
		out = append(out, s)
	}
	return out
}

func init() {
	pilotsCmd.Flags().BoolVar(&pilotsJSON, "json", false, "Output pilots as JSON")
	rootCmd.AddCommand(pilotsCmd)
}
