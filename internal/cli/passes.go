package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
	"github.com/valter-silva-au/greenie/internal/storage"
	"github.com/valter-silva-au/greenie/pkg/models"
)

var (
	passesPilot      string
	passesGrade      string
	passesSince      string
	passesUnassigned bool
	passesLimit      int
	passesJSON       bool

	deleteUnassigned bool
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List recorded passes",
	Long: `List the passes recorded for the configured squadron, oldest first.

Passes whose pilot could not be identified in the log are shown without a
pilot; use --unassigned to list only those and 'greenie assign' to fix them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Passes == nil {
			return fmt.Errorf("pass store not initialized")
		}

		filter, err := passFilter(passesPilot, passesSince)
		if err != nil {
			return err
		}
		filter.UnassignedOnly = passesUnassigned
		filter.Limit = passesLimit
		if passesGrade != "" {
			g := models.Grade(passesGrade)
			if !g.Valid() {
				return fmt.Errorf("invalid grade %q", passesGrade)
			}
			filter.Grade = g
		}

		passes, err := Passes.ListPasses(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("listing passes: %w", err)
		}

		out := cmd.OutOrStdout()
		if passesJSON {
			if passes == nil {
				passes = []models.Pass{}
			}
			return printJSON(out, passes)
		}
		if len(passes) == 0 {
			fmt.Fprintln(out, "No passes found.")
			return nil
		}
		printPasses(out, passes)
		return nil
	},
}

var passesDeleteCmd = &cobra.Command{
	Use:   "delete [pass-id]",
	Short: "Delete a pass, or every unassigned pass",
	Long: `Delete one recorded pass by ID, or with --unassigned every pass of the
configured squadron that has no pilot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Passes == nil {
			return fmt.Errorf("pass store not initialized")
		}
		if deleteUnassigned == (len(args) == 1) {
			return fmt.Errorf("give either a pass id or --unassigned")
		}

		out := cmd.OutOrStdout()
		if deleteUnassigned {
			n, err := Passes.DeleteUnassigned(context.Background(), squadron())
			if err != nil {
				return fmt.Errorf("deleting unassigned passes: %w", err)
			}
			fmt.Fprintf(out, "Deleted %d unassigned pass(es) from %s\n", n, squadron())
			return nil
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pass id %q", args[0])
		}
		if err := Passes.DeletePass(context.Background(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("pass %d not found", id)
			}
			return fmt.Errorf("deleting pass %d: %w", id, err)
		}
		fmt.Fprintf(out, "Deleted pass %d\n", id)
		return nil
	},
}

// passFilter builds the squadron filter shared by passes and stats.
func passFilter(pilot, since string) (models.PassFilter, error) {
	filter := models.PassFilter{Squadron: squadron(), Pilot: pilot}
	if since != "" {
		t, err := core.ParseSince(time.Now(), since)
		if err != nil {
			return filter, fmt.Errorf("parsing --since: %w", err)
		}
		filter.Since = &t
	}
	return filter, nil
}

func printPasses(w io.Writer, passes []models.Pass) {
	rows := make([][]string, 0, len(passes))
	for _, p := range passes {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			formatTime(p.Time),
			orDash(p.Pilot),
			orDash(p.Aircraft),
			orDash(p.Ship),
			styleForGrade(p.Grade).Render(string(p.Grade)),
			formatScore(p.Score),
			formatTrap(p.Trap),
			formatWire(p.Wire),
			orDash(p.Notes),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Time (UTC)", "Pilot", "Aircraft", "Ship", "Grade", "Score", "Trap", "Wire", "Notes"},
		rows,
	))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d pass(es)", len(passes))))
}

func init() {
	passesCmd.Flags().StringVar(&passesPilot, "pilot", "", "Only passes flown by this pilot")
	passesCmd.Flags().StringVar(&passesGrade, "grade", "", "Only passes with this grade (e.g. ok, bolter)")
	passesCmd.Flags().StringVar(&passesSince, "since", "", "Only passes flown since this age or date (e.g. 7d, 2w, 2024-03-10)")
	passesCmd.Flags().BoolVar(&passesUnassigned, "unassigned", false, "Only passes without a pilot")
	passesCmd.Flags().IntVar(&passesLimit, "limit", 0, "Maximum number of passes to list (0 = all)")
	passesCmd.Flags().BoolVar(&passesJSON, "json", false, "Output passes as JSON")
	passesDeleteCmd.Flags().BoolVar(&deleteUnassigned, "unassigned", false, "Delete every pass without a pilot")
	passesCmd.AddCommand(passesDeleteCmd)
	rootCmd.AddCommand(passesCmd)
}
