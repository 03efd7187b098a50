package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
)

var gradeJSON bool

var gradeCmd = &cobra.Command{
	Use:   "grade <comment>",
	Short: "Classify an LSO grade comment",
	Long: `Classify LSO grade shorthand such as "GRADE:OK : WIRE# 3" and show the
grade, its default score, whether it counts as a trap and the wire caught.

Multiple arguments are joined with spaces, so quoting is optional.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		result, err := core.ClassifyGrade(text)
		if err != nil {
			if errors.Is(err, core.ErrUndecodableGrade) {
				return fmt.Errorf("cannot decode grade %q", text)
			}
			return fmt.Errorf("classifying grade: %w", err)
		}

		out := cmd.OutOrStdout()
		if gradeJSON {
			return printJSON(out, map[string]any{
				"grade": result.Grade,
				"score": result.Score,
				"trap":  result.Trap,
				"wire":  result.Wire,
			})
		}

		trap := result.Trap
		fmt.Fprintf(out, "  %-8s %s\n", "Grade:", styleForGrade(result.Grade).Render(string(result.Grade)))
		fmt.Fprintf(out, "  %-8s %s\n", "Score:", formatScore(result.Score))
		fmt.Fprintf(out, "  %-8s %s\n", "Trap:", formatTrap(&trap))
		fmt.Fprintf(out, "  %-8s %s\n", "Wire:", formatWire(result.Wire))
		return nil
	},
}

func init() {
	gradeCmd.Flags().BoolVar(&gradeJSON, "json", false, "Output the classification as JSON")
	rootCmd.AddCommand(gradeCmd)
}
