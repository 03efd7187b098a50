package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
)

var codesJSON bool

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List the technique error and phase codes",
	Long: `List the LSO technique error codes greenie recognises in remarks, and
the flight phases in approach order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		errorCodes, phases := core.ErrorCodes(), core.PhaseCodes()

		out := cmd.OutOrStdout()
		if codesJSON {
			return printJSON(out, map[string][]string{
				"error_codes": errorCodes,
				"phases":      phases,
			})
		}

		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Technique errors (%d)", len(errorCodes))))
		for i := 0; i < len(errorCodes); i += 12 {
			end := min(i+12, len(errorCodes))
			fmt.Fprintln(out, "  "+strings.Join(errorCodes[i:end], " "))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render("Phases"))
		fmt.Fprintln(out, "  "+strings.Join(phases, " > "))
		return nil
	},
}

func init() {
	codesCmd.Flags().BoolVar(&codesJSON, "json", false, "Output codes as JSON")
	rootCmd.AddCommand(codesCmd)
}
