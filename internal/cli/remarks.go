package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
)

var remarksJSON bool

var remarksCmd = &cobra.Command{
	Use:   "remarks <remarks>...",
	Short: "Parse LSO remarks into technique errors",
	Long: `Parse one or more LSO remarks strings and list the technique errors they
contain, for example:

  greenie remarks "GRADE:C : (DRX)  _LULX_  _FX_  WO(AFU)IC"

Each argument is parsed separately; errors are listed in order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		errs := core.RemarksErrors(args)

		out := cmd.OutOrStdout()
		if remarksJSON {
			return printJSON(out, errs)
		}
		if len(errs) == 0 {
			fmt.Fprintln(out, "No technique errors found.")
			return nil
		}

		rows := make([][]string, 0, len(errs))
		for _, e := range errs {
			rows = append(rows, []string{
				e.Code,
				string(e.Intensity),
				phaseLabel(e.Phase),
				formatModifiers(e.Modifiers),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Code", "Intensity", "Phase", "Modifiers"}, rows))
		return nil
	},
}

func init() {
	remarksCmd.Flags().BoolVar(&remarksJSON, "json", false, "Output errors as JSON")
	rootCmd.AddCommand(remarksCmd)
}
