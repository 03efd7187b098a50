package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/storage"
)

var assignCmd = &cobra.Command{
	Use:   "assign <pass-id> <pilot>",
	Short: "Assign a pass to a pilot",
	Long: `Assign a recorded pass to a pilot of the pass's squadron. The pilot is
created if the squadron has no pilot by that name yet.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Passes == nil {
			return fmt.Errorf("pass store not initialized")
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pass id %q", args[0])
		}
		pilot := strings.TrimSpace(args[1])
		if pilot == "" {
			return fmt.Errorf("pilot name is required")
		}

		pass, err := Passes.AssignPilot(context.Background(), id, pilot)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("pass %d not found", id)
			}
			return fmt.Errorf("assigning pass %d: %w", id, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Pass %d (%s, %s) assigned to %s\n",
			pass.ID, formatTime(pass.Time), pass.Grade, pilot)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assignCmd)
}
