package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/storage"
	"github.com/valter-silva-au/greenie/pkg/models"
)

var (
	logfilesState string
	logfilesAll   bool
	logfilesJSON  bool
)

var logfilesCmd = &cobra.Command{
	Use:   "logfiles",
	Short: "List logfile ingestion runs",
	Long: `List the ingestion runs recorded by 'greenie process' and 'greenie watch',
newest first, with how many of their files completed or failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Logfiles == nil {
			return fmt.Errorf("logfile registry not initialized")
		}

		filter := storage.LogfileFilter{}
		if !logfilesAll {
			filter.Squadron = squadron()
		}
		if logfilesState != "" {
			state := models.LogfileState(logfilesState)
			switch state {
			case models.LogfilePending, models.LogfileInProgress, models.LogfileComplete, models.LogfileFailed:
			default:
				return fmt.Errorf("invalid state %q: must be one of pending, in_progress, complete, failed", logfilesState)
			}
			filter.States = []models.LogfileState{state}
		}

		logfiles, err := Logfiles.List(filter)
		if err != nil {
			return fmt.Errorf("listing logfiles: %w", err)
		}

		out := cmd.OutOrStdout()
		if logfilesJSON {
			if logfiles == nil {
				logfiles = []models.Logfile{}
			}
			return printJSON(out, logfiles)
		}
		if len(logfiles) == 0 {
			fmt.Fprintln(out, "No logfiles recorded.")
			return nil
		}

		rows := make([][]string, 0, len(logfiles))
		for _, lf := range logfiles {
			rows = append(rows, []string{
				lf.ID,
				lf.Squadron,
				formatTime(lf.Created),
				string(lf.State),
				fmt.Sprintf("%d/%d", lf.CompletedFiles, len(lf.Files)),
				strconv.Itoa(lf.FailedFiles),
				strings.Join(lf.Files, "\n"),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"ID", "Squadron", "Created (UTC)", "State", "Completed", "Failed", "Files"},
			rows,
		))
		return nil
	},
}

func init() {
	logfilesCmd.Flags().StringVar(&logfilesState, "state", "", "Only runs in this state (pending, in_progress, complete, failed)")
	logfilesCmd.Flags().BoolVar(&logfilesAll, "all", false, "Include every squadron, not just the configured one")
	logfilesCmd.Flags().BoolVar(&logfilesJSON, "json", false, "Output runs as JSON")
	rootCmd.AddCommand(logfilesCmd)
}
