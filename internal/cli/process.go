package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/core"
)

var (
	processSquadron string
	processJSON     bool
)

var processCmd = &cobra.Command{
	Use:   "process <dcs.log>...",
	Short: "Ingest dcs.log files and record the graded passes",
	Long: `Read one or more DCS dcs.log files, pair each LSO grade comment with its
landing, and store the resulting passes.

The files are registered as one logfile run and processed in parallel. A
file that cannot be read is marked failed without stopping the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewProcessor == nil {
			return fmt.Errorf("file processor not initialized")
		}

		sq := processSquadron
		if sq == "" {
			sq = squadron()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := NewProcessor(Logger).Process(ctx, sq, args)
		if result == nil {
			return fmt.Errorf("processing logfiles: %w", err)
		}

		out := cmd.OutOrStdout()
		if processJSON {
			if jsonErr := printJSON(out, result); jsonErr != nil {
				return jsonErr
			}
		} else {
			printProcessResult(out, result)
		}

		if err != nil {
			return err
		}
		if result.Logfile.FailedFiles > 0 {
			return errors.New("some files failed to process")
		}
		return nil
	},
}

func printProcessResult(w io.Writer, result *core.ProcessResult) {
	lf := result.Logfile
	fmt.Fprintf(w, "%s %s (%s)\n\n", headerStyle.Render("Logfile"), lf.ID, lf.State)

	rows := make([][]string, 0, len(result.Files))
	for _, f := range result.Files {
		status := "ok"
		if f.Error != "" {
			status = "failed: " + f.Error
		}
		rows = append(rows, []string{
			f.Path,
			strconv.Itoa(f.Stats.Lines),
			strconv.Itoa(f.Stats.Passes),
			strconv.Itoa(f.Stats.Undecodable),
			strconv.Itoa(f.Stats.AIDiscarded),
			strconv.Itoa(f.Invalid),
			status,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"File", "Lines", "Passes", "Undecodable", "AI", "Invalid", "Status"},
		rows,
	))
	fmt.Fprintf(w, "\n%d of %d file(s) completed, %d failed.\n", lf.CompletedFiles, len(lf.Files), lf.FailedFiles)
}

func init() {
	processCmd.Flags().StringVar(&processSquadron, "squadron", "", "Squadron to record the passes for (default from config)")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "Output the run result as JSON")
	rootCmd.AddCommand(processCmd)
}
