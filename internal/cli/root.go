package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/greenie/internal/logging"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// Global flags.
var (
	verbose   bool
	logFormat string
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "greenie",
	Short: "Greenie board - carrier landing grades from DCS logs",
	Long: `greenie reads DCS World dcs.log files, pairs every LSO grade comment with
the landing it belongs to, and keeps a squadron's greenie board.

It classifies grades, parses LSO remarks into technique errors, and ranks
the errors a pilot makes most often, overall and per approach phase.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := ""
		if Config != nil {
			level = Config.LogLevel
		}
		logger, err := logging.New(logging.Options{
			Level:   level,
			Verbose: verbose,
			Format:  logFormat,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		Logger = logger
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if Logger != nil {
			_ = Logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "greenie %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatJSON, "Log format: json or console")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
