package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valter-silva-au/greenie/internal/integration"
)

var (
	watchSquadron string
	watchPattern  string
	watchDebounce time.Duration
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a drop folder and ingest new dcs.log files",
	Long: `Watch a directory for dcs.log files. Once a matching file has stopped
changing for the debounce period it is processed as if passed to
'greenie process'. Files that settle together are ingested as one run.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if NewProcessor == nil {
			return fmt.Errorf("file processor not initialized")
		}

		sq := watchSquadron
		if sq == "" {
			sq = squadron()
		}
		cfg := integration.DropWatcherConfig{
			Dir:          args[0],
			Pattern:      watchPattern,
			Debounce:     watchDebounce,
			ScanExisting: watchExisting,
		}
		if Config != nil {
			if cfg.Pattern == "" {
				cfg.Pattern = Config.Watch.Pattern
			}
			if cfg.Debounce == 0 {
				cfg.Debounce = Config.Watch.Debounce
			}
		}

		processor := NewProcessor(Logger)
		handle := func(ctx context.Context, paths []string) error {
			result, err := processor.Process(ctx, sq, paths)
			if result != nil {
				Logger.Info("ingested dropped files",
					zap.String("logfile", result.Logfile.ID),
					zap.String("state", string(result.Logfile.State)))
			}
			return err
		}

		watcher, err := integration.NewDropWatcher(cfg, handle, Logger)
		if err != nil {
			return fmt.Errorf("creating drop watcher: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting drop watcher: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for %s (Ctrl+C to stop)\n", cfg.Dir, cfg.Pattern)

		<-ctx.Done()
		return watcher.Stop()
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSquadron, "squadron", "", "Squadron to record the passes for (default from config)")
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "", "Glob for file names to ingest (default from config)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before a file is ingested (default from config)")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Also ingest matching files already in the folder")
	rootCmd.AddCommand(watchCmd)
}
