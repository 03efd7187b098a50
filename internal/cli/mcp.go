package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	greeniemcp "github.com/valter-silva-au/greenie/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the greenie MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the greenie MCP server on stdio",
	Long: `Start the greenie MCP server on stdio transport.

The server exposes greenie functionality as MCP tools that AI assistants
can call: parse_remarks, classify_grade, error_stats, list_passes,
list_pilots, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := greeniemcp.NewServer(greeniemcp.Options{
			Passes:   Passes,
			Metrics:  MetricsCalc,
			Alerts:   AlertEngine,
			Squadron: squadron(),
			Report:   reportOptions(),
			Version:  appVersion,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
