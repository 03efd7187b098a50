package cli

import (
	"go.uber.org/zap"

	"github.com/valter-silva-au/greenie/internal/core"
	"github.com/valter-silva-au/greenie/internal/observability"
	"github.com/valter-silva-au/greenie/internal/storage"
	"github.com/valter-silva-au/greenie/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Config   *models.GlobalConfig

	Passes   storage.PassStore
	Logfiles storage.LogfileRegistry

	// NewProcessor builds the file processor with the logger configured
	// from the command-line flags, which are only known once cobra runs.
	NewProcessor func(logger *zap.Logger) core.FileProcessor
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
)

// Logger is built by the root command before any subcommand runs.
var Logger = zap.NewNop()

// squadron returns the configured squadron, or "default" before app.go has run.
func squadron() string {
	if Config != nil && Config.Squadron != "" {
		return Config.Squadron
	}
	return "default"
}

// reportOptions returns the configured report sizes.
func reportOptions() core.ReportOptions {
	if Config == nil {
		return core.DefaultReportOptions()
	}
	return core.ReportOptions{
		Top:           Config.Report.Top,
		PhaseTop:      Config.Report.PhaseTop,
		ExcludePhases: Config.Report.ExcludePhases,
	}
}
