// Package internal provides the App struct that wires all components of
// greenie together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valter-silva-au/greenie/internal/cli"
	"github.com/valter-silva-au/greenie/internal/core"
	"github.com/valter-silva-au/greenie/internal/observability"
	"github.com/valter-silva-au/greenie/internal/storage"
	"github.com/valter-silva-au/greenie/pkg/models"
)

// App holds all service dependencies for greenie.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	Passes   storage.PassStore
	Logfiles storage.LogfileRegistry

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components of greenie. basePath is the
// directory holding .greenieconfig, the pass database and the event log.
func NewApp(basePath string) (*App, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory %s: %w", basePath, err)
	}
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(globalCfg); err != nil {
		return nil, err
	}
	app.Config = globalCfg

	// --- Storage layer ---
	storePath := app.resolve(globalCfg.StorePath)
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	app.Passes, err = storage.OpenPassStore(storePath)
	if err != nil {
		return nil, err
	}
	app.Logfiles = storage.NewLogfileRegistry(basePath)
	if err := app.Logfiles.Load(); err != nil {
		_ = app.Passes.Close()
		return nil, fmt.Errorf("loading logfile registry: %w", err)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(app.resolve(globalCfg.EventsPath))
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		if globalCfg.Alerts.MaxUndecodableGrades > 0 {
			thresholds.MaxUndecodableGrades = globalCfg.Alerts.MaxUndecodableGrades
		}
		if globalCfg.Alerts.MinBoardingRate > 0 {
			thresholds.MinBoardingRate = globalCfg.Alerts.MinBoardingRate
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Core services ---
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}
	recorder := &passRecorderAdapter{store: app.Passes}
	procCfg := core.ProcessorConfig{
		Window:  globalCfg.CorrelationWindow,
		Workers: globalCfg.IngestWorkers,
	}
	registry := app.Logfiles

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = globalCfg
	cli.Passes = app.Passes
	cli.Logfiles = app.Logfiles
	cli.NewProcessor = func(logger *zap.Logger) core.FileProcessor {
		return core.NewFileProcessor(recorder, registry, evtAdapter, procCfg, logger)
	}

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

// resolve joins a relative configured path onto the base directory.
func (a *App) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.BasePath, p)
}

// Close releases the pass database and the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	var firstErr error
	if a.Passes != nil {
		if err := a.Passes.Close(); err != nil {
			firstErr = err
		}
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the greenie data directory. It checks the
// GREENIE_HOME env var, then falls back to ~/.greenie.
func ResolveBasePath() string {
	if home := os.Getenv("GREENIE_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".greenie")
	}
	return filepath.Join(home, ".greenie")
}

// --- Adapters ---

// passRecorderAdapter adapts storage.PassStore to core.PassRecorder.
type passRecorderAdapter struct {
	store storage.PassStore
}

func (a *passRecorderAdapter) RecordPass(ctx context.Context, p *models.Pass) error {
	return a.store.SavePass(ctx, p)
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

// LogEvent leaves time, level and message to the event log's defaults.
func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{Type: eventType, Data: data})
}
