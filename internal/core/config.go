// Package core contains the log pipeline for greenie: line and event
// extraction, landing correlation, grade classification, remarks parsing,
// error aggregation, and the file processor that ties them together.
package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/greenie/pkg/models"
)

// ConfigFileName is the name of the YAML configuration file in the base directory.
const ConfigFileName = ".greenieconfig"

// validSquadronPattern matches squadron identifiers such as "VF-84" or "vfa_103".
var validSquadronPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ConfigurationManager defines the interface for loading and validating
// configuration from the global .greenieconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .greenieconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Squadron:          "default",
		StorePath:         "greenie.db",
		EventsPath:        "events.jsonl",
		CorrelationWindow: DefaultCorrelationWindow,
		IngestWorkers:     4,
		LogLevel:          "info",
		Report: models.ReportConfig{
			Top:           DefaultTopN,
			PhaseTop:      DefaultPhaseTopN,
			ExcludePhases: append([]string(nil), DefaultExcludedPhases...),
		},
		Watch: models.WatchConfig{
			Pattern:  "*.log",
			Debounce: 2 * time.Second,
		},
		Alerts: models.AlertConfig{
			MaxUndecodableGrades: 10,
			MinBoardingRate:      0.5,
		},
	}
}

// LoadGlobalConfig reads the .greenieconfig file from the base path using Viper.
// If the file does not exist, sensible defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("squadron", cfg.Squadron)
	v.SetDefault("store.path", cfg.StorePath)
	v.SetDefault("events.path", cfg.EventsPath)
	v.SetDefault("correlation.window", cfg.CorrelationWindow)
	v.SetDefault("ingest.workers", cfg.IngestWorkers)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("report.top", cfg.Report.Top)
	v.SetDefault("report.phase_top", cfg.Report.PhaseTop)
	v.SetDefault("report.exclude_phases", cfg.Report.ExcludePhases)
	v.SetDefault("watch.pattern", cfg.Watch.Pattern)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("alerts.max_undecodable_grades", cfg.Alerts.MaxUndecodableGrades)
	v.SetDefault("alerts.min_boarding_rate", cfg.Alerts.MinBoardingRate)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	// Map nested YAML keys to flat GlobalConfig fields.
	cfg.Squadron = v.GetString("squadron")
	cfg.StorePath = v.GetString("store.path")
	cfg.EventsPath = v.GetString("events.path")
	cfg.CorrelationWindow = v.GetDuration("correlation.window")
	cfg.IngestWorkers = v.GetInt("ingest.workers")
	cfg.LogLevel = v.GetString("log.level")
	cfg.Report.Top = v.GetInt("report.top")
	cfg.Report.PhaseTop = v.GetInt("report.phase_top")
	cfg.Watch.Pattern = v.GetString("watch.pattern")
	cfg.Watch.Debounce = v.GetDuration("watch.debounce")
	cfg.Alerts.MaxUndecodableGrades = v.GetInt("alerts.max_undecodable_grades")
	cfg.Alerts.MinBoardingRate = v.GetFloat64("alerts.min_boarding_rate")

	// An explicit empty list means "exclude nothing"; keep it distinct from unset.
	if v.IsSet("report.exclude_phases") {
		cfg.Report.ExcludePhases = v.GetStringSlice("report.exclude_phases")
		if cfg.Report.ExcludePhases == nil {
			cfg.Report.ExcludePhases = []string{}
		}
	}

	return cfg, nil
}

// ValidateConfig checks the provided configuration for invalid values and
// returns a clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validSquadronPattern.MatchString(cfg.Squadron) {
		errs = append(errs, fmt.Sprintf(
			"squadron %q is invalid, must match [A-Za-z0-9][A-Za-z0-9_-]{0,31}",
			cfg.Squadron,
		))
	}

	if cfg.StorePath == "" {
		errs = append(errs, "store.path must not be empty")
	}

	if cfg.EventsPath == "" {
		errs = append(errs, "events.path must not be empty")
	}

	if cfg.CorrelationWindow <= 0 {
		errs = append(errs, fmt.Sprintf("correlation.window must be positive, got %s", cfg.CorrelationWindow))
	}

	if cfg.IngestWorkers < 1 || cfg.IngestWorkers > 64 {
		errs = append(errs, fmt.Sprintf("ingest.workers %d is invalid, must be between 1 and 64", cfg.IngestWorkers))
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Report.Top < 0 {
		errs = append(errs, fmt.Sprintf("report.top must be non-negative, got %d", cfg.Report.Top))
	}

	if cfg.Report.PhaseTop < 0 {
		errs = append(errs, fmt.Sprintf("report.phase_top must be non-negative, got %d", cfg.Report.PhaseTop))
	}

	known := make(map[string]bool)
	for _, p := range PhaseCodes() {
		known[p] = true
	}
	for _, p := range cfg.Report.ExcludePhases {
		if !known[p] {
			errs = append(errs, fmt.Sprintf("report.exclude_phases entry %q is not a known phase", p))
		}
	}

	if cfg.Watch.Pattern == "" {
		errs = append(errs, "watch.pattern must not be empty")
	} else if _, err := filepath.Match(cfg.Watch.Pattern, "probe.log"); err != nil {
		errs = append(errs, fmt.Sprintf("watch.pattern %q is invalid: %v", cfg.Watch.Pattern, err))
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("watch.debounce must be non-negative, got %s", cfg.Watch.Debounce))
	}

	if cfg.Alerts.MaxUndecodableGrades < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_undecodable_grades must be non-negative, got %d", cfg.Alerts.MaxUndecodableGrades))
	}

	if cfg.Alerts.MinBoardingRate < 0 || cfg.Alerts.MinBoardingRate > 1 {
		errs = append(errs, fmt.Sprintf("alerts.min_boarding_rate %.2f is invalid, must be between 0 and 1", cfg.Alerts.MinBoardingRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("global config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
