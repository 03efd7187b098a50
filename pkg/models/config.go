package models

import "time"

// ReportConfig holds defaults for error-statistics reports.
type ReportConfig struct {
	Top           int      `yaml:"top" mapstructure:"top"`
	PhaseTop      int      `yaml:"phase_top" mapstructure:"phase_top"`
	ExcludePhases []string `yaml:"exclude_phases" mapstructure:"exclude_phases"`
}

// WatchConfig holds settings for the drop-folder watcher.
type WatchConfig struct {
	Pattern  string        `yaml:"pattern" mapstructure:"pattern"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// AlertConfig holds alert thresholds read from the config file.
type AlertConfig struct {
	MaxUndecodableGrades int     `yaml:"max_undecodable_grades" mapstructure:"max_undecodable_grades"`
	MinBoardingRate      float64 `yaml:"min_boarding_rate" mapstructure:"min_boarding_rate"`
}

// GlobalConfig holds system-wide settings read from .greenieconfig via Viper.
type GlobalConfig struct {
	Squadron          string        `yaml:"squadron" mapstructure:"squadron"`
	StorePath         string        `yaml:"store_path" mapstructure:"store_path"`
	EventsPath        string        `yaml:"events_path" mapstructure:"events_path"`
	CorrelationWindow time.Duration `yaml:"correlation_window" mapstructure:"correlation_window"`
	IngestWorkers     int           `yaml:"ingest_workers" mapstructure:"ingest_workers"`
	LogLevel          string        `yaml:"log_level" mapstructure:"log_level"`
	Report            ReportConfig  `yaml:"report" mapstructure:"report"`
	Watch             WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Alerts            AlertConfig   `yaml:"alerts" mapstructure:"alerts"`
}
