package models

import "time"

// LogfileState is the processing state of an uploaded set of dcs.log files.
type LogfileState string

const (
	LogfilePending    LogfileState = "pending"
	LogfileInProgress LogfileState = "in_progress"
	LogfileComplete   LogfileState = "complete"
	LogfileFailed     LogfileState = "failed"
)

// Logfile tracks one ingestion run over one or more dcs.log files.
type Logfile struct {
	ID             string       `yaml:"id" json:"id"`
	Squadron       string       `yaml:"squadron" json:"squadron"`
	Files          []string     `yaml:"files" json:"files"`
	CompletedFiles int          `yaml:"completed_files" json:"completed_files"`
	FailedFiles    int          `yaml:"failed_files" json:"failed_files"`
	State          LogfileState `yaml:"state" json:"state"`
	Created        time.Time    `yaml:"created" json:"created"`
	Updated        time.Time    `yaml:"updated" json:"updated"`
}

// CalculatedState derives the state from the file counters. Any failure
// marks the whole run failed.
func (l Logfile) CalculatedState() LogfileState {
	switch {
	case l.FailedFiles > 0:
		return LogfileFailed
	case l.CompletedFiles == len(l.Files):
		return LogfileComplete
	case l.CompletedFiles == 0:
		return LogfilePending
	default:
		return LogfileInProgress
	}
}

// Progress returns the fraction of files that have finished processing.
func (l Logfile) Progress() float64 {
	if len(l.Files) == 0 {
		return 0
	}
	return float64(l.CompletedFiles) / float64(len(l.Files))
}
