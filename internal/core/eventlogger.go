package core

// Event types written by core services.
const (
	EventPassRecorded  = "pass.recorded"
	EventFileProcessed = "logfile.file_processed"
	EventFileFailed    = "logfile.file_failed"
)

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
