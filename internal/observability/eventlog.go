package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Event types written by the ingestion pipeline.
const (
	EventPassRecorded  = "pass.recorded"
	EventFileProcessed = "logfile.file_processed"
	EventFileFailed    = "logfile.file_failed"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

// maxEventSize bounds a single JSONL record when reading the log back.
const maxEventSize = 1024 * 1024

// Event is one ingestion fact: a recorded pass or a processed or failed
// file. Data carries at least "squadron" and "logfile_id".
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// Squadron returns the squadron recorded in the event data, if any.
func (e Event) Squadron() string {
	s, _ := e.Data["squadron"].(string)
	return s
}

// LogfileID returns the ingestion run the event belongs to, if any.
func (e Event) LogfileID() string {
	s, _ := e.Data["logfile_id"].(string)
	return s
}

// EventFilter selects events. Empty fields match everything; Types matches
// any of the listed types.
type EventFilter struct {
	Since     *time.Time
	Until     *time.Time
	Types     []string
	Level     string
	Squadron  string
	LogfileID string
}

func (f EventFilter) matches(e Event) bool {
	switch {
	case f.Since != nil && e.Time.Before(*f.Since):
		return false
	case f.Until != nil && e.Time.After(*f.Until):
		return false
	case len(f.Types) > 0 && !slices.Contains(f.Types, e.Type):
		return false
	case f.Level != "" && e.Level != f.Level:
		return false
	case f.Squadron != "" && e.Squadron() != f.Squadron:
		return false
	case f.LogfileID != "" && e.LogfileID() != f.LogfileID:
		return false
	}
	return true
}

// EventLog is an append-only store of ingestion events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog keeps one JSON object per line. Several greenie processes
// may append to the same file; each record is a single O_APPEND write.
type jsonlEventLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	now  func() time.Time
}

// NewJSONLEventLog opens (or creates) the JSONL event log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{
		path: path,
		file: f,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Write appends event. A zero Time is stamped with the current time, an
// empty Level is derived from the type and an empty Message repeats it.
func (l *jsonlEventLog) Write(event Event) error {
	if event.Type == "" {
		return fmt.Errorf("writing event: type is required")
	}
	if event.Time.IsZero() {
		event.Time = l.now()
	}
	if event.Level == "" {
		event.Level = levelFor(event.Type)
	}
	if event.Message == "" {
		event.Message = event.Type
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read returns the events matching filter in file order. A missing file
// reads as empty.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	err = scanEvents(f, func(e Event) {
		if filter.matches(e) {
			events = append(events, e)
		}
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// scanEvents decodes one event per line. Blank and malformed lines, such as
// a record cut short by a crash, are skipped.
func scanEvents(r io.Reader, fn func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		fn(e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning event log: %w", err)
	}
	return nil
}

func levelFor(eventType string) string {
	if eventType == EventFileFailed {
		return LevelError
	}
	return LevelInfo
}
