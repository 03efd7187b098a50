package observability

import (
	"fmt"
	"time"
)

// foulDeckWaveoff is excluded from boarding rates; the deck, not the
// pilot, caused the waveoff.
const foulDeckWaveoff = "foul_deck_waveoff"

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	FilesProcessed   int            `json:"files_processed"`
	FilesFailed      int            `json:"files_failed"`
	PassesRecorded   int            `json:"passes_recorded"`
	PassesByGrade    map[string]int `json:"passes_by_grade"`
	PassesByPilot    map[string]int `json:"passes_by_pilot"`
	UnassignedPasses int            `json:"unassigned_passes"`
	Undecodable      int            `json:"undecodable_grades"`
	AIDiscarded      int            `json:"ai_discarded"`
	InvalidPasses    int            `json:"invalid_passes"`
	Traps            int            `json:"traps"`
	BoardingRate     *float64       `json:"boarding_rate,omitempty"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	// Calculate aggregates events since the given time. An empty squadron
	// includes every squadron.
	Calculate(since time.Time, squadron string) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time, squadron string) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since, Squadron: squadron})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		PassesByGrade: make(map[string]int),
		PassesByPilot: make(map[string]int),
	}

	m.EventCount = len(events)
	rated := 0

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventPassRecorded:
			m.PassesRecorded++
			grade, _ := event.Data["grade"].(string)
			if grade != "" {
				m.PassesByGrade[grade]++
			}
			if pilot, ok := event.Data["pilot"].(string); ok && pilot != "" {
				m.PassesByPilot[pilot]++
			} else {
				m.UnassignedPasses++
			}
			if trap, ok := event.Data["trap"].(bool); ok && grade != foulDeckWaveoff {
				rated++
				if trap {
					m.Traps++
				}
			}
		case EventFileProcessed:
			m.FilesProcessed++
			m.Undecodable += dataInt(event.Data, "undecodable")
			m.AIDiscarded += dataInt(event.Data, "ai_discarded")
			m.InvalidPasses += dataInt(event.Data, "invalid")
		case EventFileFailed:
			m.FilesFailed++
		}
	}

	if rated > 0 {
		rate := float64(m.Traps) / float64(rated)
		m.BoardingRate = &rate
	}

	return m, nil
}

// dataInt reads a numeric event field. Values decoded from JSON arrive as
// float64; values from events built in memory keep their Go type.
func dataInt(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
