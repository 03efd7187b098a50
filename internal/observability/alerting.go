package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	// Lookback limits every check to events newer than now minus Lookback.
	Lookback             time.Duration `yaml:"lookback" json:"lookback"`
	MaxUndecodableGrades int           `yaml:"max_undecodable_grades" json:"max_undecodable_grades"`
	MinBoardingRate      float64       `yaml:"min_boarding_rate" json:"min_boarding_rate"`
	// MinRatedPasses is the sample size below which no boarding-rate alert fires.
	MinRatedPasses int `yaml:"min_rated_passes" json:"min_rated_passes"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		Lookback:             7 * 24 * time.Hour,
		MaxUndecodableGrades: 10,
		MinBoardingRate:      0.5,
		MinRatedPasses:       5,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads events and checks all alert conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	since := now.Add(-ae.thresholds.Lookback)
	var alerts []Alert

	failedAlerts, err := ae.checkFailedFiles(now, since)
	if err != nil {
		return nil, fmt.Errorf("checking failed files: %w", err)
	}
	alerts = append(alerts, failedAlerts...)

	rateAlerts, err := ae.checkBoardingRate(now, since)
	if err != nil {
		return nil, fmt.Errorf("checking boarding rate: %w", err)
	}
	alerts = append(alerts, rateAlerts...)

	undecodableAlerts, err := ae.checkUndecodableGrades(now, since)
	if err != nil {
		return nil, fmt.Errorf("checking undecodable grades: %w", err)
	}
	alerts = append(alerts, undecodableAlerts...)

	return alerts, nil
}

// checkFailedFiles raises one alert per file that could not be ingested.
func (ae *alertEngine) checkFailedFiles(now, since time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Types: []string{EventFileFailed}, Since: &since})
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	for _, event := range events {
		logfileID, _ := event.Data["logfile_id"].(string)
		file, _ := event.Data["file"].(string)
		reason, _ := event.Data["error"].(string)
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("failed-%s-%s", logfileID, file),
			Condition:   "logfile_failed",
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("file %s in logfile %s failed: %s", file, logfileID, reason),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

// checkBoardingRate alerts per squadron when the share of trapped passes
// falls below the threshold over a large enough sample.
func (ae *alertEngine) checkBoardingRate(now, since time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Types: []string{EventPassRecorded}, Since: &since})
	if err != nil {
		return nil, err
	}

	type tally struct{ rated, traps int }
	squadrons := make(map[string]*tally)
	for _, event := range events {
		trap, ok := event.Data["trap"].(bool)
		grade, _ := event.Data["grade"].(string)
		if !ok || grade == foulDeckWaveoff {
			continue
		}
		sq := event.Squadron()
		if squadrons[sq] == nil {
			squadrons[sq] = &tally{}
		}
		squadrons[sq].rated++
		if trap {
			squadrons[sq].traps++
		}
	}

	names := make([]string, 0, len(squadrons))
	for sq := range squadrons {
		names = append(names, sq)
	}
	sort.Strings(names)

	var alerts []Alert
	for _, sq := range names {
		t := squadrons[sq]
		if t.rated < ae.thresholds.MinRatedPasses {
			continue
		}
		rate := float64(t.traps) / float64(t.rated)
		if rate < ae.thresholds.MinBoardingRate {
			alerts = append(alerts, Alert{
				ID:        fmt.Sprintf("boarding-rate-%s", sq),
				Condition: "boarding_rate_low",
				Severity:  SeverityMedium,
				Message: fmt.Sprintf("squadron %s boarding rate is %.0f%% over %d passes, below %.0f%%",
					sq, rate*100, t.rated, ae.thresholds.MinBoardingRate*100),
				TriggeredAt: now,
			})
		}
	}
	return alerts, nil
}

// checkUndecodableGrades alerts when too many grade comments could not be
// decoded, which usually means the LSO script changed its format.
func (ae *alertEngine) checkUndecodableGrades(now, since time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Types: []string{EventFileProcessed}, Since: &since})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, event := range events {
		total += dataInt(event.Data, "undecodable")
	}

	var alerts []Alert
	if total > ae.thresholds.MaxUndecodableGrades {
		alerts = append(alerts, Alert{
			ID:          "undecodable-grades",
			Condition:   "undecodable_grades",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("%d grade comments could not be decoded, exceeding the maximum of %d", total, ae.thresholds.MaxUndecodableGrades),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}
