package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

var genGrades = []string{"ok", "perfect", "fair", "bolter", "technique_waveoff", "cut", "no_grade"}

// genPassEvents generates pass events for one squadron within the last day.
func genPassEvents(t *rapid.T) []Event {
	n := rapid.IntRange(0, 30).Draw(t, "numPasses")
	events := make([]Event, n)
	for i := range events {
		grade := rapid.SampledFrom(genGrades).Draw(t, fmt.Sprintf("grade_%d", i))
		trap := grade != "bolter" && grade != "technique_waveoff"
		minutesAgo := rapid.IntRange(1, 24*60).Draw(t, fmt.Sprintf("minutesAgo_%d", i))
		events[i] = passEvent(alertNow.Add(-time.Duration(minutesAgo)*time.Minute), "VF-84", "", grade, trap)
	}
	return events
}

// genFileEvents generates processed-file events with random undecodable counts.
func genFileEvents(t *rapid.T) ([]Event, int) {
	n := rapid.IntRange(0, 8).Draw(t, "numFiles")
	total := 0
	events := make([]Event, n)
	for i := range events {
		u := rapid.IntRange(0, 6).Draw(t, fmt.Sprintf("undecodable_%d", i))
		total += u
		events[i] = fileEvent(alertNow.Add(-time.Hour), "VF-84", u, 0)
	}
	return events, total
}

func newPropertyEventLog(t *testing.T, events []Event) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
	return log
}

// =============================================================================
// Properties
// =============================================================================

// Feature: greenie, Property 8: Undecodable alert threshold monotonicity
// Raising the undecodable threshold never produces more alerts, and the
// alert fires exactly when the total exceeds the threshold.
func TestProperty_UndecodableAlertThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events, total := genFileEvents(rt)
		log := newPropertyEventLog(t, events)

		low := rapid.IntRange(0, 30).Draw(rt, "low")
		high := low + rapid.IntRange(0, 30).Draw(rt, "delta")

		count := func(max int) int {
			th := DefaultAlertThresholds()
			th.MaxUndecodableGrades = max
			alerts, err := newTestAlertEngine(log, th).Evaluate()
			if err != nil {
				rt.Fatalf("evaluating alerts: %v", err)
			}
			return countAlertsByCondition(alerts, "undecodable_grades")
		}

		lowCount, highCount := count(low), count(high)
		if highCount > lowCount {
			rt.Fatalf("threshold %d gave %d alerts, threshold %d gave %d", high, highCount, low, lowCount)
		}
		if want := total > low; (lowCount == 1) != want {
			rt.Fatalf("total %d, threshold %d: alert=%v", total, low, lowCount == 1)
		}
	})
}

// Feature: greenie, Property 9: Boarding rate alert threshold monotonicity
// Lowering the minimum boarding rate never produces more alerts.
func TestProperty_BoardingRateAlertThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		log := newPropertyEventLog(t, genPassEvents(rt))

		high := float64(rapid.IntRange(0, 100).Draw(rt, "high")) / 100
		low := high * float64(rapid.IntRange(0, 100).Draw(rt, "factor")) / 100

		count := func(min float64) int {
			th := DefaultAlertThresholds()
			th.MinBoardingRate = min
			alerts, err := newTestAlertEngine(log, th).Evaluate()
			if err != nil {
				rt.Fatalf("evaluating alerts: %v", err)
			}
			return countAlertsByCondition(alerts, "boarding_rate_low")
		}

		if lowCount, highCount := count(low), count(high); lowCount > highCount {
			rt.Fatalf("min rate %.2f gave %d alerts, min rate %.2f gave %d", low, lowCount, high, highCount)
		}
	})
}

// Feature: greenie, Property 10: Event filter time range
// Every event returned by a time-filtered read lies within the range, and
// none inside the range is dropped.
func TestProperty_EventFilterTimeRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		events := genPassEvents(rt)
		log := newPropertyEventLog(t, events)

		fromMin := rapid.IntRange(0, 24*60).Draw(rt, "fromMin")
		toMin := rapid.IntRange(0, fromMin).Draw(rt, "toMin")
		since := alertNow.Add(-time.Duration(fromMin) * time.Minute)
		until := alertNow.Add(-time.Duration(toMin) * time.Minute)

		got, err := log.Read(EventFilter{Since: &since, Until: &until})
		if err != nil {
			rt.Fatalf("reading events: %v", err)
		}

		want := 0
		for _, e := range events {
			if !e.Time.Before(since) && !e.Time.After(until) {
				want++
			}
		}
		if len(got) != want {
			rt.Fatalf("got %d events in range, want %d", len(got), want)
		}
		for _, e := range got {
			if e.Time.Before(since) || e.Time.After(until) {
				rt.Fatalf("event at %s outside [%s, %s]", e.Time, since, until)
			}
		}
	})
}

func countAlertsByCondition(alerts []Alert, condition string) int {
	n := 0
	for _, a := range alerts {
		if a.Condition == condition {
			n++
		}
	}
	return n
}
