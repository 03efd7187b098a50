package core

import "time"

// DefaultCorrelationWindow is how long after a landing a grade comment may
// still be attributed to it.
const DefaultCorrelationWindow = 5 * time.Second

// CorrelationOutcome describes what the correlator did with an event.
type CorrelationOutcome int

const (
	// OutcomeNone means the event only updated correlator state.
	OutcomeNone CorrelationOutcome = iota
	// OutcomeGraded means a grade comment produced a Correlation.
	OutcomeGraded
	// OutcomeAIDiscarded means a grade comment belonged to an AI landing.
	OutcomeAIDiscarded
)

// Correlation is a grade comment joined with whatever landing context was
// available when it arrived. Nil fields were not known.
type Correlation struct {
	Time     time.Time
	RawGrade string
	Pilot    *string
	Ship     *string
	Aircraft *string
}

// LandingCorrelator joins landing events with the grade comment that follows
// them. It holds per-file state and must be owned by a single scan; it is
// not safe for concurrent use.
type LandingCorrelator struct {
	window        time.Duration
	aircraftTypes map[int]string
	pilotNames    map[int]string
	lastLanding   *LandingEvent
}

// NewLandingCorrelator creates a correlator with the given recency window.
// A non-positive window falls back to DefaultCorrelationWindow.
func NewLandingCorrelator(window time.Duration) *LandingCorrelator {
	if window <= 0 {
		window = DefaultCorrelationWindow
	}
	return &LandingCorrelator{
		window:        window,
		aircraftTypes: make(map[int]string),
		pilotNames:    make(map[int]string),
	}
}

// Observe feeds one event into the correlator. For grade comments it returns
// the correlation and OutcomeGraded, or OutcomeAIDiscarded when the comment
// belongs to an AI-flown landing.
func (c *LandingCorrelator) Observe(ev Event) (Correlation, CorrelationOutcome) {
	switch e := ev.(type) {
	case SpawnEvent:
		c.aircraftTypes[e.AircraftID] = e.AircraftType
	case UnderControlEvent:
		c.pilotNames[e.AircraftID] = e.PilotName
	case LandingEvent:
		landing := e
		c.lastLanding = &landing
	case GradeCommentEvent:
		return c.grade(e)
	}
	return Correlation{}, OutcomeNone
}

func (c *LandingCorrelator) grade(e GradeCommentEvent) (Correlation, CorrelationOutcome) {
	corr := Correlation{Time: e.Time, RawGrade: e.RawGrade}

	landing := c.lastLanding
	if landing == nil || !landing.Time.After(e.Time.Add(-c.window)) {
		return corr, OutcomeGraded
	}
	if landing.AI {
		return Correlation{}, OutcomeAIDiscarded
	}

	pilot := landing.PilotName
	if pilot == "" {
		pilot = c.pilotNames[landing.AircraftID]
	}
	corr.Pilot = optionalString(pilot)
	corr.Ship = optionalString(landing.Ship)
	if aircraft, ok := c.aircraftTypes[landing.AircraftID]; ok {
		corr.Aircraft = optionalString(aircraft)
	}
	return corr, OutcomeGraded
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
