package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampLayout is the fixed-width leading field of every dcs.log line.
const timestampLayout = "2006-01-02 15:04:05.000"

const (
	timestampWidth = len(timestampLayout)
	levelOffset    = 24
	levelWidth     = 7
	messageOffset  = 32
)

var (
	spawnPattern        = regexp.MustCompile(`^DCS: MissionSpawn:spawnLocalPlayer (\d+),(.+)$`)
	underControlPattern = regexp.MustCompile(`^Scripting: event:type=under control,initiatorPilotName=(.+?),target=.+?,t=.+?,targetMissionID=(\d+),$`)
	landingPattern      = regexp.MustCompile(`^Scripting: event:type=land,initiatorPilotName=(.+?),place=(.+?),t=[0-9.]+,initiatorMissionID=(\d+),$`)
	aiLandingPattern    = regexp.MustCompile(`^Scripting: event:place=.+?,t=[0-9.]+,type=land,initiatorMissionID=(\d+),$`)
	gradeCommentPattern = regexp.MustCompile(`^Scripting: event:place=LSO: (.+),t=[0-9.]+,type=comment,$`)
)

// LogLine is a dcs.log line split into its fixed-offset fields.
type LogLine struct {
	Time    time.Time
	Level   string
	Message string
}

// Event is one of the tagged simulator events the correlator understands:
// SpawnEvent, UnderControlEvent, LandingEvent or GradeCommentEvent.
type Event interface {
	EventTime() time.Time
}

// SpawnEvent records the aircraft type of a locally spawned player.
type SpawnEvent struct {
	Time         time.Time
	AircraftID   int
	AircraftType string
}

// UnderControlEvent records which pilot took control of an aircraft.
type UnderControlEvent struct {
	Time       time.Time
	AircraftID int
	PilotName  string
}

// LandingEvent records a touchdown. AI is set when the log line carried no
// initiatorPilotName attribute; PilotName and Ship are empty in that case.
type LandingEvent struct {
	Time       time.Time
	AircraftID int
	PilotName  string
	Ship       string
	AI         bool
}

// GradeCommentEvent carries the raw LSO grade text.
type GradeCommentEvent struct {
	Time     time.Time
	RawGrade string
}

func (e SpawnEvent) EventTime() time.Time        { return e.Time }
func (e UnderControlEvent) EventTime() time.Time { return e.Time }
func (e LandingEvent) EventTime() time.Time      { return e.Time }
func (e GradeCommentEvent) EventTime() time.Time { return e.Time }

// ParseLine splits a raw line into timestamp, level and message. It returns
// false when the leading timestamp is missing or malformed.
func ParseLine(line string) (LogLine, bool) {
	if len(line) < timestampWidth {
		return LogLine{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, line[:timestampWidth], time.UTC)
	if err != nil {
		return LogLine{}, false
	}

	parsed := LogLine{Time: ts}
	if len(line) > levelOffset {
		end := min(levelOffset+levelWidth, len(line))
		parsed.Level = strings.TrimSpace(line[levelOffset:end])
	}
	if len(line) > messageOffset {
		parsed.Message = line[messageOffset:]
	}
	return parsed, true
}

// ExtractEvent parses a raw line and matches its message against the known
// event patterns. Lines that are unparsable or match nothing yield false.
func ExtractEvent(line string) (Event, bool) {
	parsed, ok := ParseLine(line)
	if !ok {
		return nil, false
	}
	return MatchEvent(parsed.Time, parsed.Message)
}

// MatchEvent matches a message against the event patterns. The patterns are
// anchored on distinct literals so at most one of them can match.
func MatchEvent(ts time.Time, message string) (Event, bool) {
	if m := spawnPattern.FindStringSubmatch(message); m != nil {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, false
		}
		return SpawnEvent{Time: ts, AircraftID: id, AircraftType: m[2]}, true
	}

	if m := underControlPattern.FindStringSubmatch(message); m != nil {
		id, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, false
		}
		return UnderControlEvent{Time: ts, AircraftID: id, PilotName: m[1]}, true
	}

	if m := landingPattern.FindStringSubmatch(message); m != nil {
		id, err := strconv.Atoi(m[3])
		if err != nil {
			return nil, false
		}
		return LandingEvent{Time: ts, AircraftID: id, PilotName: m[1], Ship: m[2]}, true
	}

	if m := aiLandingPattern.FindStringSubmatch(message); m != nil {
		// The id is informational only; AI landings never produce a pass.
		id, _ := strconv.Atoi(m[1])
		return LandingEvent{Time: ts, AircraftID: id, AI: true}, true
	}

	if m := gradeCommentPattern.FindStringSubmatch(message); m != nil {
		return GradeCommentEvent{Time: ts, RawGrade: strings.TrimSpace(m[1])}, true
	}

	return nil, false
}
