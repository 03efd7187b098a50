package models

import "time"

// Grade is the canonical outcome of a graded landing attempt.
type Grade string

const (
	GradeCut              Grade = "cut"
	GradeNoGrade          Grade = "no_grade"
	GradeBolter           Grade = "bolter"
	GradeFair             Grade = "fair"
	GradeOK               Grade = "ok"
	GradePerfect          Grade = "perfect"
	GradeTechniqueWaveoff Grade = "technique_waveoff"
	GradeFoulDeckWaveoff  Grade = "foul_deck_waveoff"
	GradePatternWaveoff   Grade = "pattern_waveoff"
	GradeOwnWaveoff       Grade = "own_waveoff"
)

// AllGrades lists every grade in stored-enum order.
func AllGrades() []Grade {
	return []Grade{
		GradeCut, GradeNoGrade, GradeBolter, GradeFair, GradeOK, GradePerfect,
		GradeTechniqueWaveoff, GradeFoulDeckWaveoff, GradePatternWaveoff, GradeOwnWaveoff,
	}
}

// Valid reports whether g is one of the enumerated grades.
func (g Grade) Valid() bool {
	for _, known := range AllGrades() {
		if g == known {
			return true
		}
	}
	return false
}

// Pass is one graded landing attempt at a carrier. A pass ends in a trap,
// a bolter or a waveoff. Pilot, ship and aircraft are nil when the log did
// not record them (or the grade comment could not be correlated to a
// landing); such passes are left for the squadron to assign later.
type Pass struct {
	ID        int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Squadron  string    `json:"squadron,omitempty" yaml:"squadron,omitempty"`
	LogfileID string    `json:"logfile_id,omitempty" yaml:"logfile_id,omitempty"`
	Time      time.Time `json:"time" yaml:"time"`
	Pilot     *string   `json:"pilot,omitempty" yaml:"pilot,omitempty"`
	Ship      *string   `json:"ship_name,omitempty" yaml:"ship_name,omitempty"`
	Aircraft  *string   `json:"aircraft_type,omitempty" yaml:"aircraft_type,omitempty"`
	Grade     Grade     `json:"grade" yaml:"grade"`
	Score     *float64  `json:"score,omitempty" yaml:"score,omitempty"`
	Trap      *bool     `json:"trap,omitempty" yaml:"trap,omitempty"`
	Wire      *int      `json:"wire,omitempty" yaml:"wire,omitempty"`
	Notes     *string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// PassFilter specifies criteria for querying stored passes.
// All set fields are combined with AND.
type PassFilter struct {
	Squadron       string
	Pilot          string
	Grade          Grade
	Since          *time.Time
	Until          *time.Time
	UnassignedOnly bool
	Limit          int
}

// Pilot is a named aviator within a squadron.
type Pilot struct {
	ID       int64  `json:"id"`
	Squadron string `json:"squadron"`
	Name     string `json:"name"`
}
