package core

import (
	"github.com/valter-silva-au/greenie/pkg/models"
)

// ReportOptions controls the size of an error report.
type ReportOptions struct {
	Top           int
	PhaseTop      int
	ExcludePhases []string
}

// DefaultReportOptions returns the report sizes used when none are configured.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{Top: DefaultTopN, PhaseTop: DefaultPhaseTopN, ExcludePhases: DefaultExcludedPhases}
}

// ErrorReport summarises grades and technique errors over a set of passes.
type ErrorReport struct {
	PassCount    int                      `json:"pass_count"`
	GradeCounts  map[models.Grade]int     `json:"grade_counts"`
	AverageScore *float64                 `json:"average_score,omitempty"`
	BoardingRate *float64                 `json:"boarding_rate,omitempty"`
	Top          []models.AggregatedError `json:"top"`
	ByPhase      []models.PhaseStats      `json:"by_phase"`
}

// BuildErrorReport parses the notes of every pass and ranks the technique
// errors found in them.
func BuildErrorReport(passes []models.Pass, opts ReportOptions) ErrorReport {
	var notes []string
	report := ErrorReport{
		PassCount:   len(passes),
		GradeCounts: make(map[models.Grade]int),
	}

	var scoreSum float64
	var scored int
	for _, p := range passes {
		report.GradeCounts[p.Grade]++
		if p.Score != nil {
			scoreSum += *p.Score
			scored++
		}
		if p.Notes != nil {
			notes = append(notes, *p.Notes)
		}
	}
	if scored > 0 {
		avg := scoreSum / float64(scored)
		report.AverageScore = &avg
	}
	if rate, ok := BoardingRate(passes); ok {
		report.BoardingRate = &rate
	}

	agg := NewErrorCodeAggregator(RemarksErrors(notes))
	report.Top = agg.Top(opts.Top)
	report.ByPhase = agg.ByPhase(opts.PhaseTop, opts.ExcludePhases)
	return report
}

// RemarksErrors parses every remarks string and concatenates the errors in
// input order.
func RemarksErrors(remarks []string) []models.TechniqueError {
	errs := []models.TechniqueError{}
	for _, r := range remarks {
		errs = append(errs, ParseRemarks(r)...)
	}
	return errs
}

// BoardingRate is the fraction of qualifying passes that ended in a trap.
// Passes without a trap value and foul-deck waveoffs, which are not the
// pilot's fault, do not qualify. It returns false when nothing qualifies.
func BoardingRate(passes []models.Pass) (float64, bool) {
	var traps, qualifying int
	for _, p := range passes {
		if p.Trap == nil || p.Grade == models.GradeFoulDeckWaveoff {
			continue
		}
		qualifying++
		if *p.Trap {
			traps++
		}
	}
	if qualifying == 0 {
		return 0, false
	}
	return float64(traps) / float64(qualifying), true
}
