package core

import (
	"sort"

	"github.com/valter-silva-au/greenie/pkg/models"
)

const (
	// DefaultTopN is the number of codes Top returns when callers have no preference.
	DefaultTopN = 5
	// DefaultPhaseTopN is the number of codes reported per phase.
	DefaultPhaseTopN = 3
)

// DefaultExcludedPhases are left out of per-phase reports. Errors in the
// wire ("AW") say little about approach technique.
var DefaultExcludedPhases = []string{"AW"}

// unknownPhaseRank sorts unrecognised and missing phases after all known ones.
const unknownPhaseRank = 999

// ErrorCodeAggregator groups technique errors by code and ranks them by
// intensity-weighted score. It never mutates its input and is safe for
// concurrent use.
type ErrorCodeAggregator struct {
	errors []models.TechniqueError
}

// NewErrorCodeAggregator creates an aggregator over errs. A nil slice is
// treated as empty.
func NewErrorCodeAggregator(errs []models.TechniqueError) *ErrorCodeAggregator {
	return &ErrorCodeAggregator{errors: errs}
}

// Aggregate returns one entry per code, sorted by score descending. Codes
// with equal scores keep the order in which they were first seen.
func (a *ErrorCodeAggregator) Aggregate() []models.AggregatedError {
	index := make(map[string]int)
	result := []models.AggregatedError{}

	for _, e := range a.errors {
		i, ok := index[e.Code]
		if !ok {
			i = len(result)
			index[e.Code] = i
			result = append(result, models.AggregatedError{Code: e.Code})
		}
		result[i].Score += e.Intensity.Weight()
		result[i].Count++
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}

// Top returns the n highest-scoring codes.
func (a *ErrorCodeAggregator) Top(n int) []models.AggregatedError {
	all := a.Aggregate()
	if n < 0 {
		n = 0
	}
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// ByPhase ranks errors separately for each phase, keeping the top n codes
// per phase. A nil exclude list means DefaultExcludedPhases; pass an empty
// slice to keep every phase. Phases are returned in approach order, with
// unknown and missing phases last.
func (a *ErrorCodeAggregator) ByPhase(n int, exclude []string) []models.PhaseStats {
	if exclude == nil {
		exclude = DefaultExcludedPhases
	}
	excluded := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		excluded[p] = true
	}

	var order []string
	partitions := make(map[string][]models.TechniqueError)
	for _, e := range a.errors {
		if excluded[e.Phase] {
			continue
		}
		if _, seen := partitions[e.Phase]; !seen {
			order = append(order, e.Phase)
		}
		partitions[e.Phase] = append(partitions[e.Phase], e)
	}

	result := []models.PhaseStats{}
	for _, phase := range order {
		top := NewErrorCodeAggregator(partitions[phase]).Top(n)
		if len(top) == 0 {
			continue
		}
		result = append(result, models.PhaseStats{Phase: phase, Errors: top})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return phaseRank(result[i].Phase) < phaseRank(result[j].Phase)
	})
	return result
}

func phaseRank(phase string) int {
	for i, p := range phaseCodes {
		if p == phase {
			return i
		}
	}
	return unknownPhaseRank
}
