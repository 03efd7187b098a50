package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/valter-silva-au/greenie/pkg/models"
)

const gradePrefix = "GRADE:"

var (
	waveoffReasonPattern = regexp.MustCompile(`WO\(([^)]+)\)`)
	wirePattern          = regexp.MustCompile(`WIRE# (\d)`)
)

// GradeResult is the decoded outcome of an LSO grade comment.
type GradeResult struct {
	Grade models.Grade
	Wire  *int
	// Score is the default score for the grade; nil for grades that do not
	// count towards the point total.
	Score *float64
	Trap  bool
}

// ClassifyGrade decodes LSO grade shorthand such as
// "GRADE:_OK_ : WIRE# 3" or the pre-stripped "_OK_ : WIRE# 3". It returns
// ErrUndecodableGrade when the grade tag is not recognised.
func ClassifyGrade(text string) (GradeResult, error) {
	tag := gradeTag(text)

	var grade models.Grade
	switch {
	case tag == "_OK_":
		grade = models.GradePerfect
	case tag == "OK":
		grade = models.GradeOK
	case tag == "(OK)":
		grade = models.GradeFair
	case tag == "B":
		grade = models.GradeBolter
	case tag == "---":
		grade = models.GradeNoGrade
	case tag == "C":
		grade = models.GradeCut
	case tag == "WO" || strings.HasPrefix(tag, "WO("):
		grade = waveoffGrade(text)
	default:
		return GradeResult{}, fmt.Errorf("%w: tag %q", ErrUndecodableGrade, tag)
	}

	result := GradeResult{
		Grade: grade,
		Wire:  wireNumber(text),
		Trap:  DefaultTrap(grade),
	}
	if score, ok := DefaultScore(grade); ok {
		result.Score = &score
	}
	return result, nil
}

// gradeTag returns the grade tag: the text after "GRADE:" up to the next
// whitespace, or the first field of text that carries no prefix.
func gradeTag(text string) string {
	rest := text
	if i := strings.Index(text, gradePrefix); i >= 0 {
		rest = text[i+len(gradePrefix):]
	}
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if end := strings.IndexFunc(rest, unicode.IsSpace); end >= 0 {
		return rest[:end]
	}
	return rest
}

// waveoffGrade distinguishes a foul-deck waveoff from a technique waveoff by
// the reason given in the first WO(...) group.
func waveoffGrade(text string) models.Grade {
	m := waveoffReasonPattern.FindStringSubmatch(text)
	if m != nil && m[1] == "FD" {
		return models.GradeFoulDeckWaveoff
	}
	return models.GradeTechniqueWaveoff
}

// wireNumber returns the first "WIRE# n" wire, or nil when absent or not a
// carrier wire (1..4).
func wireNumber(text string) *int {
	m := wirePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	wire, err := strconv.Atoi(m[1])
	if err != nil || wire < 1 || wire > 4 {
		return nil
	}
	return &wire
}

// DefaultScore returns the points a grade is worth. Foul-deck, pattern and
// own waveoffs carry no default score.
func DefaultScore(g models.Grade) (float64, bool) {
	switch g {
	case models.GradePerfect:
		return 5.0, true
	case models.GradeOK:
		return 4.0, true
	case models.GradeFair:
		return 3.0, true
	case models.GradeBolter:
		return 2.5, true
	case models.GradeNoGrade:
		return 2.0, true
	case models.GradeTechniqueWaveoff:
		return 1.0, true
	case models.GradeCut:
		return 0.0, true
	default:
		return 0, false
	}
}

// DefaultTrap reports whether a grade counts as a successful arrestment.
func DefaultTrap(g models.Grade) bool {
	switch g {
	case models.GradeBolter, models.GradeTechniqueWaveoff, models.GradeFoulDeckWaveoff,
		models.GradePatternWaveoff, models.GradeOwnWaveoff:
		return false
	default:
		return true
	}
}
