package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valter-silva-au/greenie/pkg/models"
)

const (
	maxShipNameLength     = 20
	maxAircraftTypeLength = 20
	maxNotesLength        = 200
	maxScore              = 5.0
)

// NewPass builds a pass from a correlated grade comment. The raw grade text
// is kept verbatim as the pass notes. It returns ErrUndecodableGrade when
// the grade tag is not recognised.
func NewPass(c Correlation) (models.Pass, error) {
	result, err := ClassifyGrade(c.RawGrade)
	if err != nil {
		return models.Pass{}, err
	}

	notes := c.RawGrade
	p := models.Pass{
		Time:     c.Time,
		Pilot:    blankToNil(c.Pilot),
		Ship:     blankToNil(c.Ship),
		Aircraft: blankToNil(c.Aircraft),
		Grade:    result.Grade,
		Wire:     result.Wire,
		Notes:    blankToNil(&notes),
	}
	ApplyDefaults(&p)
	return p, nil
}

// ApplyDefaults fills in score and trap from the grade when they were not
// supplied.
func ApplyDefaults(p *models.Pass) {
	if p.Trap == nil {
		trap := DefaultTrap(p.Grade)
		p.Trap = &trap
	}
	if p.Score == nil {
		if score, ok := DefaultScore(p.Grade); ok {
			p.Score = &score
		}
	}
}

// ValidatePass checks a pass against the limits enforced before it is
// recorded and reports every violation at once.
func ValidatePass(p models.Pass) error {
	var errs []string

	if p.Time.IsZero() {
		errs = append(errs, "time must be set")
	}
	if p.Grade == "" {
		errs = append(errs, "grade must be set")
	} else if !p.Grade.Valid() {
		errs = append(errs, fmt.Sprintf("grade %q is not a known grade", p.Grade))
	}
	if p.Ship != nil && utf8.RuneCountInString(*p.Ship) > maxShipNameLength {
		errs = append(errs, fmt.Sprintf("ship name is longer than %d characters", maxShipNameLength))
	}
	if p.Aircraft != nil && utf8.RuneCountInString(*p.Aircraft) > maxAircraftTypeLength {
		errs = append(errs, fmt.Sprintf("aircraft type is longer than %d characters", maxAircraftTypeLength))
	}
	if p.Notes != nil && utf8.RuneCountInString(*p.Notes) > maxNotesLength {
		errs = append(errs, fmt.Sprintf("notes are longer than %d characters", maxNotesLength))
	}
	if p.Score != nil && (*p.Score < 0 || *p.Score > maxScore) {
		errs = append(errs, fmt.Sprintf("score %.1f must be between 0 and %.0f", *p.Score, maxScore))
	}
	if p.Wire != nil && (*p.Wire < 1 || *p.Wire > 4) {
		errs = append(errs, fmt.Sprintf("wire %d must be between 1 and 4", *p.Wire))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidPass, strings.Join(errs, "\n  - "))
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
