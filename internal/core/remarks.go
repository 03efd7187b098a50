package core

import (
	"regexp"
	"sort"
	"strings"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// errorCodes is the LSO technique-error vocabulary.
var errorCodes = []string{
	"/", `\`, "^", "3PTS", "AA", "ACC", "AFU", "B", "C", "CB", "CD", "CH", "CO", "CU",
	"DD", "DEC", "DL", "DN", "DR", "DU", "EG", "F", "FD", "GLI", "H", "HO",
	"LIG", "LL", "LLU", "LLWD", "LNF", "LO", "LR", "LRWD", "LTR", "LU", "LUL", "LUR",
	"LWD", "N", "NC", "ND", "NEA", "NEP", "NERD", "NERR", "NESA", "NH", "NSU",
	"OR", "OS", "OSCB", "P", "PD", "PNU", "PPP", "ROT", "RR", "RTL", "RUD", "RUF",
	"RWD", "S", "SD", "SHT", "SKD", "SLO", "SRD", "ST", "TCA", "TMA", "TMP", "TMRD",
	"TMRR", "TTL", "TTS", "TWA", "W", "WU", "XCTL",
}

// phaseCodes lists flight phases in approach order.
var phaseCodes = []string{"X", "BC", "IM", "IC", "AR", "TL", "IW", "AW"}

var modifierCodes = []string{"WO"}

// gradeTokens are bare grade marks that carry no technique error.
var gradeTokens = map[string]bool{
	"WO": true, "B": true, "C": true, "OK": true, "_OK_": true, "(OK)": true, "---": true, "NC": true,
}

// codesLongestFirst is errorCodes ordered so that the first prefix match is
// the longest one ("PPP" before "P").
var codesLongestFirst = func() []string {
	codes := append([]string(nil), errorCodes...)
	sort.SliceStable(codes, func(i, j int) bool { return len(codes[i]) > len(codes[j]) })
	return codes
}()

var phaseSet = func() map[string]bool {
	m := make(map[string]bool, len(phaseCodes))
	for _, p := range phaseCodes {
		m[p] = true
	}
	return m
}()

var (
	remarksGradePrefix = regexp.MustCompile(`^GRADE:[^:\s]*\s*:?\s*`)
	remarksWireSuffix  = regexp.MustCompile(`\s*WIRE#.*$`)
	remarksBCSuffix    = regexp.MustCompile(`\s*\[BC\]\s*$`)

	highToken        = regexp.MustCompile(`^_([^_]+)_$`)
	lowToken         = regexp.MustCompile(`^\(([^)]+)\)$`)
	modifierSuffixed = regexp.MustCompile(`^(\w+)\(([^)]+)\)(\w+)$`)
	modifierWrapped  = regexp.MustCompile(`^(\w+)\(([^)]+)\)$`)
	skippedToken     = regexp.MustCompile(`(?i)^(WIRE#|GRADE:)`)
)

// ErrorCodes returns the technique-error vocabulary.
func ErrorCodes() []string { return append([]string(nil), errorCodes...) }

// PhaseCodes returns the flight phase codes in approach order.
func PhaseCodes() []string { return append([]string(nil), phaseCodes...) }

// ParseRemarks turns LSO remarks such as
// "GRADE:WO  (DRIM)  _LULX_  WO(AFU)IC" into technique errors, in the order
// they appear. Tokens that resolve to no known code, or to a code followed by
// something other than a phase, are dropped.
func ParseRemarks(remarks string) []models.TechniqueError {
	errs := []models.TechniqueError{}
	for _, token := range strings.Fields(remarksContent(remarks)) {
		if te, ok := parseToken(token); ok {
			errs = append(errs, te)
		}
	}
	return errs
}

// remarksContent strips the grade prefix, the wire suffix (and everything
// after it) and a trailing [BC] marker.
func remarksContent(remarks string) string {
	s := remarksGradePrefix.ReplaceAllString(remarks, "")
	s = remarksWireSuffix.ReplaceAllString(s, "")
	s = remarksBCSuffix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func parseToken(token string) (models.TechniqueError, bool) {
	if gradeTokens[token] {
		return models.TechniqueError{}, false
	}
	if m := highToken.FindStringSubmatch(token); m != nil {
		return resolveError(m[1], models.IntensityHigh)
	}
	if m := lowToken.FindStringSubmatch(token); m != nil {
		return resolveError(m[1], models.IntensityLow)
	}
	if m := modifierSuffixed.FindStringSubmatch(token); m != nil && isModifier(m[1]) {
		return resolveError(m[1]+m[2]+m[3], models.IntensityLow)
	}
	if m := modifierWrapped.FindStringSubmatch(token); m != nil && isModifier(m[1]) {
		return resolveError(m[1]+m[2], models.IntensityLow)
	}
	if skippedToken.MatchString(token) {
		return models.TechniqueError{}, false
	}
	return resolveError(token, models.IntensityMedium)
}

// resolveError splits decoration-free text into modifiers, the longest
// matching error code and an optional phase.
func resolveError(text string, intensity models.Intensity) (models.TechniqueError, bool) {
	modifiers := []string{}
	rest := text
	for _, mod := range modifierCodes {
		if strings.HasPrefix(rest, mod) {
			modifiers = append(modifiers, mod)
			rest = rest[len(mod):]
		}
	}

	for _, code := range codesLongestFirst {
		if !strings.HasPrefix(rest, code) {
			continue
		}
		phase := rest[len(code):]
		if phase != "" && !phaseSet[phase] {
			return models.TechniqueError{}, false
		}
		return models.TechniqueError{
			Code:      code,
			Intensity: intensity,
			Phase:     phase,
			Modifiers: modifiers,
		}, true
	}
	return models.TechniqueError{}, false
}

func isModifier(s string) bool {
	for _, mod := range modifierCodes {
		if s == mod {
			return true
		}
	}
	return false
}
