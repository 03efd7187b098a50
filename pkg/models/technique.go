package models

// Intensity is the severity decoration attached to a technique error.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Weight returns the scoring weight of the intensity. Unknown intensities
// weigh the same as medium.
func (i Intensity) Weight() float64 {
	switch i {
	case IntensityLow:
		return 0.5
	case IntensityHigh:
		return 2.0
	default:
		return 1.0
	}
}

// TechniqueError is one coded approach deficiency extracted from LSO remarks,
// e.g. "_LULX_" is Code "LUL", high intensity, at Phase "X". An empty Phase
// means the remark did not name one.
type TechniqueError struct {
	Code      string    `json:"code" yaml:"code"`
	Intensity Intensity `json:"intensity" yaml:"intensity"`
	Phase     string    `json:"phase,omitempty" yaml:"phase,omitempty"`
	Modifiers []string  `json:"modifiers" yaml:"modifiers"`
}

// AggregatedError is the weighted total for one error code.
type AggregatedError struct {
	Code  string  `json:"code" yaml:"code"`
	Score float64 `json:"score" yaml:"score"`
	Count int     `json:"count" yaml:"count"`
}

// PhaseStats holds the ranked errors for one flight phase. An empty Phase
// collects errors recorded without one.
type PhaseStats struct {
	Phase  string            `json:"phase" yaml:"phase"`
	Errors []AggregatedError `json:"errors" yaml:"errors"`
}
