package core

import "errors"

var (
	// ErrUndecodableGrade is returned when a grade comment carries no known grade tag.
	ErrUndecodableGrade = errors.New("undecodable grade")
	// ErrInvalidPass is returned when a pass fails validation before it is recorded.
	ErrInvalidPass = errors.New("invalid pass")
)
