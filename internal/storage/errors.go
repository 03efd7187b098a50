package storage

import "errors"

// ErrNotFound is returned when a pass, pilot or logfile run does not exist.
var ErrNotFound = errors.New("not found")
