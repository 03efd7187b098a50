package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// maxLineSize bounds a single dcs.log line. Mission scripts occasionally dump
// very long lines; anything beyond this is an input error.
const maxLineSize = 4 * 1024 * 1024

// ScanStats counts what a scan did with its input.
type ScanStats struct {
	Lines       int `json:"lines"`
	Unparsed    int `json:"unparsed"`
	Events      int `json:"events"`
	Passes      int `json:"passes"`
	AIDiscarded int `json:"ai_discarded"`
	Undecodable int `json:"undecodable"`
}

// PassHandler receives each pass a scan produces. Returning an error stops
// the scan.
type PassHandler func(models.Pass) error

// LogScanner turns a dcs.log stream into passes.
type LogScanner struct {
	window time.Duration
	logger *zap.Logger
}

// NewLogScanner creates a scanner that correlates grade comments with
// landings no older than window. A nil logger disables logging.
func NewLogScanner(window time.Duration, logger *zap.Logger) *LogScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogScanner{window: window, logger: logger}
}

// Scan reads r line by line and calls handle once per decodable grade
// comment. Each call uses a fresh LandingCorrelator, so concurrent scans of
// different streams are independent. Only read errors and handler errors
// are returned; malformed lines and grades are counted and skipped.
func (s *LogScanner) Scan(r io.Reader, handle PassHandler) (ScanStats, error) {
	var stats ScanStats
	correlator := NewLandingCorrelator(s.window)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		stats.Lines++
		line, ok := ParseLine(scanner.Text())
		if !ok {
			stats.Unparsed++
			continue
		}
		ev, ok := MatchEvent(line.Time, line.Message)
		if !ok {
			continue
		}
		stats.Events++

		corr, outcome := correlator.Observe(ev)
		switch outcome {
		case OutcomeNone:
			continue
		case OutcomeAIDiscarded:
			stats.AIDiscarded++
			s.logger.Debug("discarding grade for AI landing", zap.Int("line", stats.Lines))
			continue
		}

		pass, err := NewPass(corr)
		if errors.Is(err, ErrUndecodableGrade) {
			stats.Undecodable++
			s.logger.Info("skipping undecodable grade",
				zap.Int("line", stats.Lines),
				zap.String("grade", corr.RawGrade))
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("building pass at line %d: %w", stats.Lines, err)
		}

		if err := handle(pass); err != nil {
			return stats, fmt.Errorf("handling pass at line %d: %w", stats.Lines, err)
		}
		stats.Passes++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading log: %w", err)
	}
	return stats, nil
}
