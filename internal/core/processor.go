package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// PassRecorder persists passes. Implementations must be safe for concurrent
// use; the processor records passes from several files at once.
type PassRecorder interface {
	RecordPass(ctx context.Context, p *models.Pass) error
}

// LogfileTracker keeps the processing state of ingestion runs.
type LogfileTracker interface {
	Register(squadron string, files []string) (*models.Logfile, error)
	MarkFileCompleted(id string) (*models.Logfile, error)
	MarkFileFailed(id string) (*models.Logfile, error)
	Get(id string) (*models.Logfile, error)
}

// ProcessorConfig tunes a FileProcessor.
type ProcessorConfig struct {
	Window  time.Duration
	Workers int
}

// FileResult reports the outcome for one file of an ingestion run.
type FileResult struct {
	Path    string    `json:"path"`
	Stats   ScanStats `json:"stats"`
	Invalid int       `json:"invalid"`
	Error   string    `json:"error,omitempty"`
}

// ProcessResult is the outcome of an ingestion run.
type ProcessResult struct {
	Logfile models.Logfile `json:"logfile"`
	Files   []FileResult   `json:"files"`
}

// FileProcessor ingests dcs.log files and records the passes found in them.
type FileProcessor interface {
	Process(ctx context.Context, squadron string, paths []string) (*ProcessResult, error)
}

type fileProcessor struct {
	recorder PassRecorder
	tracker  LogfileTracker
	events   EventLogger
	cfg      ProcessorConfig
	logger   *zap.Logger
}

// NewFileProcessor creates a FileProcessor. events and logger may be nil.
func NewFileProcessor(recorder PassRecorder, tracker LogfileTracker, events EventLogger, cfg ProcessorConfig, logger *zap.Logger) FileProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileProcessor{
		recorder: recorder,
		tracker:  tracker,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process registers an ingestion run and scans every file, several at a
// time. A file that fails is marked failed without stopping the others.
// Cancelling ctx stops files that have not started yet.
func (p *fileProcessor) Process(ctx context.Context, squadron string, paths []string) (*ProcessResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("processing logfiles: no files given")
	}

	logfile, err := p.tracker.Register(squadron, paths)
	if err != nil {
		return nil, fmt.Errorf("registering logfile: %w", err)
	}
	log := p.logger.With(zap.String("logfile", logfile.ID), zap.String("squadron", squadron))
	log.Info("processing logfiles", zap.Int("files", len(paths)))

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FileResult{Path: path, Error: err.Error()}
				return err
			}
			results[i] = p.processFile(gctx, log, logfile.ID, squadron, path)
			return nil
		})
	}
	waitErr := g.Wait()

	final, err := p.tracker.Get(logfile.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading logfile %s: %w", logfile.ID, err)
	}
	result := &ProcessResult{Logfile: *final, Files: results}

	if waitErr != nil {
		return result, fmt.Errorf("processing logfile %s: %w", logfile.ID, waitErr)
	}
	log.Info("finished logfiles", zap.String("state", string(final.State)))
	return result, nil
}

func (p *fileProcessor) processFile(ctx context.Context, log *zap.Logger, logfileID, squadron, path string) FileResult {
	result := FileResult{Path: path}
	log = log.With(zap.String("file", path))

	stats, invalid, err := p.scanFile(ctx, log, logfileID, squadron, path)
	result.Stats = stats
	result.Invalid = invalid

	if err != nil {
		result.Error = err.Error()
		log.Error("file failed", zap.Error(err))
		if _, markErr := p.tracker.MarkFileFailed(logfileID); markErr != nil {
			log.Error("marking file failed", zap.Error(markErr))
		}
		p.logEvent(EventFileFailed, map[string]any{
			"logfile_id": logfileID,
			"squadron":   squadron,
			"file":       path,
			"error":      err.Error(),
		})
		return result
	}

	if _, markErr := p.tracker.MarkFileCompleted(logfileID); markErr != nil {
		log.Error("marking file completed", zap.Error(markErr))
	}
	p.logEvent(EventFileProcessed, map[string]any{
		"logfile_id":   logfileID,
		"squadron":     squadron,
		"file":         path,
		"lines":        stats.Lines,
		"passes":       stats.Passes,
		"ai_discarded": stats.AIDiscarded,
		"undecodable":  stats.Undecodable,
		"invalid":      invalid,
	})
	log.Info("file processed",
		zap.Int("lines", stats.Lines),
		zap.Int("passes", stats.Passes),
		zap.Int("undecodable", stats.Undecodable))
	return result
}

func (p *fileProcessor) scanFile(ctx context.Context, log *zap.Logger, logfileID, squadron, path string) (ScanStats, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScanStats{}, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	invalid := 0
	scanner := NewLogScanner(p.cfg.Window, log)

	stats, err := scanner.Scan(f, func(pass models.Pass) error {
		pass.Squadron = squadron
		pass.LogfileID = logfileID
		if err := ValidatePass(pass); err != nil {
			invalid++
			log.Info("couldn't record pass from log entry", zap.Error(err))
			return nil
		}
		if err := p.recorder.RecordPass(ctx, &pass); err != nil {
			return fmt.Errorf("recording pass: %w", err)
		}
		p.logEvent(EventPassRecorded, passEventData(pass))
		return nil
	})
	// Invalid passes are still counted by the scanner; report them separately.
	stats.Passes -= invalid
	return stats, invalid, err
}

func (p *fileProcessor) logEvent(eventType string, data map[string]any) {
	if p.events == nil {
		return
	}
	if err := p.events.LogEvent(eventType, data); err != nil {
		p.logger.Warn("writing event", zap.String("type", eventType), zap.Error(err))
	}
}

func passEventData(p models.Pass) map[string]any {
	data := map[string]any{
		"pass_id":    p.ID,
		"logfile_id": p.LogfileID,
		"squadron":   p.Squadron,
		"grade":      string(p.Grade),
	}
	if p.Pilot != nil {
		data["pilot"] = *p.Pilot
	}
	if p.Trap != nil {
		data["trap"] = *p.Trap
	}
	if p.Score != nil {
		data["score"] = *p.Score
	}
	if p.Wire != nil {
		data["wire"] = *p.Wire
	}
	return data
}
