package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// LogfilesFileName is the registry file inside the base directory.
const LogfilesFileName = "logfiles.yaml"

// LogfileFilter specifies criteria for listing logfile runs.
// All specified fields use AND logic.
type LogfileFilter struct {
	Squadron string
	States   []models.LogfileState
}

// LogfilesFile represents the top-level structure of logfiles.yaml.
type LogfilesFile struct {
	Version  string                    `yaml:"version"`
	Logfiles map[string]models.Logfile `yaml:"logfiles"`
}

// LogfileRegistry tracks ingestion runs and the processing state of their
// files. Every mutation is written to disk before it returns.
type LogfileRegistry interface {
	Register(squadron string, files []string) (*models.Logfile, error)
	MarkFileCompleted(id string) (*models.Logfile, error)
	MarkFileFailed(id string) (*models.Logfile, error)
	Get(id string) (*models.Logfile, error)
	List(filter LogfileFilter) ([]models.Logfile, error)
	Load() error
	Save() error
}

type fileLogfileRegistry struct {
	mu       sync.Mutex
	basePath string
	data     LogfilesFile
	now      func() time.Time
}

// NewLogfileRegistry creates a LogfileRegistry backed by logfiles.yaml in
// the given base directory. Call Load before use to pick up earlier runs.
func NewLogfileRegistry(basePath string) LogfileRegistry {
	return &fileLogfileRegistry{
		basePath: basePath,
		data:     emptyLogfilesFile(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func emptyLogfilesFile() LogfilesFile {
	return LogfilesFile{
		Version:  "1.0",
		Logfiles: make(map[string]models.Logfile),
	}
}

func (r *fileLogfileRegistry) filePath() string {
	return filepath.Join(r.basePath, LogfilesFileName)
}

func (r *fileLogfileRegistry) Register(squadron string, files []string) (*models.Logfile, error) {
	if squadron == "" {
		return nil, fmt.Errorf("registering logfile: squadron must not be empty")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("registering logfile: no files given")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockAndReload()
	if err != nil {
		return nil, fmt.Errorf("registering logfile: %w", err)
	}
	defer func() { _ = unlock() }()

	now := r.now()
	lf := models.Logfile{
		ID:       uuid.NewString(),
		Squadron: squadron,
		Files:    append([]string(nil), files...),
		Created:  now,
		Updated:  now,
	}
	lf.State = lf.CalculatedState()
	r.data.Logfiles[lf.ID] = lf

	if err := r.saveLocked(); err != nil {
		delete(r.data.Logfiles, lf.ID)
		return nil, fmt.Errorf("registering logfile: %w", err)
	}
	return &lf, nil
}

func (r *fileLogfileRegistry) MarkFileCompleted(id string) (*models.Logfile, error) {
	return r.update(id, "marking file completed", func(lf *models.Logfile) error {
		if lf.CompletedFiles+lf.FailedFiles >= len(lf.Files) {
			return fmt.Errorf("all %d files already finished", len(lf.Files))
		}
		lf.CompletedFiles++
		return nil
	})
}

func (r *fileLogfileRegistry) MarkFileFailed(id string) (*models.Logfile, error) {
	return r.update(id, "marking file failed", func(lf *models.Logfile) error {
		if lf.CompletedFiles+lf.FailedFiles >= len(lf.Files) {
			return fmt.Errorf("all %d files already finished", len(lf.Files))
		}
		lf.FailedFiles++
		return nil
	})
}

// update applies fn to a copy of the run, recalculates its state and
// persists it. The in-memory entry is only replaced once the save succeeds.
func (r *fileLogfileRegistry) update(id, op string, fn func(*models.Logfile) error) (*models.Logfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockAndReload()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = unlock() }()

	existing, ok := r.data.Logfiles[id]
	if !ok {
		return nil, fmt.Errorf("%s: logfile %s: %w", op, id, ErrNotFound)
	}

	lf := existing
	lf.Files = append([]string(nil), existing.Files...)
	if err := fn(&lf); err != nil {
		return nil, fmt.Errorf("%s: logfile %s: %w", op, id, err)
	}
	lf.State = lf.CalculatedState()
	lf.Updated = r.now()

	r.data.Logfiles[id] = lf
	if err := r.saveLocked(); err != nil {
		r.data.Logfiles[id] = existing
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &lf, nil
}

func (r *fileLogfileRegistry) Get(id string) (*models.Logfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lf, ok := r.data.Logfiles[id]
	if !ok {
		return nil, fmt.Errorf("logfile %s: %w", id, ErrNotFound)
	}
	return &lf, nil
}

// List returns matching runs, most recent first.
func (r *fileLogfileRegistry) List(filter LogfileFilter) ([]models.Logfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.Logfile, 0, len(r.data.Logfiles))
	for _, lf := range r.data.Logfiles {
		if matchesLogfileFilter(lf, filter) {
			result = append(result, lf)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Created.Equal(result[j].Created) {
			return result[i].Created.After(result[j].Created)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func matchesLogfileFilter(lf models.Logfile, filter LogfileFilter) bool {
	if filter.Squadron != "" && lf.Squadron != filter.Squadron {
		return false
	}
	if len(filter.States) > 0 {
		for _, s := range filter.States {
			if s == lf.State {
				return true
			}
		}
		return false
	}
	return true
}

func (r *fileLogfileRegistry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

// lockAndReload takes the cross-process lock on the registry file and
// re-reads it, so runs written by another greenie process are kept.
func (r *fileLogfileRegistry) lockAndReload() (func() error, error) {
	if err := os.MkdirAll(r.basePath, 0o750); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	unlock, err := lockFile(r.filePath() + ".lock")
	if err != nil {
		return nil, err
	}
	if err := r.loadLocked(); err != nil {
		_ = unlock()
		return nil, err
	}
	return unlock, nil
}

func (r *fileLogfileRegistry) loadLocked() error {
	data, err := os.ReadFile(r.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			r.data = emptyLogfilesFile()
			return nil
		}
		return fmt.Errorf("loading logfiles: %w", err)
	}

	var lf LogfilesFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return fmt.Errorf("loading logfiles: parsing YAML: %w", err)
	}
	if lf.Logfiles == nil {
		lf.Logfiles = make(map[string]models.Logfile)
	}
	r.data = lf
	return nil
}

func (r *fileLogfileRegistry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *fileLogfileRegistry) saveLocked() error {
	if err := os.MkdirAll(r.basePath, 0o750); err != nil {
		return fmt.Errorf("saving logfiles: creating directory: %w", err)
	}
	data, err := yaml.Marshal(&r.data)
	if err != nil {
		return fmt.Errorf("saving logfiles: marshaling YAML: %w", err)
	}
	if err := os.WriteFile(r.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("saving logfiles: writing file: %w", err)
	}
	return nil
}
