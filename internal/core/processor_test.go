package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// --- Fakes ---

type fakeRecorder struct {
	mu     sync.Mutex
	passes []models.Pass
	fail   error
}

func (r *fakeRecorder) RecordPass(_ context.Context, p *models.Pass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	p.ID = int64(len(r.passes) + 1)
	r.passes = append(r.passes, *p)
	return nil
}

type fakeTracker struct {
	mu       sync.Mutex
	logfiles map[string]*models.Logfile
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{logfiles: make(map[string]*models.Logfile)}
}

func (f *fakeTracker) Register(squadron string, files []string) (*models.Logfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lf := &models.Logfile{
		ID:       fmt.Sprintf("run-%d", len(f.logfiles)+1),
		Squadron: squadron,
		Files:    append([]string(nil), files...),
		State:    models.LogfilePending,
	}
	f.logfiles[lf.ID] = lf
	cp := *lf
	return &cp, nil
}

func (f *fakeTracker) update(id string, fn func(*models.Logfile)) (*models.Logfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lf, ok := f.logfiles[id]
	if !ok {
		return nil, fmt.Errorf("logfile %s not found", id)
	}
	fn(lf)
	lf.State = lf.CalculatedState()
	cp := *lf
	return &cp, nil
}

func (f *fakeTracker) MarkFileCompleted(id string) (*models.Logfile, error) {
	return f.update(id, func(lf *models.Logfile) { lf.CompletedFiles++ })
}

func (f *fakeTracker) MarkFileFailed(id string) (*models.Logfile, error) {
	return f.update(id, func(lf *models.Logfile) { lf.FailedFiles++ })
}

func (f *fakeTracker) Get(id string) (*models.Logfile, error) {
	return f.update(id, func(*models.Logfile) {})
}

type recordedEvent struct {
	Type string
	Data map[string]any
}

type fakeEventLogger struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *fakeEventLogger) LogEvent(eventType string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (l *fakeEventLogger) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(joinLines(lines...)), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// --- Tests ---

func TestFileProcessor_ProcessesEveryFile(t *testing.T) {
	dir := t.TempDir()
	a := writeLog(t, dir, "a.log",
		spawnLine(0, 1, "F-14B"),
		landingLine(10*time.Second, 1, "Pilot1", "CVN-73"),
		gradeLine(11*time.Second, "GRADE:OK : WIRE# 2"),
	)
	b := writeLog(t, dir, "b.log",
		landingLine(10*time.Second, 2, "Pilot2", "CVN-71"),
		gradeLine(12*time.Second, "GRADE:B : _LULX_"),
		gradeLine(60*time.Second, "GRADE:_OK_ : WIRE# 3"),
	)

	rec := &fakeRecorder{}
	tracker := newFakeTracker()
	events := &fakeEventLogger{}
	proc := NewFileProcessor(rec, tracker, events, ProcessorConfig{Workers: 2}, nil)

	result, err := proc.Process(context.Background(), "VF-84", []string{a, b})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Logfile.State != models.LogfileComplete {
		t.Errorf("State = %q, want complete", result.Logfile.State)
	}
	if result.Logfile.CompletedFiles != 2 {
		t.Errorf("CompletedFiles = %d, want 2", result.Logfile.CompletedFiles)
	}
	if len(result.Files) != 2 || result.Files[0].Path != a || result.Files[1].Path != b {
		t.Fatalf("Files = %+v, want results for a then b", result.Files)
	}
	if result.Files[0].Stats.Passes != 1 || result.Files[1].Stats.Passes != 2 {
		t.Errorf("per-file passes = %d, %d; want 1, 2", result.Files[0].Stats.Passes, result.Files[1].Stats.Passes)
	}

	if len(rec.passes) != 3 {
		t.Fatalf("recorded %d passes, want 3", len(rec.passes))
	}
	for _, p := range rec.passes {
		if p.Squadron != "VF-84" {
			t.Errorf("pass squadron = %q, want VF-84", p.Squadron)
		}
		if p.LogfileID != result.Logfile.ID {
			t.Errorf("pass logfile = %q, want %q", p.LogfileID, result.Logfile.ID)
		}
	}

	if n := events.count(EventPassRecorded); n != 3 {
		t.Errorf("%s events = %d, want 3", EventPassRecorded, n)
	}
	if n := events.count(EventFileProcessed); n != 2 {
		t.Errorf("%s events = %d, want 2", EventFileProcessed, n)
	}
}

func TestFileProcessor_MissingFileFailsRunButNotOthers(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "good.log", gradeLine(0, "GRADE:OK"))
	missing := filepath.Join(dir, "missing.log")

	rec := &fakeRecorder{}
	events := &fakeEventLogger{}
	proc := NewFileProcessor(rec, newFakeTracker(), events, ProcessorConfig{Workers: 1}, nil)

	result, err := proc.Process(context.Background(), "VF-84", []string{missing, good})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Logfile.State != models.LogfileFailed {
		t.Errorf("State = %q, want failed", result.Logfile.State)
	}
	if result.Files[0].Error == "" {
		t.Error("expected an error for the missing file")
	}
	if result.Files[1].Error != "" || len(rec.passes) != 1 {
		t.Errorf("good file should still be processed: %+v, %d passes", result.Files[1], len(rec.passes))
	}
	if n := events.count(EventFileFailed); n != 1 {
		t.Errorf("%s events = %d, want 1", EventFileFailed, n)
	}
}

func TestFileProcessor_RecorderErrorFailsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a.log", gradeLine(0, "GRADE:OK"))

	rec := &fakeRecorder{fail: errors.New("disk full")}
	proc := NewFileProcessor(rec, newFakeTracker(), nil, ProcessorConfig{}, nil)

	result, err := proc.Process(context.Background(), "VF-84", []string{path})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Logfile.State != models.LogfileFailed {
		t.Errorf("State = %q, want failed", result.Logfile.State)
	}
	if result.Files[0].Error == "" {
		t.Error("expected the recorder error on the file result")
	}
}

func TestFileProcessor_SkipsInvalidPasses(t *testing.T) {
	dir := t.TempDir()
	longShip := "USS-Abraham-Lincoln-CVN-72"
	path := writeLog(t, dir, "a.log",
		landingLine(0, 1, "Pilot1", longShip),
		gradeLine(time.Second, "GRADE:OK"),
		gradeLine(30*time.Second, "GRADE:B"),
	)

	rec := &fakeRecorder{}
	proc := NewFileProcessor(rec, newFakeTracker(), nil, ProcessorConfig{}, nil)

	result, err := proc.Process(context.Background(), "VF-84", []string{path})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Files[0].Invalid != 1 {
		t.Errorf("Invalid = %d, want 1", result.Files[0].Invalid)
	}
	if result.Files[0].Stats.Passes != 1 || len(rec.passes) != 1 {
		t.Errorf("passes = %d recorded %d, want 1 and 1", result.Files[0].Stats.Passes, len(rec.passes))
	}
	if result.Logfile.State != models.LogfileComplete {
		t.Errorf("State = %q, want complete", result.Logfile.State)
	}
}

func TestFileProcessor_NoFiles(t *testing.T) {
	proc := NewFileProcessor(&fakeRecorder{}, newFakeTracker(), nil, ProcessorConfig{}, nil)
	if _, err := proc.Process(context.Background(), "VF-84", nil); err == nil {
		t.Error("expected error for empty file list")
	}
}

func TestFileProcessor_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a.log", gradeLine(0, "GRADE:OK"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &fakeRecorder{}
	proc := NewFileProcessor(rec, newFakeTracker(), nil, ProcessorConfig{}, nil)
	result, err := proc.Process(ctx, "VF-84", []string{path})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if result == nil || result.Logfile.State != models.LogfilePending {
		t.Errorf("result = %+v, want a pending run", result)
	}
	if len(rec.passes) != 0 {
		t.Errorf("recorded %d passes after cancellation", len(rec.passes))
	}
}
