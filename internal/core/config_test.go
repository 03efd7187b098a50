package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- LoadGlobalConfig tests ---

func TestLoadGlobalConfig_Defaults_WhenNoFile(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(DefaultGlobalConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.CorrelationWindow != 5*time.Second {
		t.Errorf("CorrelationWindow = %s, want 5s", cfg.CorrelationWindow)
	}
}

func TestLoadGlobalConfig_ReadsGreenieconfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".greenieconfig.yaml", `
squadron: VF-84
store:
  path: /var/lib/greenie/passes.db
events:
  path: /var/lib/greenie/events.jsonl
correlation:
  window: 8s
ingest:
  workers: 2
log:
  level: debug
report:
  top: 10
  phase_top: 2
  exclude_phases: [AW, X]
watch:
  pattern: "dcs*.log"
  debounce: 500ms
alerts:
  max_undecodable_grades: 3
  min_boarding_rate: 0.8
`)

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Squadron != "VF-84" {
		t.Errorf("Squadron = %q, want %q", cfg.Squadron, "VF-84")
	}
	if cfg.StorePath != "/var/lib/greenie/passes.db" {
		t.Errorf("StorePath = %q", cfg.StorePath)
	}
	if cfg.EventsPath != "/var/lib/greenie/events.jsonl" {
		t.Errorf("EventsPath = %q", cfg.EventsPath)
	}
	if cfg.CorrelationWindow != 8*time.Second {
		t.Errorf("CorrelationWindow = %s, want 8s", cfg.CorrelationWindow)
	}
	if cfg.IngestWorkers != 2 {
		t.Errorf("IngestWorkers = %d, want 2", cfg.IngestWorkers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Report.Top != 10 || cfg.Report.PhaseTop != 2 {
		t.Errorf("Report = %+v", cfg.Report)
	}
	if diff := cmp.Diff([]string{"AW", "X"}, cfg.Report.ExcludePhases); diff != "" {
		t.Errorf("ExcludePhases mismatch (-want +got):\n%s", diff)
	}
	if cfg.Watch.Pattern != "dcs*.log" || cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if cfg.Alerts.MaxUndecodableGrades != 3 || cfg.Alerts.MinBoardingRate != 0.8 {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
}

func TestLoadGlobalConfig_PartialConfig_FillsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".greenieconfig.yaml", "squadron: VFA-103\n")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Squadron != "VFA-103" {
		t.Errorf("Squadron = %q, want %q", cfg.Squadron, "VFA-103")
	}
	want := DefaultGlobalConfig()
	if cfg.CorrelationWindow != want.CorrelationWindow {
		t.Errorf("CorrelationWindow = %s, want %s", cfg.CorrelationWindow, want.CorrelationWindow)
	}
	if cfg.Watch.Pattern != want.Watch.Pattern {
		t.Errorf("Watch.Pattern = %q, want %q", cfg.Watch.Pattern, want.Watch.Pattern)
	}
	if diff := cmp.Diff(want.Report.ExcludePhases, cfg.Report.ExcludePhases); diff != "" {
		t.Errorf("ExcludePhases mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGlobalConfig_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".greenieconfig.yaml", "squadron: [unclosed\n")

	if _, err := NewConfigurationManager(dir).LoadGlobalConfig(); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_Defaults_AreValid(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(DefaultGlobalConfig()); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestValidateConfig_Nil_ReturnsError(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestValidateConfig_ReportsEveryProblem(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := DefaultGlobalConfig()
	cfg.Squadron = "bad squadron!"
	cfg.CorrelationWindow = 0
	cfg.IngestWorkers = 0
	cfg.Report.ExcludePhases = []string{"ZZ"}
	cfg.Watch.Pattern = "[unterminated"
	cfg.Alerts.MinBoardingRate = 1.5

	err := cm.ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{
		"global config validation failed",
		"squadron",
		"correlation.window",
		"ingest.workers",
		`"ZZ"`,
		"watch.pattern",
		"alerts.min_boarding_rate",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestValidateConfig_InvalidLogLevel(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := DefaultGlobalConfig()
	cfg.LogLevel = "verbose"

	err := cm.ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("expected log.level error, got %v", err)
	}
}
