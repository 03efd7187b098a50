package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/greenie/internal/observability"
	"github.com/valter-silva-au/greenie/pkg/models"
)

// --- Fake implementations ---

type fakePassLister struct {
	passes     []models.Pass
	lastFilter models.PassFilter
	err        error
}

func (f *fakePassLister) ListPasses(_ context.Context, filter models.PassFilter) ([]models.Pass, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Pass
	for _, p := range f.passes {
		if filter.Pilot != "" && (p.Pilot == nil || *p.Pilot != filter.Pilot) {
			continue
		}
		if filter.UnassignedOnly && p.Pilot != nil {
			continue
		}
		if filter.Grade != "" && p.Grade != filter.Grade {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePassLister) ListPilots(_ context.Context, squadron string) ([]models.Pilot, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var out []models.Pilot
	for _, p := range f.passes {
		if p.Pilot == nil || seen[*p.Pilot] || (squadron != "" && p.Squadron != squadron) {
			continue
		}
		seen[*p.Pilot] = true
		out = append(out, models.Pilot{ID: int64(len(out) + 1), Squadron: p.Squadron, Name: *p.Pilot})
	}
	return out, nil
}

type fakeMetricsCalculator struct {
	metrics   *observability.Metrics
	lastSince time.Time
	lastSq    string
}

func (f *fakeMetricsCalculator) Calculate(since time.Time, squadron string) (*observability.Metrics, error) {
	f.lastSince = since
	f.lastSq = squadron
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

var testNow = time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string    { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }

func samplePasses() []models.Pass {
	return []models.Pass{
		{
			ID:       1,
			Squadron: "VF-103",
			Time:     time.Date(2024, 3, 10, 18, 22, 0, 0, time.UTC),
			Pilot:    strPtr("Maverick"),
			Ship:     strPtr("CVN-74"),
			Aircraft: strPtr("FA-18C_hornet"),
			Grade:    models.GradeFair,
			Score:    floatPtr(3),
			Trap:     boolPtr(true),
			Wire:     intPtr(2),
			Notes:    strPtr("GRADE:(OK) : (LURIM) _DLX_ WIRE# 2"),
		},
		{
			ID:       2,
			Squadron: "VF-103",
			Time:     time.Date(2024, 3, 10, 18, 40, 0, 0, time.UTC),
			Grade:    models.GradeBolter,
			Score:    floatPtr(2.5),
			Trap:     boolPtr(false),
			Notes:    strPtr("GRADE:B : _LOIC_ (DLX) [BC]"),
		},
	}
}

func newTestServer(opts Options) *Server {
	opts.now = func() time.Time { return testNow }
	if opts.Squadron == "" {
		opts.Squadron = "VF-103"
	}
	return NewServer(opts)
}

// callTool is a helper that connects a client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()
	result, err := callToolErr(t, srv, toolName, args)
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}
	return result
}

func callToolErr(t *testing.T, srv *Server, toolName string, args map[string]any) (*gomcp.CallToolResult, error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	return session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
}

// decode unmarshals a tool result into out, preferring structured content.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("marshalling structured content: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("unmarshalling structured content: %v", err)
		}
		return
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("unmarshalling tool output: %v (text was: %s)", err, text)
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Tests ---

func TestParseRemarksTool(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "parse_remarks", map[string]any{
		"remarks": []string{"GRADE:C : (DRIM) _LULX_", "WO(AFU)IC"},
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out parseRemarksOutput
	decode(t, result, &out)

	if out.Count != 3 || len(out.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d (%+v)", out.Count, out.Errors)
	}
	first := out.Errors[0]
	if first.Code != "DR" || first.Intensity != models.IntensityLow || first.Phase != "IM" {
		t.Errorf("first error = %+v, want DR low IM", first)
	}
	last := out.Errors[2]
	if last.Code != "AFU" || len(last.Modifiers) != 1 || last.Modifiers[0] != "WO" {
		t.Errorf("last error = %+v, want AFU with WO modifier", last)
	}
}

func TestClassifyGradeTool(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "classify_grade", map[string]any{"grade": "GRADE:OK : WIRE# 3"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out classifyGradeOutput
	decode(t, result, &out)

	if out.Grade != "ok" {
		t.Errorf("grade = %q, want ok", out.Grade)
	}
	if !out.Trap {
		t.Error("expected trap")
	}
	if out.Wire == nil || *out.Wire != 3 {
		t.Errorf("wire = %v, want 3", out.Wire)
	}
	if out.Score == nil || *out.Score != 4.0 {
		t.Errorf("score = %v, want 4.0", out.Score)
	}
}

func TestClassifyGradeToolUndecodable(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "classify_grade", map[string]any{"grade": "GRADE:NC : No proper communications"})
	if !result.IsError {
		t.Fatal("expected error result for undecodable grade")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result content")
	}
}

func TestErrorStatsFromRemarks(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "error_stats", map[string]any{
		"remarks": []string{"_LULX_ (DRIM)", "LULX"},
		"top":     1,
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out errorStatsOutput
	decode(t, result, &out)

	if out.PassCount != 2 {
		t.Errorf("pass count = %d, want 2", out.PassCount)
	}
	if len(out.Top) != 1 {
		t.Fatalf("expected 1 top error, got %d", len(out.Top))
	}
	if out.Top[0].Code != "LUL" || out.Top[0].Score != 3.0 || out.Top[0].Count != 2 {
		t.Errorf("top = %+v, want LUL score 3 count 2", out.Top[0])
	}
	if len(out.GradeCounts) != 0 {
		t.Errorf("expected no grade counts for bare remarks, got %v", out.GradeCounts)
	}
}

func TestErrorStatsFromStore(t *testing.T) {
	lister := &fakePassLister{passes: samplePasses()}
	srv := newTestServer(Options{Passes: lister})

	result := callTool(t, srv, "error_stats", map[string]any{"since": "7d"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out errorStatsOutput
	decode(t, result, &out)

	if out.PassCount != 2 {
		t.Errorf("pass count = %d, want 2", out.PassCount)
	}
	if out.GradeCounts["fair"] != 1 || out.GradeCounts["bolter"] != 1 {
		t.Errorf("grade counts = %v", out.GradeCounts)
	}
	if out.BoardingRate == nil || *out.BoardingRate != 0.5 {
		t.Errorf("boarding rate = %v, want 0.5", out.BoardingRate)
	}
	if len(out.Top) == 0 || out.Top[0].Code != "DL" {
		t.Errorf("expected DL to rank first, got %+v", out.Top)
	}
	if lister.lastFilter.Squadron != "VF-103" {
		t.Errorf("squadron filter = %q, want VF-103", lister.lastFilter.Squadron)
	}
	wantSince := testNow.AddDate(0, 0, -7)
	if lister.lastFilter.Since == nil || !lister.lastFilter.Since.Equal(wantSince) {
		t.Errorf("since filter = %v, want %v", lister.lastFilter.Since, wantSince)
	}
}

func TestErrorStatsNoStore(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "error_stats", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error result without a pass store or remarks")
	}
}

func TestListPasses(t *testing.T) {
	srv := newTestServer(Options{Passes: &fakePassLister{passes: samplePasses()}})

	result := callTool(t, srv, "list_passes", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out listPassesOutput
	decode(t, result, &out)

	if out.Count != 2 {
		t.Fatalf("expected 2 passes, got %d", out.Count)
	}
	first := out.Passes[0]
	if first.Pilot != "Maverick" || first.Grade != "fair" || first.Time != "2024-03-10T18:22:00Z" {
		t.Errorf("first pass = %+v", first)
	}
	if out.Passes[1].Pilot != "" {
		t.Errorf("expected unassigned second pass, got pilot %q", out.Passes[1].Pilot)
	}
}

func TestListPassesFilters(t *testing.T) {
	lister := &fakePassLister{passes: samplePasses()}
	srv := newTestServer(Options{Passes: lister})

	result := callTool(t, srv, "list_passes", map[string]any{"unassigned": true, "limit": 10})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out listPassesOutput
	decode(t, result, &out)

	if out.Count != 1 || out.Passes[0].ID != 2 {
		t.Errorf("expected only pass 2, got %+v", out.Passes)
	}
	if !lister.lastFilter.UnassignedOnly || lister.lastFilter.Limit != 10 {
		t.Errorf("filter = %+v", lister.lastFilter)
	}
}

func TestListPassesSinceDate(t *testing.T) {
	lister := &fakePassLister{passes: samplePasses()}
	srv := newTestServer(Options{Passes: lister})

	result := callTool(t, srv, "list_passes", map[string]any{"since": "2024-03-10"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if lister.lastFilter.Since == nil || !lister.lastFilter.Since.Equal(want) {
		t.Errorf("since filter = %v, want %v", lister.lastFilter.Since, want)
	}
}

func TestListPassesInvalidGrade(t *testing.T) {
	srv := newTestServer(Options{Passes: &fakePassLister{}})

	result := callTool(t, srv, "list_passes", map[string]any{"grade": "great"})
	if !result.IsError {
		t.Fatal("expected error for invalid grade")
	}
}

func TestListPassesStoreError(t *testing.T) {
	srv := newTestServer(Options{Passes: &fakePassLister{err: errors.New("database is locked")}})

	result := callTool(t, srv, "list_passes", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when the store fails")
	}
}

func TestListPassesDisabled(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "list_passes", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when pass store is nil")
	}
}

func TestListPilots(t *testing.T) {
	passes := samplePasses()
	third := passes[0]
	third.ID = 3
	passes = append(passes, third)
	srv := newTestServer(Options{Passes: &fakePassLister{passes: passes}})

	result := callTool(t, srv, "list_pilots", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out listPilotsOutput
	decode(t, result, &out)

	if out.Count != 1 || len(out.Pilots) != 1 {
		t.Fatalf("expected 1 pilot, got %+v", out.Pilots)
	}
	if out.Pilots[0].Name != "Maverick" || out.Pilots[0].Passes != 2 {
		t.Errorf("pilot = %+v, want Maverick with 2 passes", out.Pilots[0])
	}
}

func TestListPilotsDisabled(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "list_pilots", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when pass store is nil")
	}
}

func TestListPilotsStoreError(t *testing.T) {
	srv := newTestServer(Options{Passes: &fakePassLister{err: errors.New("database is locked")}})

	result := callTool(t, srv, "list_pilots", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when the store fails")
	}
}

func TestGetMetrics(t *testing.T) {
	rate := 0.75
	oldest := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			FilesProcessed: 3,
			PassesRecorded: 8,
			PassesByGrade:  map[string]int{"ok": 6, "bolter": 2},
			PassesByPilot:  map[string]int{"Maverick": 8},
			Undecodable:    1,
			Traps:          6,
			BoardingRate:   &rate,
			EventCount:     42,
			OldestEvent:    &oldest,
		},
	}
	srv := newTestServer(Options{Metrics: mc})

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "30d"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out metricsOutput
	decode(t, result, &out)

	if out.PassesRecorded != 8 {
		t.Errorf("expected 8 passes recorded, got %d", out.PassesRecorded)
	}
	if out.BoardingRate == nil || *out.BoardingRate != 0.75 {
		t.Errorf("boarding rate = %v, want 0.75", out.BoardingRate)
	}
	if out.OldestEvent != "2024-03-10T18:00:00Z" {
		t.Errorf("oldest event = %q", out.OldestEvent)
	}
	if out.NewestEvent != "" {
		t.Errorf("expected no newest event, got %q", out.NewestEvent)
	}
	if !mc.lastSince.Equal(testNow.AddDate(0, 0, -30)) {
		t.Errorf("since = %v", mc.lastSince)
	}
	if mc.lastSq != "VF-103" {
		t.Errorf("squadron = %q, want VF-103", mc.lastSq)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "get_metrics", map[string]any{})

	if !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result")
	}
}

func TestGetMetricsBadSince(t *testing.T) {
	srv := newTestServer(Options{Metrics: &fakeMetricsCalculator{metrics: &observability.Metrics{}}})

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "7y"})
	if !result.IsError {
		t.Fatal("expected error for unsupported duration")
	}
}

func TestGetAlerts(t *testing.T) {
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{
			{
				ID:          "boarding-rate-VF-103",
				Condition:   "boarding_rate_low",
				Severity:    observability.SeverityMedium,
				Message:     "boarding rate for VF-103 is 40% (threshold 50%)",
				TriggeredAt: testNow,
			},
		},
	}
	srv := newTestServer(Options{Alerts: ae})

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out getAlertsOutput
	decode(t, result, &out)

	if out.Count != 1 {
		t.Fatalf("expected 1 alert, got %d", out.Count)
	}
	if out.Alerts[0].Severity != "medium" || out.Alerts[0].Condition != "boarding_rate_low" {
		t.Errorf("alert = %+v", out.Alerts[0])
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	srv := newTestServer(Options{})

	result := callTool(t, srv, "get_alerts", map[string]any{})

	if !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}
