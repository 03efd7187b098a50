// Package mcp provides an MCP (Model Context Protocol) server that exposes
// greenie's grade and remarks analysis as MCP tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/greenie/internal/core"
	"github.com/valter-silva-au/greenie/internal/observability"
	"github.com/valter-silva-au/greenie/pkg/models"
)

// PassLister is the read side of the pass store used by the server.
type PassLister interface {
	ListPasses(ctx context.Context, filter models.PassFilter) ([]models.Pass, error)
	ListPilots(ctx context.Context, squadron string) ([]models.Pilot, error)
}

// Options carries the optional dependencies of a Server. Nil services make
// the tools that need them return an error result.
type Options struct {
	Passes   PassLister
	Metrics  observability.MetricsCalculator
	Alerts   observability.AlertEngine
	Squadron string
	Report   core.ReportOptions
	Version  string
	now      func() time.Time
}

// Server wraps greenie services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	passes      PassLister
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	squadron    string
	report      core.ReportOptions
	now         func() time.Time
}

// NewServer creates a new MCP server. The remarks and grade tools need no
// services and are always available.
func NewServer(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Report.Top == 0 && opts.Report.PhaseTop == 0 && opts.Report.ExcludePhases == nil {
		opts.Report = core.DefaultReportOptions()
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		passes:      opts.Passes,
		metricsCalc: opts.Metrics,
		alertEngine: opts.Alerts,
		squadron:    opts.Squadron,
		report:      opts.Report,
		now:         now,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "greenie", Version: opts.Version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type parseRemarksInput struct {
	Remarks []string `json:"remarks" jsonschema:"LSO remarks strings, e.g. GRADE:C : (DRX)  _LULX_  _FX_  WO(AFU)IC"`
}

type parseRemarksOutput struct {
	Errors []models.TechniqueError `json:"errors"`
	Count  int                     `json:"count"`
}

type classifyGradeInput struct {
	Grade string `json:"grade" jsonschema:"LSO grade comment, e.g. GRADE:OK : WIRE# 3"`
}

type classifyGradeOutput struct {
	Grade string   `json:"grade"`
	Score *float64 `json:"score,omitempty"`
	Trap  bool     `json:"trap"`
	Wire  *int     `json:"wire,omitempty"`
}

type errorStatsInput struct {
	Remarks       []string `json:"remarks,omitempty" jsonschema:"remarks to analyse; when empty the stored passes are used"`
	Pilot         string   `json:"pilot,omitempty" jsonschema:"restrict stored passes to this pilot"`
	Since         string   `json:"since,omitempty" jsonschema:"only passes since this age or date (e.g. 7d, 2w, 24h, 2024-03-10)"`
	Top           int      `json:"top,omitempty" jsonschema:"number of overall errors to return"`
	PhaseTop      int      `json:"phase_top,omitempty" jsonschema:"number of errors to return per phase"`
	ExcludePhases []string `json:"exclude_phases,omitempty" jsonschema:"phases to leave out of the per-phase breakdown"`
}

type errorStatsOutput struct {
	PassCount    int                      `json:"pass_count"`
	GradeCounts  map[string]int           `json:"grade_counts"`
	AverageScore *float64                 `json:"average_score,omitempty"`
	BoardingRate *float64                 `json:"boarding_rate,omitempty"`
	Top          []models.AggregatedError `json:"top"`
	ByPhase      []models.PhaseStats      `json:"by_phase"`
}

type listPassesInput struct {
	Pilot      string `json:"pilot,omitempty" jsonschema:"filter by pilot name"`
	Grade      string `json:"grade,omitempty" jsonschema:"filter by grade (e.g. ok, bolter, technique_waveoff)"`
	Since      string `json:"since,omitempty" jsonschema:"only passes since this age or date (e.g. 7d, 2w, 24h, 2024-03-10)"`
	Unassigned bool   `json:"unassigned,omitempty" jsonschema:"only passes without a pilot"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of passes to return"`
}

type passOutput struct {
	ID       int64    `json:"id"`
	Time     string   `json:"time"`
	Pilot    string   `json:"pilot,omitempty"`
	Ship     string   `json:"ship_name,omitempty"`
	Aircraft string   `json:"aircraft_type,omitempty"`
	Grade    string   `json:"grade"`
	Score    *float64 `json:"score,omitempty"`
	Trap     *bool    `json:"trap,omitempty"`
	Wire     *int     `json:"wire,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

type listPassesOutput struct {
	Passes []passOutput `json:"passes"`
	Count  int          `json:"count"`
}

type listPilotsInput struct{}

type pilotOutput struct {
	Name   string `json:"name"`
	Passes int    `json:"passes"`
}

type listPilotsOutput struct {
	Pilots []pilotOutput `json:"pilots"`
	Count  int           `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"metrics since this age or date (e.g. 7d, 24h, 2024-03-10). Defaults to 7d."`
}

type metricsOutput struct {
	FilesProcessed   int            `json:"files_processed"`
	FilesFailed      int            `json:"files_failed"`
	PassesRecorded   int            `json:"passes_recorded"`
	PassesByGrade    map[string]int `json:"passes_by_grade"`
	PassesByPilot    map[string]int `json:"passes_by_pilot"`
	UnassignedPasses int            `json:"unassigned_passes"`
	Undecodable      int            `json:"undecodable_grades"`
	AIDiscarded      int            `json:"ai_discarded"`
	InvalidPasses    int            `json:"invalid_passes"`
	Traps            int            `json:"traps"`
	BoardingRate     *float64       `json:"boarding_rate,omitempty"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "parse_remarks",
		Description: "Parse LSO remarks into coded technique errors with intensity, phase and modifiers.",
	}, s.handleParseRemarks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "classify_grade",
		Description: "Classify an LSO grade comment into a grade, default score, trap flag and wire number.",
	}, s.handleClassifyGrade)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "error_stats",
		Description: "Rank technique errors by weighted score, overall and per flight phase, for supplied remarks or stored passes.",
	}, s.handleErrorStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_passes",
		Description: "List stored carrier passes with optional pilot, grade and time filters.",
	}, s.handleListPasses)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_pilots",
		Description: "List the squadron's pilots with the number of passes each has flown.",
	}, s.handleListPilots)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get ingestion and grading metrics from the event log, including boarding rate and undecodable grades.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failed logfiles, low boarding rate, undecodable grades).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleParseRemarks(_ context.Context, _ *gomcp.CallToolRequest, input parseRemarksInput) (*gomcp.CallToolResult, parseRemarksOutput, error) {
	errs := core.RemarksErrors(input.Remarks)
	return nil, parseRemarksOutput{Errors: errs, Count: len(errs)}, nil
}

func (s *Server) handleClassifyGrade(_ context.Context, _ *gomcp.CallToolRequest, input classifyGradeInput) (*gomcp.CallToolResult, classifyGradeOutput, error) {
	if strings.TrimSpace(input.Grade) == "" {
		return errorResult("grade is required"), classifyGradeOutput{}, nil
	}

	result, err := core.ClassifyGrade(input.Grade)
	if err != nil {
		if errors.Is(err, core.ErrUndecodableGrade) {
			return errorResult(fmt.Sprintf("undecodable grade %q", input.Grade)), classifyGradeOutput{}, nil
		}
		return errorResult(fmt.Sprintf("classifying grade: %s", err)), classifyGradeOutput{}, nil
	}

	return nil, classifyGradeOutput{
		Grade: string(result.Grade),
		Score: result.Score,
		Trap:  result.Trap,
		Wire:  result.Wire,
	}, nil
}

func (s *Server) handleErrorStats(ctx context.Context, _ *gomcp.CallToolRequest, input errorStatsInput) (*gomcp.CallToolResult, errorStatsOutput, error) {
	opts := s.report
	if input.Top > 0 {
		opts.Top = input.Top
	}
	if input.PhaseTop > 0 {
		opts.PhaseTop = input.PhaseTop
	}
	if input.ExcludePhases != nil {
		opts.ExcludePhases = input.ExcludePhases
	}

	var passes []models.Pass
	if len(input.Remarks) > 0 {
		passes = make([]models.Pass, len(input.Remarks))
		for i := range input.Remarks {
			passes[i] = models.Pass{Notes: &input.Remarks[i]}
		}
	} else {
		if s.passes == nil {
			return errorResult("pass store not available; supply remarks instead"), emptyErrorStatsOutput(), nil
		}
		filter := models.PassFilter{Squadron: s.squadron, Pilot: input.Pilot}
		if input.Since != "" {
			since, err := core.ParseSince(s.now(), input.Since)
			if err != nil {
				return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyErrorStatsOutput(), nil
			}
			filter.Since = &since
		}
		var err error
		passes, err = s.passes.ListPasses(ctx, filter)
		if err != nil {
			return errorResult(fmt.Sprintf("listing passes: %s", err)), emptyErrorStatsOutput(), nil
		}
	}

	report := core.BuildErrorReport(passes, opts)
	out := errorStatsOutput{
		PassCount:    report.PassCount,
		GradeCounts:  make(map[string]int, len(report.GradeCounts)),
		AverageScore: report.AverageScore,
		BoardingRate: report.BoardingRate,
		Top:          report.Top,
		ByPhase:      report.ByPhase,
	}
	// Passes built from bare remarks carry no grade.
	if len(input.Remarks) == 0 {
		for g, n := range report.GradeCounts {
			out.GradeCounts[string(g)] = n
		}
	}
	if out.Top == nil {
		out.Top = []models.AggregatedError{}
	}
	if out.ByPhase == nil {
		out.ByPhase = []models.PhaseStats{}
	}
	return nil, out, nil
}

func (s *Server) handleListPasses(ctx context.Context, _ *gomcp.CallToolRequest, input listPassesInput) (*gomcp.CallToolResult, listPassesOutput, error) {
	empty := listPassesOutput{Passes: []passOutput{}}
	if s.passes == nil {
		return errorResult("pass store not available"), empty, nil
	}

	filter := models.PassFilter{
		Squadron:       s.squadron,
		Pilot:          input.Pilot,
		UnassignedOnly: input.Unassigned,
		Limit:          input.Limit,
	}
	if input.Grade != "" {
		grade := models.Grade(input.Grade)
		if !grade.Valid() {
			return errorResult(fmt.Sprintf("invalid grade %q", input.Grade)), empty, nil
		}
		filter.Grade = grade
	}
	if input.Since != "" {
		since, err := core.ParseSince(s.now(), input.Since)
		if err != nil {
			return errorResult(fmt.Sprintf("parsing since duration: %s", err)), empty, nil
		}
		filter.Since = &since
	}

	passes, err := s.passes.ListPasses(ctx, filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing passes: %s", err)), empty, nil
	}

	out := listPassesOutput{
		Passes: make([]passOutput, len(passes)),
		Count:  len(passes),
	}
	for i, p := range passes {
		out.Passes[i] = passToOutput(p)
	}
	return nil, out, nil
}

func (s *Server) handleListPilots(ctx context.Context, _ *gomcp.CallToolRequest, _ listPilotsInput) (*gomcp.CallToolResult, listPilotsOutput, error) {
	empty := listPilotsOutput{Pilots: []pilotOutput{}}
	if s.passes == nil {
		return errorResult("pass store not available"), empty, nil
	}

	pilots, err := s.passes.ListPilots(ctx, s.squadron)
	if err != nil {
		return errorResult(fmt.Sprintf("listing pilots: %s", err)), empty, nil
	}
	passes, err := s.passes.ListPasses(ctx, models.PassFilter{Squadron: s.squadron})
	if err != nil {
		return errorResult(fmt.Sprintf("listing passes: %s", err)), empty, nil
	}
	counts := make(map[string]int, len(pilots))
	for _, p := range passes {
		if p.Pilot != nil {
			counts[*p.Pilot]++
		}
	}

	out := listPilotsOutput{
		Pilots: make([]pilotOutput, len(pilots)),
		Count:  len(pilots),
	}
	for i, p := range pilots {
		out.Pilots[i] = pilotOutput{Name: p.Name, Passes: counts[p.Name]}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := core.ParseSince(s.now(), sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime, s.squadron)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		FilesProcessed:   metrics.FilesProcessed,
		FilesFailed:      metrics.FilesFailed,
		PassesRecorded:   metrics.PassesRecorded,
		PassesByGrade:    metrics.PassesByGrade,
		PassesByPilot:    metrics.PassesByPilot,
		UnassignedPasses: metrics.UnassignedPasses,
		Undecodable:      metrics.Undecodable,
		AIDiscarded:      metrics.AIDiscarded,
		InvalidPasses:    metrics.InvalidPasses,
		Traps:            metrics.Traps,
		BoardingRate:     metrics.BoardingRate,
		EventCount:       metrics.EventCount,
	}
	if out.PassesByGrade == nil {
		out.PassesByGrade = make(map[string]int)
	}
	if out.PassesByPilot == nil {
		out.PassesByPilot = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func passToOutput(p models.Pass) passOutput {
	return passOutput{
		ID:       p.ID,
		Time:     p.Time.UTC().Format(time.RFC3339),
		Pilot:    deref(p.Pilot),
		Ship:     deref(p.Ship),
		Aircraft: deref(p.Aircraft),
		Grade:    string(p.Grade),
		Score:    p.Score,
		Trap:     p.Trap,
		Wire:     p.Wire,
		Notes:    deref(p.Notes),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func emptyErrorStatsOutput() errorStatsOutput {
	return errorStatsOutput{
		GradeCounts: make(map[string]int),
		Top:         []models.AggregatedError{},
		ByPhase:     []models.PhaseStats{},
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		PassesByGrade: make(map[string]int),
		PassesByPilot: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
