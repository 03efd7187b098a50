package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// Style definitions.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("230")).
				Padding(0, 1)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	gradeGood    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	gradeFair    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	gradeBolter  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	gradeBad     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	gradeNeutral = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// renderTable draws rows under headers with a rounded border.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return cellStyle
		}).
		Render()
}

// styleForGrade colours a grade the way an LSO greenie board does.
func styleForGrade(g models.Grade) lipgloss.Style {
	switch g {
	case models.GradePerfect, models.GradeOK:
		return gradeGood
	case models.GradeFair:
		return gradeFair
	case models.GradeBolter:
		return gradeBolter
	case models.GradeCut, models.GradeTechniqueWaveoff, models.GradeNoGrade:
		return gradeBad
	default:
		return gradeNeutral
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch severity {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting as JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatScore(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 1, 64)
}

func formatWire(w *int) string {
	if w == nil {
		return "-"
	}
	return strconv.Itoa(*w)
}

func formatTrap(b *bool) string {
	switch {
	case b == nil:
		return "-"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func formatRate(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *r*100)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatModifiers(mods []string) string {
	if len(mods) == 0 {
		return "-"
	}
	return strings.Join(mods, ",")
}

func phaseLabel(phase string) string {
	if phase == "" {
		return "(none)"
	}
	return phase
}
