// Package export writes the signal feed, integration health, and coverage
// to an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// Sheet names.
const (
	SheetSignals      = "Signals"
	SheetIntegrations = "Integrations"
	SheetCoverage     = "Coverage"
)

var signalHeaders = []string{
	"Time", "Source", "Category", "Confidence", "Title", "Owner", "Sender", "Deadline", "Channel", "Link",
}

var integrationHeaders = []string{
	"Source", "Status", "Connected", "Workspace", "Missing Scopes", "Last Sync", "Last Sync Error", "Action",
}

// Report is everything a workbook holds.
type Report struct {
	GeneratedAt time.Time
	Signals     []signal.Signal
	Health      []signal.IntegrationHealth
	Coverage    aggregate.Coverage
}

// Write renders r as an xlsx workbook to w.
func Write(w io.Writer, r Report) error {
	f, err := build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Save renders r to path.
func Save(path string, r Report) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// DefaultFilename names a workbook after its generation time.
func DefaultFilename(t time.Time) string {
	return fmt.Sprintf("signals_%s.xlsx", t.Format("2006-01-02_15-04-05"))
}

func build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	// The default sheet becomes the signals sheet so it opens first.
	if err := f.SetSheetName("Sheet1", SheetSignals); err != nil {
		_ = f.Close()
		return nil, err
	}
	steps := []func(*excelize.File, Report, styles) error{
		writeSignals,
		writeIntegrations,
		writeCoverage,
	}
	for _, step := range steps {
		if err := step(f, r, st); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

type styles struct {
	header int
	label  int
	pct    int
}

func newStyles(f *excelize.File) (styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#000000", Style: 1},
		{Type: "right", Color: "#000000", Style: 1},
		{Type: "top", Color: "#000000", Style: 1},
		{Type: "bottom", Color: "#000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create header style: %w", err)
	}
	label, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#B4C7E7"}, Pattern: 1},
		Font:   &excelize.Font{Bold: true},
		Border: border,
	})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create label style: %w", err)
	}
	pct, err := f.NewStyle(&excelize.Style{NumFmt: 9})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create percent style: %w", err)
	}
	return styles{header: header, label: label, pct: pct}, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeSignals(f *excelize.File, r Report, st styles) error {
	if err := writeHeader(f, SheetSignals, signalHeaders, st.header); err != nil {
		return fmt.Errorf("signals header: %w", err)
	}
	title := cases.Title(language.English)
	for i, s := range r.Signals {
		row := i + 2
		deadline := ""
		if s.Deadline != nil {
			deadline = s.Deadline.UTC().Format(time.RFC3339)
		}
		values := []any{
			s.Timestamp.UTC().Format(time.RFC3339),
			s.Source.DisplayName(),
			title.String(string(s.Category)),
			s.Confidence,
			s.Title,
			s.Owner,
			s.Sender,
			deadline,
			s.Channel,
			s.URL,
		}
		if err := writeRow(f, SheetSignals, row, values); err != nil {
			return fmt.Errorf("signal row %d: %w", row, err)
		}
		if s.URL != "" {
			link, _ := excelize.CoordinatesToCellName(len(signalHeaders), row)
			if err := f.SetCellHyperLink(SheetSignals, link, s.URL, "External"); err != nil {
				return fmt.Errorf("signal link %d: %w", row, err)
			}
		}
	}
	if len(r.Signals) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(signalHeaders), len(r.Signals)+1)
		if err := f.AutoFilter(SheetSignals, "A1:"+last, nil); err != nil {
			return fmt.Errorf("signals filter: %w", err)
		}
	}
	widths := map[string]float64{"A": 22, "B": 12, "C": 14, "D": 12, "E": 60, "F": 18, "G": 18, "H": 22, "I": 18, "J": 50}
	for col, w := range widths {
		if err := f.SetColWidth(SheetSignals, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func writeIntegrations(f *excelize.File, r Report, st styles) error {
	if _, err := f.NewSheet(SheetIntegrations); err != nil {
		return err
	}
	if err := writeHeader(f, SheetIntegrations, integrationHeaders, st.header); err != nil {
		return fmt.Errorf("integrations header: %w", err)
	}
	title := cases.Title(language.English)
	for i, h := range r.Health {
		lastSync := ""
		if h.LastSyncAt != nil {
			lastSync = h.LastSyncAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			h.Source.DisplayName(),
			title.String(strings.ReplaceAll(string(h.Status), "_", " ")),
			h.Connected,
			h.Workspace,
			strings.Join(h.MissingScopes, ", "),
			lastSync,
			h.LastSyncError,
			h.Guidance(),
		}
		if err := writeRow(f, SheetIntegrations, i+2, values); err != nil {
			return fmt.Errorf("integration row %d: %w", i+2, err)
		}
	}
	return f.SetColWidth(SheetIntegrations, "A", "H", 20)
}

func writeCoverage(f *excelize.File, r Report, st styles) error {
	if _, err := f.NewSheet(SheetCoverage); err != nil {
		return err
	}
	c := r.Coverage
	rows := [][]any{
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Overall", cases.Title(language.English).String(string(c.Overall))},
		{"Coverage", float64(c.Percentage) / 100},
		{"Communication", float64(c.CommunicationCoverage) / 100},
		{"Tasks", float64(c.TaskCoverage) / 100},
		{"Connected", joinNames(c.ConnectedTools)},
		{"Suggested", joinNames(c.MissingTools)},
		{"Message", c.Message},
	}
	for i, values := range rows {
		row := i + 1
		if err := writeRow(f, SheetCoverage, row, values); err != nil {
			return fmt.Errorf("coverage row %d: %w", row, err)
		}
		label := fmt.Sprintf("A%d", row)
		if err := f.SetCellStyle(SheetCoverage, label, label, st.label); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetCoverage, "B3", "B5", st.pct); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetCoverage, "A", "A", 16); err != nil {
		return err
	}
	return f.SetColWidth(SheetCoverage, "B", "B", 60)
}

func joinNames(sources []signal.Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.DisplayName()
	}
	return strings.Join(names, ", ")
}
