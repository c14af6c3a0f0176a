// Package report exports a learner's progress as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/quantumtrader/academy/internal/page"
)

// Sheet names.
const (
	SummarySheet   = "Summary"
	ChecklistSheet = "Checklist"
	CreditsSheet   = "Credits"
)

// Progress is the exported state of one learner.
type Progress struct {
	LearnerID   string
	GeneratedAt time.Time
	Snapshot    page.Snapshot
	Credits     []string
}

// WriteWorkbook writes p as an .xlsx workbook with a summary sheet, one row
// per checklist item and one row per credited quiz question or exercise.
func WriteWorkbook(w io.Writer, p Progress) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	for _, name := range []string{ChecklistSheet, CreditsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	generated := p.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	prog := p.Snapshot.Progress
	summary := [][]any{
		{"Course", p.Snapshot.Title},
		{"Learner", p.LearnerID},
		{"Completed", prog.Completed},
		{"Total", prog.Total},
		{"Percent", prog.Percent},
		{"Generated", generated.UTC().Format(time.RFC3339)},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}
	if err := f.SetColStyle(SummarySheet, "A", bold); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}

	levelOf := make(map[string]string)
	for _, lv := range p.Snapshot.Levels {
		for _, id := range lv.TopicIDs {
			levelOf[id] = lv.Title
		}
	}
	titleOf := make(map[string]string)
	for _, panel := range p.Snapshot.Panels {
		titleOf[panel.TopicID] = panel.Title
	}

	checklist := [][]any{{"Level", "Topic", "Item", "Done"}}
	for _, c := range p.Snapshot.Controls {
		done := "no"
		if c.Checked {
			done = "yes"
		}
		checklist = append(checklist, []any{levelOf[c.TopicID], titleOf[c.TopicID], c.Label, done})
	}
	if err := writeRows(f, ChecklistSheet, checklist); err != nil {
		return err
	}

	credits := [][]any{{"Credit"}}
	for _, key := range p.Credits {
		credits = append(credits, []any{key})
	}
	if err := writeRows(f, CreditsSheet, credits); err != nil {
		return err
	}

	for _, sheet := range []string{ChecklistSheet, CreditsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("styling %s header: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(ChecklistSheet, "A", "C", 32); err != nil {
		return fmt.Errorf("sizing checklist columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
