// Package export writes journal data to an Excel workbook for backup and
// offline review.
package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/tsuzuri/internal/models"
)

const (
	entriesSheet   = "Entries"
	summariesSheet = "Summaries"
)

// Workbook builds an Excel export of entries and summaries.
func Workbook(ctx context.Context, entries []*models.Entry, summaries []*models.Summary) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeEntries(f, entries); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummaries(f, summaries); err != nil {
		f.Close()
		return nil, err
	}

	// The default sheet is replaced by the real ones.
	f.DeleteSheet("Sheet1")
	return f, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(ctx context.Context, path string, entries []*models.Entry, summaries []*models.Summary) error {
	f, err := Workbook(ctx, entries, summaries)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeEntries(f *excelize.File, entries []*models.Entry) error {
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return fmt.Errorf("create entries sheet: %w", err)
	}
	headers := []string{"Date", "ID", "Emotion", "Energy", "Showed Up", "Habits", "Free Text", "Reflection", "Summary"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(entriesSheet, cell, h); err != nil {
			return err
		}
	}

	sorted := append([]*models.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	for row, e := range sorted {
		habits := make([]string, 0, len(e.Habits))
		for habit, done := range e.Habits {
			if done {
				habits = append(habits, habit)
			}
		}
		sort.Strings(habits)
		values := []any{
			e.Date(), e.ID, e.Emotion, e.Energy, e.ShowedUp,
			strings.Join(habits, ", "), e.FreeText, e.Reflection, e.Derived.Summary,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(entriesSheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummaries(f *excelize.File, summaries []*models.Summary) error {
	if _, err := f.NewSheet(summariesSheet); err != nil {
		return fmt.Errorf("create summaries sheet: %w", err)
	}
	headers := []string{"Kind", "Period Start", "Period End", "Entries", "Avg Energy", "Showed Up Rate", "Narrative"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(summariesSheet, cell, h); err != nil {
			return err
		}
	}

	sorted := append([]*models.Summary(nil), summaries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PeriodStart.Before(sorted[j].PeriodStart) })

	for row, s := range sorted {
		values := []any{
			string(s.PeriodKind), s.PeriodStart.Format("2006-01-02"), s.PeriodEnd.Format("2006-01-02"),
			s.Stats.EntryCount, s.Stats.AvgEnergy, s.Stats.ShowedUpRate, s.Narrative,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(summariesSheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
