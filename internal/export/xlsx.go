// Package export writes cutting plans to spreadsheet and PDF documents.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

const (
	summarySheet  = "Summary"
	patternsSheet = "Patterns"
	leftoverSheet = "Leftovers"
)

// WriteXLSX writes plan as a workbook with a summary sheet, one row per
// pattern group, and the details that could not be placed.
func WriteXLSX(w io.Writer, plan cutting.CuttingPlan) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{patternsSheet, leftoverSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"Stock capacity", plan.Capacity},
		{"Tubes needed", plan.TotalUnitsUsed},
		{"Total waste", plan.TotalWaste},
		{"Efficiency %", efficiencyPercent(plan)},
		{"Complete", plan.Complete},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	patterns := [][]any{{"Pattern", "Tubes", "Pieces per tube", "Waste per tube", "Total waste"}}
	for _, g := range plan.Groups {
		rep := g.Units[0]
		patterns = append(patterns, []any{g.Label, g.UnitCount, describePieces(rep), rep.RemainingCapacity, g.TotalWaste})
	}
	if err := writeRows(f, patternsSheet, patterns); err != nil {
		return err
	}

	leftovers := [][]any{{"Detail", "Length", "Quantity"}}
	for _, d := range plan.LeftoverDetails {
		leftovers = append(leftovers, []any{d.Name, d.Length, d.Amount})
	}
	if err := writeRows(f, leftoverSheet, leftovers); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell reference: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// describePieces renders the unit's pieces in placement order, e.g. "E 2900, C 1200".
func describePieces(unit cutting.StockUnit) string {
	parts := make([]string, 0, len(unit.PlacedPieces))
	for _, p := range unit.PlacedPieces {
		parts = append(parts, fmt.Sprintf("%s %g", p.Name, p.Length))
	}
	return strings.Join(parts, ", ")
}

func efficiencyPercent(plan cutting.CuttingPlan) float64 {
	return plan.Efficiency() * 100
}
