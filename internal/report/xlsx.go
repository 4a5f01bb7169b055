// Package report renders cohort evaluations as a spreadsheet for care teams.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/drfirst/go-hfcore/internal/cohort"
	"github.com/drfirst/go-hfcore/internal/engine"
)

// SheetName is the sheet holding one row per patient medication.
const SheetName = "Evaluations"

// Header lists the columns in order.
var Header = []string{
	"Patient ID",
	"Medication",
	"Current Daily Dose",
	"Minimum Daily Dose",
	"Target Daily Dose",
	"Unit",
	"Medication Category",
	"Symptom Category",
	"Dizziness Category",
	"Weight Category",
	"Key Points",
	"Error",
}

var columnWidths = []float64{14, 22, 18, 18, 18, 8, 30, 26, 20, 20, 80, 50}

// WriteXLSX writes results as an XLSX workbook. A patient with several
// medications gets one row per medication; a failed or medication-free
// patient gets a single row.
func WriteXLSX(w io.Writer, results []cohort.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create wrap style: %w", err)
	}

	if err := writeRow(f, 1, toCells(Header)); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	row := 2
	for _, r := range results {
		for _, cells := range rowsFor(r) {
			if err := writeRow(f, row, cells); err != nil {
				return err
			}
			row++
		}
	}
	if row > 2 {
		first, _ := excelize.CoordinatesToCellName(len(Header)-1, 2)
		end, _ := excelize.CoordinatesToCellName(len(Header), row-1)
		if err := f.SetCellStyle(SheetName, first, end, wrapStyle); err != nil {
			return fmt.Errorf("set wrap style: %w", err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func rowsFor(r cohort.Result) [][]any {
	if r.Err != nil || r.State == nil {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return [][]any{{r.PatientID, "", "", "", "", "", "", "", "", "", "", msg}}
	}

	s := r.State
	keyPoints := strings.Join(s.Messages, "\n")
	base := func(med engine.MedicationState) []any {
		name := med.Display
		if name == "" {
			name = med.MedicationID
		}
		return []any{
			s.PatientID,
			name,
			formatDoses(med.CurrentDose),
			formatDoses(med.MinimumDose),
			formatDoses(med.TargetDose),
			s.Unit,
			string(s.Categories.Medication),
			string(s.Categories.Symptom),
			string(s.Categories.Dizziness),
			string(s.Categories.Weight),
			keyPoints,
			"",
		}
	}

	if len(s.Medications) == 0 {
		return [][]any{base(engine.MedicationState{})}
	}
	rows := make([][]any, 0, len(s.Medications))
	for _, med := range s.Medications {
		rows = append(rows, base(med))
	}
	return rows
}

// formatDoses joins per-ingredient doses with " / ".
func formatDoses(doses []float64) string {
	parts := make([]string, len(doses))
	for i, d := range doses {
		parts[i] = strconv.FormatFloat(d, 'f', -1, 64)
	}
	return strings.Join(parts, " / ")
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func writeRow(f *excelize.File, row int, cells []any) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, start, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
