package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes the report as one workbook with a sheet per table and
// returns the path written.
func (r *Report) WriteXLSX(dir string) (string, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)
	firstSheet := true

	for _, t := range r.tables() {
		sheet := safeSheetName(t.Title)
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return "", err
		}
		if firstSheet {
			f.SetActiveSheet(idx)
			if defaultSheet != "" && defaultSheet != sheet {
				_ = f.DeleteSheet(defaultSheet)
			}
			firstSheet = false
		}

		// Track widths for a simple "auto-fit" (Excelize doesn't do real autofit).
		colWidths := make([]int, len(t.Headers))
		for i, h := range t.Headers {
			_ = f.SetCellValue(sheet, cell(i+1, 1), h)
			colWidths[i] = displayWidth(h)
		}
		for ri, row := range t.Rows {
			for ci, val := range row {
				_ = f.SetCellValue(sheet, cell(ci+1, ri+2), val)
				if ri < 300 {
					if w := displayWidth(val); w > colWidths[ci] {
						colWidths[ci] = w
					}
				}
			}
		}
		applyColumnWidths(f, sheet, colWidths)
		freezeHeader(f, sheet)
	}

	name := fmt.Sprintf("%s_GoodHound.xlsx", r.ScanDate)
	path := avoidCollision(filepath.Join(dir, name))
	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

func safeSheetName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "Sheet"
	}
	repl := strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")
	s = repl.Replace(s)
	if len(s) > 31 {
		s = s[:31]
	}
	return s
}

func cell(col, row int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("%s%d", name, row)
}

func applyColumnWidths(f *excelize.File, sheet string, widths []int) {
	// widths in approximate characters, clamped to keep Excel readable.
	for i, w := range widths {
		if w <= 0 {
			continue
		}
		if w < 10 {
			w = 10
		}
		if w > 60 {
			w = 60
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheet, colName, colName, float64(w))
	}
}

func freezeHeader(f *excelize.File, sheet string) {
	_ = f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
		Selection: []excelize.Selection{{
			SQRef:      "A2:Z1048576",
			ActiveCell: "A2",
			Pane:       "bottomLeft",
		}},
	})
}

func displayWidth(s string) int {
	// rough "Excel-like" width in monospace chars, capped for long strings.
	w := 0
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		w++
		if w > 200 {
			break
		}
	}
	return w
}
