package audit

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// reportTimeLayout is how timestamps render in exported reports, matching
// the schedule sheet.
const reportTimeLayout = "2006-01-02 15:04:05"

// Column widths are fitted to content within these bounds so unit ids
// stay readable and long descriptions do not blow up the sheet.
const (
	minColWidth = 10
	maxColWidth = 48
)

// ExcelizeWriter implements ExcelWriter on top of excelize.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	colWidths    map[string][]float64
}

// NewExcelizeWriter creates an empty workbook.
func NewExcelizeWriter() ExcelWriter {
	return &ExcelizeWriter{
		file:      excelize.NewFile(),
		colWidths: make(map[string][]float64),
	}
}

// AddSheet starts a new sheet and makes it current.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel caps sheet names at 31 chars.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		// Reuse the default sheet for the first table.
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes a bold header row on the current sheet and freezes
// it so it stays visible while scrolling the report.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
		w.trackWidth(i, col)
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}

	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	w.currentRow++
	return nil
}

// WriteRow appends a data row on the current sheet.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		rendered := renderCell(val)
		if err := w.file.SetCellValue(w.currentSheet, cell, rendered); err != nil {
			return err
		}
		w.trackWidth(i, fmt.Sprint(rendered))
	}

	w.currentRow++
	return nil
}

// renderCell normalizes values for the report. Timestamps become plain
// strings in reportTimeLayout instead of Excel serial dates.
func renderCell(val interface{}) interface{} {
	switch v := val.(type) {
	case time.Time:
		return v.Format(reportTimeLayout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(reportTimeLayout)
	case nil:
		return ""
	default:
		return val
	}
}

func (w *ExcelizeWriter) trackWidth(col int, content string) {
	widths := w.colWidths[w.currentSheet]
	for len(widths) <= col {
		widths = append(widths, minColWidth)
	}
	// Rough fit: one width unit per character plus padding.
	if need := float64(len(content)) + 2; need > widths[col] {
		if need > maxColWidth {
			need = maxColWidth
		}
		widths[col] = need
	}
	w.colWidths[w.currentSheet] = widths
}

// applyWidths sizes every tracked column before the workbook is written.
func (w *ExcelizeWriter) applyWidths() {
	for sheet, widths := range w.colWidths {
		for i, width := range widths {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				continue
			}
			_ = w.file.SetColWidth(sheet, name, name, width)
		}
	}
}

// Save streams the workbook to the writer.
func (w *ExcelizeWriter) Save(wr io.Writer) error {
	w.applyWidths()
	return w.file.Write(wr)
}

// SaveToFile writes the workbook to disk.
func (w *ExcelizeWriter) SaveToFile(path string) error {
	w.applyWidths()
	return w.file.SaveAs(path)
}

// Close releases the workbook.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
