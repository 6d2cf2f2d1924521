// Package audit exports the reservation desk's tables to monthly Excel
// reports and prunes data past the retention window.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"
)

// TableExporter provides access to database tables for export.
type TableExporter interface {
	// GetTableNames returns list of table names to export.
	GetTableNames(ctx context.Context) ([]string, error)

	// GetTableData returns rows for a table as maps.
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)

	// GetDB returns underlying sql.DB for custom queries.
	GetDB() *sql.DB
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	// SaveToFile writes the Excel file to disk.
	SaveToFile(path string) error
}

// Notifier delivers the finished report to building management.
type Notifier interface {
	// SendDocument sends a document with a short caption.
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// GenerateFilename creates a report filename like
// "reservations_2026-01.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("reservations_%s.xlsx", t.Format("2006-01"))
}

// GenerateFilenameForPreviousMonth names the report for the month that
// just closed.
func GenerateFilenameForPreviousMonth() string {
	return GenerateFilename(time.Now().AddDate(0, -1, 0))
}
