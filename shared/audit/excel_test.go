package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcelizeWriter(t *testing.T) {
	w := NewExcelizeWriter().(*ExcelizeWriter)
	defer w.Close()

	require.NoError(t, w.AddSheet("reservations"))
	require.NoError(t, w.WriteHeader([]string{"id", "unit_id", "start_time", "description"}))

	start := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, w.WriteRow([]interface{}{
		int64(1), "101-1203", start, "elevator for a sofa delivery, morning slot",
	}))

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))
	assert.NotZero(t, buf.Len())

	// Timestamps render as report strings, not Excel serial dates.
	got, err := w.file.GetCellValue("reservations", "C2")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10 09:30:00", got)
}

func TestRenderCell(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "2026-01-02 15:04:05", renderCell(ts))
	assert.Equal(t, "2026-01-02 15:04:05", renderCell(&ts))
	assert.Equal(t, "", renderCell((*time.Time)(nil)))
	assert.Equal(t, "", renderCell(nil))
	assert.Equal(t, int64(7), renderCell(int64(7)))
}

func TestTrackWidthBounds(t *testing.T) {
	w := NewExcelizeWriter().(*ExcelizeWriter)
	defer w.Close()

	require.NoError(t, w.AddSheet("t"))
	w.trackWidth(0, "ab")
	w.trackWidth(1, string(bytes.Repeat([]byte("x"), 200)))

	widths := w.colWidths["t"]
	assert.Equal(t, float64(minColWidth), widths[0])
	assert.Equal(t, float64(maxColWidth), widths[1])
}
