package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"seatflow/internal/models"
)

// BookingSource supplies the historical booking collection for export.
type BookingSource interface {
	ListAll(ctx context.Context) ([]models.Booking, error)
}

// Exporter writes booking history and audit entries to an Excel
// workbook for offline reporting.
type Exporter struct {
	bookings BookingSource
	recorder *StoreRecorder
}

// NewExporter constructs an Exporter.
func NewExporter(bookings BookingSource, recorder *StoreRecorder) *Exporter {
	return &Exporter{bookings: bookings, recorder: recorder}
}

var bookingColumns = []string{
	"id", "seat_id", "user_id", "user_name", "status",
	"scheduled_start", "scheduled_end", "entry_time", "exit_time",
	"duration_minutes", "original_end", "created_at",
}

var auditColumns = []string{"id", "action", "target_id", "actor_id", "reason", "at"}

// Export writes the workbook to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	bookings, err := e.bookings.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	file.SetSheetName("Sheet1", "bookings")
	if err := writeHeader(file, "bookings", bookingColumns); err != nil {
		return err
	}
	for i, b := range bookings {
		row := []interface{}{
			b.ID, b.SeatID, b.UserID, b.UserName, string(b.Status),
			formatTime(&b.ScheduledStart), formatTime(&b.ScheduledEnd),
			formatTime(b.EntryTime), formatTime(b.ExitTime),
			b.DurationMinutes, formatTime(b.OriginalEnd), formatTime(&b.CreatedAt),
		}
		if err := writeRow(file, "bookings", i+2, row); err != nil {
			return err
		}
	}

	if e.recorder != nil {
		entries, err := e.recorder.List(ctx)
		if err != nil {
			return fmt.Errorf("load audit entries: %w", err)
		}
		if _, err := file.NewSheet("audit"); err != nil {
			return fmt.Errorf("create audit sheet: %w", err)
		}
		if err := writeHeader(file, "audit", auditColumns); err != nil {
			return err
		}
		for i, a := range entries {
			row := []interface{}{a.ID, a.Action, a.TargetID, a.ActorID, a.Reason, formatTime(&a.At)}
			if err := writeRow(file, "audit", i+2, row); err != nil {
				return err
			}
		}
	}

	return file.Write(w)
}

func writeHeader(file *excelize.File, sheet string, columns []string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := writeRow(file, sheet, 1, row); err != nil {
		return err
	}
	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, rowNum int, row []interface{}) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
