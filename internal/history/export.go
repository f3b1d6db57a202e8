// internal/history/export.go
package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"book_id", "title", "action", "transaction_date", "due_date", "currently_held"}

func (s *service) ExportCSV(ctx context.Context, userID string, w io.Writer) error {
	rows, err := s.ForUser(ctx, userID)
	if err != nil {
		return err
	}
	return WriteCSV(w, rows)
}

// WriteCSV writes rows with a header line. Timestamps are RFC 3339 in UTC.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		due := ""
		if r.DueDate != nil {
			due = r.DueDate.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.BookID,
			r.Title,
			r.Action.String(),
			r.TransactionDate.UTC().Format(time.RFC3339),
			due,
			strconv.FormatBool(r.CurrentlyHeld),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
