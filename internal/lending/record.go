// internal/lending/record.go
package lending

import (
	"fmt"
	"strings"
	"time"
)

// Record is a transaction row as it arrives from the backend, before
// validation.
type Record struct {
	ID              string  `json:"id,omitempty" db:"id"`
	BookID          string  `json:"book_id" db:"book_id"`
	UserID          string  `json:"user_id" db:"user_id"`
	Action          string  `json:"action" db:"action"`
	TransactionDate string  `json:"transaction_date" db:"transaction_date"`
	DueDate         *string `json:"due_date" db:"due_date"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes the backend emits.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformedData, s)
}

// Transaction validates the record.
func (r Record) Transaction() (Transaction, error) {
	if strings.TrimSpace(r.BookID) == "" {
		return Transaction{}, fmt.Errorf("%w: missing book_id", ErrMalformedData)
	}
	action, err := ParseAction(r.Action)
	if err != nil {
		return Transaction{}, err
	}
	if strings.TrimSpace(r.TransactionDate) == "" {
		return Transaction{}, fmt.Errorf("%w: missing transaction_date", ErrMalformedData)
	}
	at, err := ParseTime(r.TransactionDate)
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		BookID:          r.BookID,
		UserID:          r.UserID,
		Action:          action,
		TransactionDate: at,
	}
	if r.DueDate != nil && strings.TrimSpace(*r.DueDate) != "" {
		due, err := ParseTime(*r.DueDate)
		if err != nil {
			return Transaction{}, err
		}
		tx.DueDate = &due
	}
	return tx, nil
}

// Normalize validates records in order. Records that fail validation are
// left out of the result and reported in the returned errors, one per
// dropped record.
func Normalize(records []Record) ([]Transaction, []error) {
	txs := make([]Transaction, 0, len(records))
	var errs []error
	for i, r := range records {
		tx, err := r.Transaction()
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d (id=%q): %w", i, r.ID, err))
			continue
		}
		txs = append(txs, tx)
	}
	return txs, errs
}
