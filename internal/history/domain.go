// internal/history/domain.go
package history

import (
	"librarydesk/internal/lending"
	"time"
)

// Row is one transaction as listed on the transactions page, with the
// book's title and the user's current state of that book.
type Row struct {
	BookID          string         `json:"book_id"`
	UserID          string         `json:"user_id"`
	Title           string         `json:"title"`
	Action          lending.Action `json:"action"`
	TransactionDate time.Time      `json:"transaction_date"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	CurrentlyHeld   bool           `json:"currently_held"`
	Overdue         bool           `json:"overdue"`
}
