// internal/history/service.go
package history

import (
	"context"
	"io"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
)

// Service defines the interface for the history service.
type Service interface {
	// ForUser lists the user's transactions, most recent first.
	ForUser(ctx context.Context, userID string) ([]Row, error)
	// All lists the most recent transactions of every user.
	All(ctx context.Context, limit int) ([]Row, error)
	// ExportCSV writes the user's history as CSV.
	ExportCSV(ctx context.Context, userID string, w io.Writer) error
}

// Transactions loads a user's normalized transaction log.
type Transactions interface {
	Transactions(ctx context.Context, userID string) ([]lending.Transaction, error)
}

// Store is the backend surface listing every user's transactions.
type Store interface {
	FetchAllTransactions(ctx context.Context, limit int) ([]lending.Record, error)
}

// Books looks up catalog entries.
type Books interface {
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
}
