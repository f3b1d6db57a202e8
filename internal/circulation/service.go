// internal/circulation/service.go
package circulation

import (
	"context"
	"librarydesk/internal/lending"
)

// Service defines the interface for the circulation service.
type Service interface {
	// Transactions returns the user's well-formed transactions, most recent
	// first. Malformed records are logged and left out.
	Transactions(ctx context.Context, userID string) ([]lending.Transaction, error)
	BookView(ctx context.Context, userID, bookID string) (lending.View, error)
	Views(ctx context.Context, userID string, bookIDs []string) (map[string]lending.View, error)
	Issue(ctx context.Context, userID, bookID string) (lending.View, error)
	Return(ctx context.Context, userID, bookID string) (lending.View, error)
	Renew(ctx context.Context, userID, bookID string) (lending.View, error)
}

// Backend is the lending surface of the managed backend.
type Backend interface {
	FetchUserTransactions(ctx context.Context, userID string) ([]lending.Record, error)
	CheckAvailability(ctx context.Context, bookID string) (bool, error)
	IssueBook(ctx context.Context, bookID, userID string) (bool, error)
	ReturnBook(ctx context.Context, bookID, userID string) (bool, error)
	RenewBook(ctx context.Context, bookID, userID string) (bool, error)
}
