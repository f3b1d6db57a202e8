// internal/backend/backend.go
package backend

import (
	"context"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"librarydesk/internal/wishlist"
)

// Backend is everything this service asks of the managed backend. Both the
// REST client and the direct Postgres client implement it.
type Backend interface {
	// FetchUserTransactions returns the user's full log, most recent first.
	FetchUserTransactions(ctx context.Context, userID string) ([]lending.Record, error)
	FetchAllTransactions(ctx context.Context, limit int) ([]lending.Record, error)
	CheckAvailability(ctx context.Context, bookID string) (bool, error)
	IssueBook(ctx context.Context, bookID, userID string) (bool, error)
	ReturnBook(ctx context.Context, bookID, userID string) (bool, error)
	RenewBook(ctx context.Context, bookID, userID string) (bool, error)

	catalog.Store
	membership.Store
	wishlist.Store
}

// RPC names of the authoritative lending procedures.
const (
	rpcCheckAvailability = "check_book_availability"
	rpcIssueBook         = "issue_book"
	rpcReturnBook        = "return_book"
	rpcRenewBook         = "renew_book"
)

var (
	_ Backend = (*Client)(nil)
	_ Backend = (*PostgresClient)(nil)
)
