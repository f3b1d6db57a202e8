// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	ListBooks(ctx context.Context, filter Filter) ([]*Book, error)
	GetBook(ctx context.Context, id string) (*Book, error)
	Search(ctx context.Context, query string) ([]*Book, error)
	AddBook(ctx context.Context, in BookInput) (*Book, error)
	UpdateBook(ctx context.Context, id string, in BookInput) (*Book, error)
	RemoveBook(ctx context.Context, id string) error
}

// Store is the backend surface holding the catalog.
type Store interface {
	ListBooks(ctx context.Context, filter Filter) ([]*Book, error)
	GetBook(ctx context.Context, id string) (*Book, error)
	SearchBooks(ctx context.Context, query string, limit int) ([]*Book, error)
	CreateBook(ctx context.Context, in BookInput) (*Book, error)
	UpdateBook(ctx context.Context, id string, in BookInput) (*Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// Searcher is a full-text index over the catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]*Book, error)
}
