// internal/wishlist/service.go
package wishlist

import (
	"context"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
)

// Service defines the interface for the wishlist service.
type Service interface {
	List(ctx context.Context, userID string) ([]*Item, error)
	Add(ctx context.Context, userID, bookID string) (*Entry, error)
	Remove(ctx context.Context, userID, bookID string) error
	Issue(ctx context.Context, userID, bookID string) (lending.View, error)
	Return(ctx context.Context, userID, bookID string) (lending.View, error)
}

// Store is the backend surface holding wishlist entries.
type Store interface {
	ListWishlist(ctx context.Context, userID string) ([]*Entry, error)
	AddToWishlist(ctx context.Context, userID, bookID string) (*Entry, error)
	RemoveFromWishlist(ctx context.Context, userID, bookID string) error
}

// Books looks up catalog entries.
type Books interface {
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
}

// Lending is the lending surface the wishlist routes every mutation
// through.
type Lending interface {
	Views(ctx context.Context, userID string, bookIDs []string) (map[string]lending.View, error)
	Issue(ctx context.Context, userID, bookID string) (lending.View, error)
	Return(ctx context.Context, userID, bookID string) (lending.View, error)
}
