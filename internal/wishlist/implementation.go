// internal/wishlist/implementation.go
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"

	"go.uber.org/zap"
)

var (
	ErrAlreadyWishlisted = errors.New("book is already in the wishlist")
	ErrNotWishlisted     = errors.New("book is not in the wishlist")
)

// service implements the Service interface.
type service struct {
	store   Store
	books   Books
	lending Lending
	logger  *zap.Logger
}

// NewService creates a new wishlist service instance. Issue and return are
// delegated to lending so the wishlist never records transactions itself.
func NewService(store Store, books Books, lending Lending, logger *zap.Logger) Service {
	return &service{
		store:   store,
		books:   books,
		lending: lending,
		logger:  logger,
	}
}

// List returns the user's entries with their books and lending views.
// Entries whose book has been removed from the catalog are still listed,
// without a book.
func (s *service) List(ctx context.Context, userID string) ([]*Item, error) {
	entries, err := s.store.ListWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	if len(entries) == 0 {
		return []*Item{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.BookID
	}
	views, err := s.lending.Views(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load lending views: %w", err)
	}

	items := make([]*Item, len(entries))
	for i, e := range entries {
		item := &Item{Entry: *e, Lending: views[e.BookID]}
		book, err := s.books.GetBook(ctx, e.BookID)
		switch {
		case err == nil:
			item.Book = book
		case errors.Is(err, catalog.ErrBookNotFound):
			item.Lending = item.Lending.Withdrawn()
		default:
			s.logger.Warn("failed to load wishlisted book", zap.String("book_id", e.BookID), zap.Error(err))
		}
		items[i] = item
	}
	return items, nil
}

func (s *service) Add(ctx context.Context, userID, bookID string) (*Entry, error) {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	entry, err := s.store.AddToWishlist(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, ErrAlreadyWishlisted) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return entry, nil
}

func (s *service) Remove(ctx context.Context, userID, bookID string) error {
	if err := s.store.RemoveFromWishlist(ctx, userID, bookID); err != nil {
		if errors.Is(err, ErrNotWishlisted) {
			return err
		}
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

func (s *service) Issue(ctx context.Context, userID, bookID string) (lending.View, error) {
	return s.lending.Issue(ctx, userID, bookID)
}

func (s *service) Return(ctx context.Context, userID, bookID string) (lending.View, error) {
	return s.lending.Return(ctx, userID, bookID)
}
