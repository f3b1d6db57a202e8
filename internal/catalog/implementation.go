// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	searchLimit     = 10
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrInvalidBook  = errors.New("invalid book")
	ErrEmptyQuery   = errors.New("missing search query")
)

// service implements the Service interface.
type service struct {
	store    Store
	searcher Searcher
	logger   *zap.Logger
}

// NewService creates a new catalog service instance. searcher may be nil,
// in which case searches go straight to the store.
func NewService(store Store, searcher Searcher, logger *zap.Logger) Service {
	return &service{
		store:    store,
		searcher: searcher,
		logger:   logger,
	}
}

// ListBooks returns a page of the catalog.
func (s *service) ListBooks(ctx context.Context, filter Filter) ([]*Book, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	books, err := s.store.ListBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id string) (*Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// Search finds books in the catalog, preferring the search index and
// falling back to the backend when the index is unavailable.
func (s *service) Search(ctx context.Context, query string) ([]*Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if s.searcher != nil {
		books, err := s.searcher.Search(ctx, query, searchLimit)
		if err == nil {
			return books, nil
		}
		s.logger.Warn("search index unavailable, falling back to backend",
			zap.String("query", query),
			zap.Error(err))
	}

	books, err := s.store.SearchBooks(ctx, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("backend search failed: %w", err)
	}
	return books, nil
}

// AddBook creates a new book in the catalog.
func (s *service) AddBook(ctx context.Context, in BookInput) (*Book, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidBook)
	}
	if in.Author == nil || strings.TrimSpace(*in.Author) == "" {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidBook)
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	book, err := s.store.CreateBook(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	s.logger.Info("book added", zap.String("book_id", book.ID), zap.String("title", book.Title))
	return book, nil
}

// UpdateBook applies the non-nil fields of in.
func (s *service) UpdateBook(ctx context.Context, id string, in BookInput) (*Book, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidBook)
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	book, err := s.store.UpdateBook(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return book, nil
}

// RemoveBook deletes a book from the catalog.
func (s *service) RemoveBook(ctx context.Context, id string) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove book: %w", err)
	}
	s.logger.Info("book removed", zap.String("book_id", id))
	return nil
}

func validate(in BookInput) error {
	if in.TotalCopies != nil && *in.TotalCopies < 0 {
		return fmt.Errorf("%w: total_copies cannot be negative", ErrInvalidBook)
	}
	if in.PublishedYear != nil && (*in.PublishedYear < 0 || *in.PublishedYear > 9999) {
		return fmt.Errorf("%w: published_year out of range", ErrInvalidBook)
	}
	return nil
}
