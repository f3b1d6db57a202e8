// internal/history/implementation.go
package history

import (
	"context"
	"errors"
	"fmt"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAllLimit = 200
	maxAllLimit     = 1000
	titleFanout     = 8
)

// service implements the Service interface.
type service struct {
	transactions Transactions
	store        Store
	books        Books
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a new history service instance.
func NewService(transactions Transactions, store Store, books Books, logger *zap.Logger) Service {
	return &service{
		transactions: transactions,
		store:        store,
		books:        books,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *service) ForUser(ctx context.Context, userID string) ([]Row, error) {
	txs, err := s.transactions.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.rows(ctx, txs)
}

func (s *service) All(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = defaultAllLimit
	}
	if limit > maxAllLimit {
		limit = maxAllLimit
	}
	records, err := s.store.FetchAllTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	txs, errs := lending.Normalize(records)
	for _, e := range errs {
		s.logger.Warn("skipping malformed transaction", zap.Error(e))
	}
	return s.rows(ctx, txs)
}

// rows turns a transaction list into page rows. The current state of each
// book is resolved per user, so a list mixing users stays correct.
func (s *service) rows(ctx context.Context, txs []lending.Transaction) ([]Row, error) {
	byUser := make(map[string][]lending.Transaction)
	for _, tx := range txs {
		byUser[tx.UserID] = append(byUser[tx.UserID], tx)
	}
	held := make(map[string]map[string]lending.Status, len(byUser))
	for user, list := range byUser {
		held[user] = lending.ResolveAll(list)
	}

	titles, err := s.titles(ctx, txs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]Row, len(txs))
	for i, tx := range txs {
		status, isHeld := held[tx.UserID][tx.BookID]
		rows[i] = Row{
			BookID:          tx.BookID,
			UserID:          tx.UserID,
			Title:           titles[tx.BookID],
			Action:          tx.Action,
			TransactionDate: tx.TransactionDate,
			DueDate:         tx.DueDate,
			CurrentlyHeld:   isHeld,
			Overdue:         status.Overdue(now),
		}
	}
	return rows, nil
}

// titles looks up each distinct book once. Books that no longer exist, or
// that could not be loaded, are left untitled.
func (s *service) titles(ctx context.Context, txs []lending.Transaction) (map[string]string, error) {
	var (
		mu     sync.Mutex
		titles = make(map[string]string)
		seen   = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(titleFanout)
	for _, tx := range txs {
		if seen[tx.BookID] {
			continue
		}
		seen[tx.BookID] = true
		id := tx.BookID
		g.Go(func() error {
			book, err := s.books.GetBook(gctx, id)
			if errors.Is(err, catalog.ErrBookNotFound) {
				return nil
			}
			if err != nil {
				if gctx.Err() == nil {
					s.logger.Warn("failed to load book title", zap.String("book_id", id), zap.Error(err))
				}
				return nil
			}
			mu.Lock()
			titles[id] = book.Title
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return titles, nil
}
