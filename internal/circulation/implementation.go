// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"librarydesk/internal/lending"
	"librarydesk/internal/notify"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// availabilityFanout bounds the concurrent availability checks made for one
// page of books.
const (
	availabilityFanout = 8
	// settleTimeout bounds the refresh and publish that follow a committed
	// action once the caller has gone away.
	settleTimeout = 10 * time.Second
)

// service implements the Service interface.
type service struct {
	backend   Backend
	publisher notify.Publisher
	logger    *zap.Logger
	inflight  *inflight
	actions   metric.Int64Counter
	now       func() time.Time
}

// NewService creates a new circulation service instance.
func NewService(backend Backend, publisher notify.Publisher, logger *zap.Logger) Service {
	actions, err := otel.Meter("librarydesk/circulation").Int64Counter(
		"librarydesk.lending.actions",
		metric.WithDescription("Lending actions by action and outcome"),
	)
	if err != nil {
		logger.Warn("failed to create lending action counter", zap.Error(err))
	}
	return &service{
		backend:   backend,
		publisher: publisher,
		logger:    logger,
		inflight:  newInflight(),
		actions:   actions,
		now:       time.Now,
	}
}

func (s *service) Transactions(ctx context.Context, userID string) ([]lending.Transaction, error) {
	records, err := s.backend.FetchUserTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	txs, errs := lending.Normalize(records)
	for _, e := range errs {
		s.logger.Warn("skipping malformed transaction",
			zap.String("user_id", userID),
			zap.Error(e),
		)
	}
	return txs, nil
}

func (s *service) BookView(ctx context.Context, userID, bookID string) (lending.View, error) {
	views, err := s.Views(ctx, userID, []string{bookID})
	if err != nil {
		return lending.View{}, err
	}
	return views[bookID], nil
}

// Views computes the lending view of each book from one fetch of the user's
// transactions and one availability check per book, all run concurrently.
// A failed fetch degrades the affected views instead of failing the call.
func (s *service) Views(ctx context.Context, userID string, bookIDs []string) (map[string]lending.View, error) {
	var (
		txs         []lending.Transaction
		statusKnown bool
	)
	availability := make([]lending.Availability, len(bookIDs))

	var g errgroup.Group
	g.Go(func() error {
		loaded, err := s.Transactions(ctx, userID)
		if err != nil {
			s.logger.Warn("lending status unknown", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		txs, statusKnown = loaded, true
		return nil
	})

	var avail errgroup.Group
	avail.SetLimit(availabilityFanout)
	g.Go(func() error {
		for i, id := range bookIDs {
			avail.Go(func() error {
				ok, err := s.backend.CheckAvailability(ctx, id)
				if err != nil {
					s.logger.Warn("availability unknown", zap.String("book_id", id), zap.Error(err))
					return nil
				}
				availability[i] = lending.AvailabilityOf(ok)
				return nil
			})
		}
		return avail.Wait()
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	views := make(map[string]lending.View, len(bookIDs))
	for i, id := range bookIDs {
		v := lending.NewView(id, txs, statusKnown, availability[i], now)
		if s.inflight.busy(userID, id) {
			v = v.Busy()
		}
		views[id] = v
	}
	return views, nil
}

func (s *service) Issue(ctx context.Context, userID, bookID string) (lending.View, error) {
	return s.perform(ctx, lending.ActionIssue, userID, bookID, s.backend.IssueBook)
}

func (s *service) Return(ctx context.Context, userID, bookID string) (lending.View, error) {
	return s.perform(ctx, lending.ActionReturn, userID, bookID, s.backend.ReturnBook)
}

func (s *service) Renew(ctx context.Context, userID, bookID string) (lending.View, error) {
	return s.perform(ctx, lending.ActionRenew, userID, bookID, s.backend.RenewBook)
}

// perform runs one authoritative lending procedure. Local state changes only
// after the backend confirms; the returned view is re-derived from a fresh
// fetch.
func (s *service) perform(ctx context.Context, action lending.Action, userID, bookID string,
	call func(ctx context.Context, bookID, userID string) (bool, error)) (lending.View, error) {

	logger := s.logger.With(
		zap.String("action", action.String()),
		zap.String("user_id", userID),
		zap.String("book_id", bookID),
	)

	if !s.inflight.acquire(userID, bookID) {
		s.count(ctx, action, "in_flight")
		return lending.View{}, &ActionError{Action: action, BookID: bookID, Message: ErrActionInFlight.Error(), Err: ErrActionInFlight}
	}
	ok, err := call(ctx, bookID, userID)
	s.inflight.release(userID, bookID)

	if err != nil {
		logger.Error("lending action failed", zap.Error(err))
		s.count(ctx, action, "failed")
		return lending.View{}, newActionError(action, bookID, err)
	}
	if !ok {
		logger.Warn("lending action rejected")
		s.count(ctx, action, "rejected")
		return lending.View{}, &ActionError{Action: action, BookID: bookID, Message: ErrActionRejected.Error(), Err: ErrActionRejected}
	}

	logger.Info("lending action completed")
	s.count(ctx, action, "ok")

	// The backend has committed the action, so the refresh and the event
	// outlive a cancelled request.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	view, err := s.BookView(settleCtx, userID, bookID)
	if err != nil {
		return lending.View{}, newActionError(action, bookID, err)
	}

	event := notify.NewLendingEvent(action, bookID, userID, view.DueDate, s.now())
	if err := s.publisher.Publish(settleCtx, event); err != nil {
		logger.Warn("failed to publish lending event", zap.Error(err))
	}
	return view, nil
}

func (s *service) count(ctx context.Context, action lending.Action, outcome string) {
	if s.actions == nil {
		return
	}
	s.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action.String()),
		attribute.String("outcome", outcome),
	))
}
