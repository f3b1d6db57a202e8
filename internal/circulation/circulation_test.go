package circulation

import (
	"context"
	"encoding/json"
	"errors"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"librarydesk/internal/notify"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errUnreachable = errors.New("connection refused")

type remoteErr struct{ msg string }

func (e *remoteErr) Error() string          { return "issue_book: " + e.msg }
func (e *remoteErr) BackendMessage() string { return e.msg }
func (e *remoteErr) Is(target error) bool   { return target == lending.ErrRemoteCall }

type fakeBackend struct {
	mu        sync.Mutex
	records   []lending.Record
	txErr     error
	available map[string]bool
	availErr  error
	result    bool
	callErr   error
	calls     []string
	block     chan struct{}
	entered   chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{available: map[string]bool{}, result: true}
}

func (f *fakeBackend) FetchUserTransactions(ctx context.Context, userID string) ([]lending.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return nil, f.txErr
	}
	return append([]lending.Record(nil), f.records...), nil
}

func (f *fakeBackend) CheckAvailability(ctx context.Context, bookID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.availErr != nil {
		return false, f.availErr
	}
	return f.available[bookID], nil
}

func (f *fakeBackend) call(name, bookID, userID string) (bool, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+":"+bookID)
	if f.callErr != nil {
		return false, f.callErr
	}
	if f.result {
		f.apply(name, bookID, userID)
	}
	return f.result, nil
}

// apply records the action the way the backend procedure would.
func (f *fakeBackend) apply(name, bookID, userID string) {
	action := map[string]string{"issue_book": "issue", "return_book": "return", "renew_book": "renew"}[name]
	rec := lending.Record{
		BookID:          bookID,
		UserID:          userID,
		Action:          action,
		TransactionDate: time.Now().UTC().Add(time.Duration(len(f.records)) * time.Second).Format(time.RFC3339Nano),
	}
	if action != "return" {
		due := time.Now().UTC().Add(14 * 24 * time.Hour).Format(time.RFC3339)
		rec.DueDate = &due
	}
	f.records = append([]lending.Record{rec}, f.records...)
}

func (f *fakeBackend) IssueBook(ctx context.Context, bookID, userID string) (bool, error) {
	return f.call("issue_book", bookID, userID)
}

func (f *fakeBackend) ReturnBook(ctx context.Context, bookID, userID string) (bool, error) {
	return f.call("return_book", bookID, userID)
}

func (f *fakeBackend) RenewBook(ctx context.Context, bookID, userID string) (bool, error) {
	return f.call("renew_book", bookID, userID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.LendingEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e notify.LendingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(b *fakeBackend, p *recordingPublisher) *service {
	return NewService(b, p, zap.NewNop()).(*service)
}

func TestViewsDegradeIndependently(t *testing.T) {
	t.Run("transactions unavailable disables everything", func(t *testing.T) {
		b := newFakeBackend()
		b.txErr = errUnreachable
		b.available["b1"] = true
		svc := newTestService(b, &recordingPublisher{})

		view, err := svc.BookView(context.Background(), "u1", "b1")
		require.NoError(t, err)
		assert.False(t, view.StatusKnown)
		assert.Equal(t, lending.AvailabilityAvailable, view.Availability)
		assert.True(t, view.Actions.Empty())
	})

	t.Run("availability unknown disables issue", func(t *testing.T) {
		b := newFakeBackend()
		b.availErr = errUnreachable
		svc := newTestService(b, &recordingPublisher{})

		view, err := svc.BookView(context.Background(), "u1", "b1")
		require.NoError(t, err)
		assert.True(t, view.StatusKnown)
		assert.Equal(t, lending.AvailabilityUnknown, view.Availability)
		assert.False(t, view.Actions.Has(lending.ActionIssue))
	})

	t.Run("held book keeps return and renew without availability", func(t *testing.T) {
		b := newFakeBackend()
		b.availErr = errUnreachable
		due := "2099-01-01T00:00:00Z"
		b.records = []lending.Record{{BookID: "b1", UserID: "u1", Action: "issue", TransactionDate: "2024-01-01T00:00:00Z", DueDate: &due}}
		svc := newTestService(b, &recordingPublisher{})

		view, err := svc.BookView(context.Background(), "u1", "b1")
		require.NoError(t, err)
		assert.True(t, view.Held)
		assert.True(t, view.Actions.Has(lending.ActionReturn))
		assert.True(t, view.Actions.Has(lending.ActionRenew))
	})
}

func TestViewsSkipMalformedRecords(t *testing.T) {
	b := newFakeBackend()
	due := "2099-01-01T00:00:00Z"
	b.records = []lending.Record{
		{BookID: "b1", UserID: "u1", Action: "lost", TransactionDate: "2024-02-01T00:00:00Z"},
		{BookID: "b1", UserID: "u1", Action: "issue", TransactionDate: "2024-01-01T00:00:00Z", DueDate: &due},
		{BookID: "", UserID: "u1", Action: "return", TransactionDate: "2024-03-01T00:00:00Z"},
	}
	svc := newTestService(b, &recordingPublisher{})

	views, err := svc.Views(context.Background(), "u1", []string{"b1", "b2"})
	require.NoError(t, err)
	assert.True(t, views["b1"].Held)
	assert.False(t, views["b2"].Held)
}

func TestIssueThenReturn(t *testing.T) {
	b := newFakeBackend()
	b.available["b1"] = true
	pub := &recordingPublisher{}
	svc := newTestService(b, pub)
	ctx := context.Background()

	view, err := svc.Issue(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, view.Held)
	assert.Equal(t, lending.NewActionSet(lending.ActionReturn, lending.ActionRenew), view.Actions)

	view, err = svc.Return(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.False(t, view.Held)
	assert.True(t, view.Actions.Has(lending.ActionIssue))

	require.Len(t, pub.events, 2)
	assert.Equal(t, "lending.issue", pub.events[0].RoutingKey())
	assert.NotNil(t, pub.events[0].DueDate)
	assert.Equal(t, "lending.return", pub.events[1].RoutingKey())
	assert.Nil(t, pub.events[1].DueDate)
}

func TestActionFailureLeavesStateUnchanged(t *testing.T) {
	b := newFakeBackend()
	b.available["b1"] = true
	b.callErr = &remoteErr{msg: "No copies available"}
	pub := &recordingPublisher{}
	svc := newTestService(b, pub)

	_, err := svc.Issue(context.Background(), "u1", "b1")
	require.Error(t, err)

	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, lending.ActionIssue, ae.Action)
	assert.Equal(t, "No copies available", ae.Message)
	assert.True(t, errors.Is(err, lending.ErrRemoteCall))
	assert.Contains(t, err.Error(), "issue")
	assert.Empty(t, pub.events)

	view, err := svc.BookView(context.Background(), "u1", "b1")
	require.NoError(t, err)
	assert.False(t, view.Held)
}

func TestRejectedAction(t *testing.T) {
	b := newFakeBackend()
	b.result = false
	svc := newTestService(b, &recordingPublisher{})

	_, err := svc.Renew(context.Background(), "u1", "b1")
	assert.True(t, errors.Is(err, ErrActionRejected))

	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, lending.ActionRenew, ae.Action)
}

func TestPublishFailureDoesNotFailAction(t *testing.T) {
	b := newFakeBackend()
	b.available["b1"] = true
	svc := newTestService(b, &recordingPublisher{err: errUnreachable})

	view, err := svc.Issue(context.Background(), "u1", "b1")
	require.NoError(t, err)
	assert.True(t, view.Held)
}

func TestActionsInFlightPerBook(t *testing.T) {
	b := newFakeBackend()
	b.available["b1"] = true
	b.available["b2"] = true
	b.block = make(chan struct{})
	b.entered = make(chan struct{}, 2)
	svc := newTestService(b, &recordingPublisher{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Issue(ctx, "u1", "b1")
		done <- err
	}()
	<-b.entered

	_, err := svc.Renew(ctx, "u1", "b1")
	assert.True(t, errors.Is(err, ErrActionInFlight))

	view, err := svc.BookView(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, view.InFlight)
	assert.True(t, view.Actions.Empty())

	other := make(chan error, 1)
	go func() {
		_, err := svc.Issue(ctx, "u1", "b2")
		other <- err
	}()
	<-b.entered

	close(b.block)
	require.NoError(t, <-done)
	require.NoError(t, <-other)

	view, err = svc.BookView(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.False(t, view.InFlight)
	assert.True(t, view.Held)
}

func TestCommittedActionSurvivesCancelledRequest(t *testing.T) {
	b := newFakeBackend()
	b.available["b1"] = true
	b.block = make(chan struct{})
	b.entered = make(chan struct{}, 1)
	pub := &recordingPublisher{}
	svc := newTestService(b, pub)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		view lending.View
		err  error
	}
	done := make(chan result, 1)
	go func() {
		v, err := svc.Issue(ctx, "u1", "b1")
		done <- result{v, err}
	}()
	<-b.entered
	cancel()
	close(b.block)

	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.view.Held)
	require.Len(t, pub.events, 1)
	assert.Equal(t, lending.ActionIssue, pub.events[0].Action)
}

func withProfile(r *http.Request, id string) *http.Request {
	p := &membership.Profile{ID: id, Role: membership.RoleStudent}
	return r.WithContext(membership.WithProfile(r.Context(), p))
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/books/{bookID}/status", h.HandleStatus)
	r.Post("/books/{bookID}/issue", h.HandleIssue)
	r.Post("/books/{bookID}/return", h.HandleReturn)
	r.Post("/books/{bookID}/renew", h.HandleRenew)
	return r
}

func TestHandler(t *testing.T) {
	b := newFakeBackend()
	b.available["b1"] = true
	router := newRouter(NewHandler(newTestService(b, &recordingPublisher{})))

	t.Run("status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withProfile(httptest.NewRequest(http.MethodGet, "/books/b1/status", nil), "u1"))
		require.Equal(t, http.StatusOK, rec.Code)

		var view map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
		assert.Equal(t, []interface{}{"issue"}, view["actions"])
		assert.Equal(t, "available", view["availability"])
	})

	t.Run("issue", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withProfile(httptest.NewRequest(http.MethodPost, "/books/b1/issue", nil), "u1"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failure names the action", func(t *testing.T) {
		b.mu.Lock()
		b.callErr = &remoteErr{msg: "Book is not issued to this user"}
		b.mu.Unlock()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withProfile(httptest.NewRequest(http.MethodPost, "/books/b1/return", nil), "u1"))
		require.Equal(t, http.StatusBadGateway, rec.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "return", body["action"])
		assert.Equal(t, "Book is not issued to this user", body["message"])
		assert.Equal(t, "error", body["level"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/books/b1/issue", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
