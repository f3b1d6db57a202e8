package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"librarydesk/internal/catalog"
	"librarydesk/internal/httpx"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	entries map[string][]*Entry
}

func (f *fakeStore) ListWishlist(ctx context.Context, userID string) ([]*Entry, error) {
	return f.entries[userID], nil
}

func (f *fakeStore) AddToWishlist(ctx context.Context, userID, bookID string) (*Entry, error) {
	for _, e := range f.entries[userID] {
		if e.BookID == bookID {
			return nil, ErrAlreadyWishlisted
		}
	}
	e := &Entry{ID: fmt.Sprintf("w%d", len(f.entries[userID])+1), UserID: userID, BookID: bookID, CreatedAt: time.Now()}
	f.entries[userID] = append([]*Entry{e}, f.entries[userID]...)
	return e, nil
}

func (f *fakeStore) RemoveFromWishlist(ctx context.Context, userID, bookID string) error {
	for i, e := range f.entries[userID] {
		if e.BookID == bookID {
			f.entries[userID] = append(f.entries[userID][:i], f.entries[userID][i+1:]...)
			return nil
		}
	}
	return ErrNotWishlisted
}

type fakeBooks map[string]*catalog.Book

func (f fakeBooks) GetBook(ctx context.Context, id string) (*catalog.Book, error) {
	if b, ok := f[id]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
}

// fakeLending records which path each mutation took.
type fakeLending struct {
	held    map[string]bool
	calls   []string
	failing error
}

func (f *fakeLending) view(bookID string) lending.View {
	status := lending.Status{Held: f.held[bookID]}
	return lending.View{
		BookID:       bookID,
		Held:         status.Held,
		StatusKnown:  true,
		Availability: lending.AvailabilityAvailable,
		Actions:      lending.Eligible(status, true, lending.AvailabilityAvailable),
	}
}

func (f *fakeLending) Views(ctx context.Context, userID string, bookIDs []string) (map[string]lending.View, error) {
	out := make(map[string]lending.View, len(bookIDs))
	for _, id := range bookIDs {
		out[id] = f.view(id)
	}
	return out, nil
}

func (f *fakeLending) Issue(ctx context.Context, userID, bookID string) (lending.View, error) {
	f.calls = append(f.calls, "issue:"+bookID)
	if f.failing != nil {
		return lending.View{}, f.failing
	}
	f.held[bookID] = true
	return f.view(bookID), nil
}

func (f *fakeLending) Return(ctx context.Context, userID, bookID string) (lending.View, error) {
	f.calls = append(f.calls, "return:"+bookID)
	if f.failing != nil {
		return lending.View{}, f.failing
	}
	f.held[bookID] = false
	return f.view(bookID), nil
}

func newFixture() (*fakeStore, *fakeLending, Service) {
	store := &fakeStore{entries: map[string][]*Entry{}}
	books := fakeBooks{
		"b1": {ID: "b1", Title: "Dune"},
		"b2": {ID: "b2", Title: "Emma"},
	}
	lend := &fakeLending{held: map[string]bool{}}
	return store, lend, NewService(store, books, lend, zap.NewNop())
}

func TestAddListRemove(t *testing.T) {
	_, _, svc := newFixture()
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", "b1")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u1", "b1")
	assert.True(t, errors.Is(err, ErrAlreadyWishlisted))
	_, err = svc.Add(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, catalog.ErrBookNotFound))

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Book.Title)
	assert.True(t, items[0].Lending.Actions.Has(lending.ActionIssue))

	require.NoError(t, svc.Remove(ctx, "u1", "b1"))
	assert.True(t, errors.Is(svc.Remove(ctx, "u1", "b1"), ErrNotWishlisted))

	items, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListKeepsEntriesForRemovedBooks(t *testing.T) {
	store, _, svc := newFixture()
	store.entries["u1"] = []*Entry{{ID: "w1", UserID: "u1", BookID: "gone"}}

	items, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Book)
	assert.True(t, items[0].Lending.Actions.Empty())
}

func TestListHeldRemovedBookCanStillBeReturned(t *testing.T) {
	store, lend, svc := newFixture()
	store.entries["u1"] = []*Entry{{ID: "w1", UserID: "u1", BookID: "gone"}}
	lend.held["gone"] = true

	items, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Book)
	assert.True(t, items[0].Lending.Held)
	assert.True(t, items[0].Lending.Actions.Has(lending.ActionReturn))
	assert.False(t, items[0].Lending.Actions.Has(lending.ActionIssue))

	_, err = svc.Return(context.Background(), "u1", "gone")
	require.NoError(t, err)
	assert.Equal(t, []string{"return:gone"}, lend.calls)
}

func TestMutationsGoThroughLending(t *testing.T) {
	_, lend, svc := newFixture()
	ctx := context.Background()

	view, err := svc.Issue(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, view.Held)

	view, err = svc.Return(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.False(t, view.Held)

	assert.Equal(t, []string{"issue:b1", "return:b1"}, lend.calls)
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/wishlist", h.HandleList)
	r.Post("/wishlist/{bookID}", h.HandleAdd)
	r.Delete("/wishlist/{bookID}", h.HandleRemove)
	r.Post("/wishlist/{bookID}/issue", h.HandleIssue)
	r.Post("/wishlist/{bookID}/return", h.HandleReturn)
	return r
}

func asUser(r *http.Request) *http.Request {
	return r.WithContext(membership.WithProfile(r.Context(), &membership.Profile{ID: "u1", Role: membership.RoleStudent}))
}

func TestHandler(t *testing.T) {
	_, lend, svc := newFixture()
	var reported error
	router := newRouter(NewHandler(svc, func(w http.ResponseWriter, err error) {
		reported = err
		httpx.Error(w, http.StatusBadGateway, "issue", err.Error())
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/wishlist/b2", nil)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/wishlist/b2", nil)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/wishlist", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "b2", items[0]["book_id"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/wishlist/b2/issue", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	lend.failing = errors.New("issue failed: No copies available")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/wishlist/b2/issue", nil)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, lend.failing, reported)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/wishlist/b1", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
