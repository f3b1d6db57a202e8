package backend

import (
	"context"
	"encoding/json"
	"errors"
	"librarydesk/internal/auth"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
	"librarydesk/internal/wishlist"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "service-key", WithReadRetries(3, time.Millisecond))
}

func TestFetchUserTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/transactions", r.URL.Path)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "transaction_date.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		w.Write([]byte(`[
			{"id":"t2","book_id":"b1","user_id":"u1","action":"renew","transaction_date":"2024-03-01T10:00:00Z","due_date":"2024-03-15T10:00:00Z"},
			{"id":"t1","book_id":"b1","user_id":"u1","action":"issue","transaction_date":"2024-02-01T10:00:00Z","due_date":null}
		]`))
	})

	records, err := client.FetchUserTransactions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "renew", records[0].Action)
	require.NotNil(t, records[0].DueDate)
	assert.Nil(t, records[1].DueDate)
}

func TestCallerTokenIsForwarded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		w.Write([]byte(`[]`))
	})

	ctx := auth.WithIdentity(context.Background(), &auth.Identity{UserID: "u1", Token: "user-token"})
	_, err := client.FetchUserTransactions(ctx, "u1")
	require.NoError(t, err)
}

func TestReadsRetryTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`true`))
	})

	ok, err := client.CheckAvailability(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestReadsDoNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid input syntax for type uuid"}`))
	})

	_, err := client.FetchUserTransactions(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, errors.Is(err, lending.ErrRemoteCall))
}

func TestLendingRPCIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/rest/v1/rpc/issue_book", r.URL.Path)

		var args map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "b1", args["p_book_id"])
		assert.Equal(t, "u1", args["p_user_id"])

		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"No copies available"}`))
	})

	ok, err := client.IssueBook(context.Background(), "b1", "u1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "issue_book", re.Op)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Equal(t, "No copies available", re.BackendMessage())
	assert.True(t, errors.Is(err, lending.ErrRemoteCall))
}

func TestLendingRPCFalseResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`false`))
	})

	ok, err := client.RenewBook(context.Background(), "b1", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetBookNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.GetBook(context.Background(), "missing")
	assert.True(t, errors.Is(err, catalog.ErrBookNotFound))
}

func TestSearchBooksSanitizesFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "(title.ilike.*dune  herbert*,author.ilike.*dune  herbert*)", r.URL.Query().Get("or"))
		w.Write([]byte(`[{"id":"b1","title":"Dune","author":"Frank Herbert","total_copies":2,"created_at":"2024-01-01T00:00:00Z"}]`))
	})

	books, err := client.SearchBooks(context.Background(), "dune, herbert", 10)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
}

func TestWishlistErrors(t *testing.T) {
	t.Run("duplicate add", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"duplicate key value violates unique constraint"}`))
		})
		_, err := client.AddToWishlist(context.Background(), "u1", "b1")
		assert.True(t, errors.Is(err, wishlist.ErrAlreadyWishlisted))
	})

	t.Run("remove missing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			w.Write([]byte(`[]`))
		})
		err := client.RemoveFromWishlist(context.Background(), "u1", "b1")
		assert.True(t, errors.Is(err, wishlist.ErrNotWishlisted))
	})
}

func TestUnreadableResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := client.ListProfiles(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, lending.ErrRemoteCall))
}
