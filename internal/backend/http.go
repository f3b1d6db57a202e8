// internal/backend/http.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"librarydesk/internal/auth"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"librarydesk/internal/wishlist"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const transactionColumns = "id,book_id,user_id,action,transaction_date,due_date"

// Client talks to the backend's REST and RPC endpoints. Calls carry the
// caller's access token when one is in the context so the backend's
// row-level rules apply to the caller; otherwise the service key is used.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReadRetries sets how many times a read is attempted and the first
// retry interval. Mutations are never retried.
func WithReadRetries(tries uint, initial time.Duration) Option {
	return func(c *Client) {
		c.maxTries = tries
		c.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = 10 * initial
			return b
		}
	}
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tracer:     otel.Tracer("librarydesk/backend"),
	}
	WithReadRetries(3, 200*time.Millisecond)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUserTransactions returns the user's transaction log, most recent first.
func (c *Client) FetchUserTransactions(ctx context.Context, userID string) ([]lending.Record, error) {
	q := url.Values{}
	q.Set("select", transactionColumns)
	q.Set("user_id", "eq."+userID)
	q.Set("order", "transaction_date.desc")

	var records []lending.Record
	if err := c.read(ctx, "fetch_user_transactions", "/rest/v1/transactions", q, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchAllTransactions returns the most recent transactions of every user.
func (c *Client) FetchAllTransactions(ctx context.Context, limit int) ([]lending.Record, error) {
	q := url.Values{}
	q.Set("select", transactionColumns)
	q.Set("order", "transaction_date.desc")
	q.Set("limit", strconv.Itoa(limit))

	var records []lending.Record
	if err := c.read(ctx, "fetch_all_transactions", "/rest/v1/transactions", q, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CheckAvailability asks the backend whether a copy of the book is free.
func (c *Client) CheckAvailability(ctx context.Context, bookID string) (bool, error) {
	var available bool
	err := c.rpc(ctx, rpcCheckAvailability, map[string]string{"p_book_id": bookID}, &available, true)
	return available, err
}

// IssueBook calls the authoritative issue procedure.
func (c *Client) IssueBook(ctx context.Context, bookID, userID string) (bool, error) {
	return c.lendingRPC(ctx, rpcIssueBook, bookID, userID)
}

// ReturnBook calls the authoritative return procedure.
func (c *Client) ReturnBook(ctx context.Context, bookID, userID string) (bool, error) {
	return c.lendingRPC(ctx, rpcReturnBook, bookID, userID)
}

// RenewBook calls the authoritative renew procedure.
func (c *Client) RenewBook(ctx context.Context, bookID, userID string) (bool, error) {
	return c.lendingRPC(ctx, rpcRenewBook, bookID, userID)
}

func (c *Client) lendingRPC(ctx context.Context, fn, bookID, userID string) (bool, error) {
	var ok bool
	args := map[string]string{"p_book_id": bookID, "p_user_id": userID}
	if err := c.rpc(ctx, fn, args, &ok, false); err != nil {
		return false, err
	}
	return ok, nil
}

// ListBooks returns a page of books ordered by title.
func (c *Client) ListBooks(ctx context.Context, filter catalog.Filter) ([]*catalog.Book, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "title.asc")
	q.Set("limit", strconv.Itoa(filter.Limit))
	q.Set("offset", strconv.Itoa(filter.Offset))
	if filter.Genre != "" {
		q.Set("genre", "eq."+filter.Genre)
	}

	var books []*catalog.Book
	if err := c.read(ctx, "list_books", "/rest/v1/books", q, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBook retrieves one book.
func (c *Client) GetBook(ctx context.Context, id string) (*catalog.Book, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)

	var books []*catalog.Book
	if err := c.read(ctx, "get_book", "/rest/v1/books", q, &books); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
	}
	return books[0], nil
}

// SearchBooks matches query against titles and authors.
func (c *Client) SearchBooks(ctx context.Context, query string, limit int) ([]*catalog.Book, error) {
	pattern := "*" + sanitizeFilter(query) + "*"
	q := url.Values{}
	q.Set("select", "*")
	q.Set("or", fmt.Sprintf("(title.ilike.%s,author.ilike.%s)", pattern, pattern))
	q.Set("limit", strconv.Itoa(limit))

	var books []*catalog.Book
	if err := c.read(ctx, "search_books", "/rest/v1/books", q, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// CreateBook inserts a book.
func (c *Client) CreateBook(ctx context.Context, in catalog.BookInput) (*catalog.Book, error) {
	var books []*catalog.Book
	if err := c.write(ctx, "create_book", http.MethodPost, "/rest/v1/books", nil, in, &books); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, &RemoteError{Op: "create_book", Message: "backend returned no row"}
	}
	return books[0], nil
}

// UpdateBook patches a book.
func (c *Client) UpdateBook(ctx context.Context, id string, in catalog.BookInput) (*catalog.Book, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)

	var books []*catalog.Book
	if err := c.write(ctx, "update_book", http.MethodPatch, "/rest/v1/books", q, in, &books); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
	}
	return books[0], nil
}

// DeleteBook removes a book.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	var books []*catalog.Book
	if err := c.write(ctx, "delete_book", http.MethodDelete, "/rest/v1/books", q, nil, &books); err != nil {
		return err
	}
	if len(books) == 0 {
		return fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
	}
	return nil
}

// GetProfile retrieves a user's profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (*membership.Profile, error) {
	q := url.Values{}
	q.Set("select", "id,email,full_name,role,created_at")
	q.Set("id", "eq."+userID)

	var profiles []*membership.Profile
	if err := c.read(ctx, "get_profile", "/rest/v1/profiles", q, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, &RemoteError{Op: "get_profile", StatusCode: http.StatusNotFound, Message: "profile not found"}
	}
	return profiles[0], nil
}

// ListProfiles returns all profiles, newest first.
func (c *Client) ListProfiles(ctx context.Context) ([]*membership.Profile, error) {
	q := url.Values{}
	q.Set("select", "id,email,full_name,role,created_at")
	q.Set("order", "created_at.desc")

	var profiles []*membership.Profile
	if err := c.read(ctx, "list_profiles", "/rest/v1/profiles", q, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateRole sets a user's role.
func (c *Client) UpdateRole(ctx context.Context, userID string, role membership.Role) error {
	q := url.Values{}
	q.Set("id", "eq."+userID)
	body := map[string]string{"role": string(role)}

	var profiles []*membership.Profile
	if err := c.write(ctx, "update_role", http.MethodPatch, "/rest/v1/profiles", q, body, &profiles); err != nil {
		return err
	}
	if len(profiles) == 0 {
		return &RemoteError{Op: "update_role", StatusCode: http.StatusNotFound, Message: "profile not found"}
	}
	return nil
}

// ListWishlist returns a user's wishlist, newest first.
func (c *Client) ListWishlist(ctx context.Context, userID string) ([]*wishlist.Entry, error) {
	q := url.Values{}
	q.Set("select", "id,user_id,book_id,created_at")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")

	var entries []*wishlist.Entry
	if err := c.read(ctx, "list_wishlist", "/rest/v1/wishlist", q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddToWishlist bookmarks a book.
func (c *Client) AddToWishlist(ctx context.Context, userID, bookID string) (*wishlist.Entry, error) {
	body := map[string]string{"user_id": userID, "book_id": bookID}

	var entries []*wishlist.Entry
	err := c.write(ctx, "add_to_wishlist", http.MethodPost, "/rest/v1/wishlist", nil, body, &entries)
	var re *RemoteError
	if errors.As(err, &re) && re.StatusCode == http.StatusConflict {
		return nil, wishlist.ErrAlreadyWishlisted
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &RemoteError{Op: "add_to_wishlist", Message: "backend returned no row"}
	}
	return entries[0], nil
}

// RemoveFromWishlist deletes a bookmark.
func (c *Client) RemoveFromWishlist(ctx context.Context, userID, bookID string) error {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("book_id", "eq."+bookID)

	var entries []*wishlist.Entry
	if err := c.write(ctx, "remove_from_wishlist", http.MethodDelete, "/rest/v1/wishlist", q, nil, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return wishlist.ErrNotWishlisted
	}
	return nil
}

// read performs an idempotent GET, retrying transient failures.
func (c *Client) read(ctx context.Context, op, path string, q url.Values, out interface{}) error {
	return c.retrying(ctx, op, func() error {
		return c.do(ctx, op, http.MethodGet, path, q, nil, out)
	})
}

// write performs a mutation once and asks for the affected rows back.
func (c *Client) write(ctx context.Context, op, method, path string, q url.Values, body, out interface{}) error {
	return c.do(ctx, op, method, path, q, body, out)
}

// rpc calls a backend procedure. Only idempotent procedures are retried.
func (c *Client) rpc(ctx context.Context, fn string, args, out interface{}, idempotent bool) error {
	call := func() error {
		return c.do(ctx, fn, http.MethodPost, "/rest/v1/rpc/"+fn, nil, args, out)
	}
	if idempotent {
		return c.retrying(ctx, fn, call)
	}
	return call()
}

func (c *Client) retrying(ctx context.Context, op string, call func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := call()
		if err == nil {
			return struct{}{}, nil
		}
		var re *RemoteError
		if errors.As(err, &re) && !retryable(re.StatusCode) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return re
		}
		return &RemoteError{Op: op, Err: err}
	}
	return nil
}

// retryable reports whether a failed status may succeed on retry. Zero means
// the request never got a response.
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.path", path),
		),
	)
	defer span.End()

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	c.authorize(ctx, req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 300 {
		re := &RemoteError{Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			re.Message = firstNonEmpty(eb.Message, eb.Error, eb.Details)
		}
		if re.Message == "" {
			re.Message = http.StatusText(resp.StatusCode)
		}
		span.SetStatus(codes.Error, re.Message)
		return re
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		span.RecordError(err)
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "unreadable response", Err: err}
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := c.apiKey
	if id, ok := auth.IdentityFrom(ctx); ok && id.Token != "" {
		token = id.Token
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// sanitizeFilter strips characters that carry meaning in a filter
// expression.
func sanitizeFilter(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '"', '\\':
			return ' '
		}
		return r
	}, strings.TrimSpace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
