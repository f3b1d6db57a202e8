// internal/backend/postgres.go
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"librarydesk/internal/wishlist"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PostgresClient talks to the backend's database directly and invokes the
// same stored procedures the REST client reaches over RPC. It is meant for
// trusted deployments that run next to the database.
type PostgresClient struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewPostgresClient wraps an open database handle.
func NewPostgresClient(db *sql.DB) *PostgresClient {
	return &PostgresClient{
		db:     sqlx.NewDb(db, "postgres"),
		tracer: otel.Tracer("librarydesk/backend/postgres"),
	}
}

// Timestamps are rendered in UTC so the session time zone never reaches
// the parser.
const selectTransactions = `
	SELECT id::text, book_id::text, user_id::text, action,
	       to_char(transaction_date AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"') AS transaction_date,
	       to_char(due_date AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"') AS due_date
	FROM transactions
`

// FetchUserTransactions returns the user's transaction log, most recent first.
func (p *PostgresClient) FetchUserTransactions(ctx context.Context, userID string) ([]lending.Record, error) {
	ctx, span := p.start(ctx, "fetch_user_transactions", attribute.String("user.id", userID))
	defer span.End()

	var records []lending.Record
	query := selectTransactions + `WHERE user_id = $1 ORDER BY transaction_date DESC`
	if err := p.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, p.fail(span, "fetch_user_transactions", err)
	}
	span.SetAttributes(attribute.Int("transactions.loaded", len(records)))
	return records, nil
}

// FetchAllTransactions returns the most recent transactions of every user.
func (p *PostgresClient) FetchAllTransactions(ctx context.Context, limit int) ([]lending.Record, error) {
	ctx, span := p.start(ctx, "fetch_all_transactions", attribute.Int("limit", limit))
	defer span.End()

	var records []lending.Record
	query := selectTransactions + `ORDER BY transaction_date DESC LIMIT $1`
	if err := p.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, p.fail(span, "fetch_all_transactions", err)
	}
	return records, nil
}

// CheckAvailability calls check_book_availability.
func (p *PostgresClient) CheckAvailability(ctx context.Context, bookID string) (bool, error) {
	return p.callBool(ctx, rpcCheckAvailability, bookID)
}

// IssueBook calls issue_book.
func (p *PostgresClient) IssueBook(ctx context.Context, bookID, userID string) (bool, error) {
	return p.callBool(ctx, rpcIssueBook, bookID, userID)
}

// ReturnBook calls return_book.
func (p *PostgresClient) ReturnBook(ctx context.Context, bookID, userID string) (bool, error) {
	return p.callBool(ctx, rpcReturnBook, bookID, userID)
}

// RenewBook calls renew_book.
func (p *PostgresClient) RenewBook(ctx context.Context, bookID, userID string) (bool, error) {
	return p.callBool(ctx, rpcRenewBook, bookID, userID)
}

func (p *PostgresClient) callBool(ctx context.Context, fn string, args ...interface{}) (bool, error) {
	ctx, span := p.start(ctx, fn, attribute.String("book.id", fmt.Sprint(args[0])))
	defer span.End()

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("SELECT %s(%s)", fn, strings.Join(placeholders, ", "))

	var ok sql.NullBool
	if err := p.db.QueryRowxContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, p.fail(span, fn, err)
	}
	span.SetAttributes(attribute.Bool("rpc.result", ok.Bool))
	return ok.Valid && ok.Bool, nil
}

const bookColumns = `
	id::text, COALESCE(isbn, '') AS isbn, title, author, COALESCE(genre, '') AS genre,
	COALESCE(description, '') AS description, COALESCE(published_year, 0) AS published_year,
	total_copies, COALESCE(pdf_url, '') AS pdf_url, COALESCE(cover_url, '') AS cover_url, created_at
`

// ListBooks returns a page of books ordered by title.
func (p *PostgresClient) ListBooks(ctx context.Context, filter catalog.Filter) ([]*catalog.Book, error) {
	ctx, span := p.start(ctx, "list_books", attribute.String("genre", filter.Genre))
	defer span.End()

	query := `SELECT ` + bookColumns + ` FROM books
		WHERE ($1 = '' OR genre = $1)
		ORDER BY title ASC
		LIMIT $2 OFFSET $3`

	var books []*catalog.Book
	if err := p.db.SelectContext(ctx, &books, query, filter.Genre, filter.Limit, filter.Offset); err != nil {
		return nil, p.fail(span, "list_books", err)
	}
	return books, nil
}

// GetBook retrieves one book.
func (p *PostgresClient) GetBook(ctx context.Context, id string) (*catalog.Book, error) {
	ctx, span := p.start(ctx, "get_book", attribute.String("book.id", id))
	defer span.End()

	book := &catalog.Book{}
	err := p.db.GetContext(ctx, book, `SELECT `+bookColumns+` FROM books WHERE id::text = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, p.fail(span, "get_book", err)
	}
	return book, nil
}

// SearchBooks matches query against titles and authors.
func (p *PostgresClient) SearchBooks(ctx context.Context, query string, limit int) ([]*catalog.Book, error) {
	ctx, span := p.start(ctx, "search_books")
	defer span.End()

	pattern := "%" + escapeLike(query) + "%"
	var books []*catalog.Book
	err := p.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books
		WHERE title ILIKE $1 OR author ILIKE $1
		ORDER BY title ASC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, p.fail(span, "search_books", err)
	}
	return books, nil
}

// CreateBook inserts a book.
func (p *PostgresClient) CreateBook(ctx context.Context, in catalog.BookInput) (*catalog.Book, error) {
	ctx, span := p.start(ctx, "create_book")
	defer span.End()

	book := &catalog.Book{}
	err := p.db.GetContext(ctx, book, `
		INSERT INTO books (isbn, title, author, genre, description, published_year, total_copies, pdf_url, cover_url)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, 1), $8, $9)
		RETURNING `+bookColumns,
		in.ISBN, in.Title, in.Author, in.Genre, in.Description, in.PublishedYear, in.TotalCopies, in.PDFURL, in.CoverURL)
	if err != nil {
		return nil, p.fail(span, "create_book", err)
	}
	return book, nil
}

// UpdateBook patches the non-nil fields of in.
func (p *PostgresClient) UpdateBook(ctx context.Context, id string, in catalog.BookInput) (*catalog.Book, error) {
	ctx, span := p.start(ctx, "update_book", attribute.String("book.id", id))
	defer span.End()

	book := &catalog.Book{}
	err := p.db.GetContext(ctx, book, `
		UPDATE books SET
			isbn = COALESCE($2, isbn),
			title = COALESCE($3, title),
			author = COALESCE($4, author),
			genre = COALESCE($5, genre),
			description = COALESCE($6, description),
			published_year = COALESCE($7, published_year),
			total_copies = COALESCE($8, total_copies),
			pdf_url = COALESCE($9, pdf_url),
			cover_url = COALESCE($10, cover_url)
		WHERE id::text = $1
		RETURNING `+bookColumns,
		id, in.ISBN, in.Title, in.Author, in.Genre, in.Description, in.PublishedYear, in.TotalCopies, in.PDFURL, in.CoverURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, p.fail(span, "update_book", err)
	}
	return book, nil
}

// DeleteBook removes a book.
func (p *PostgresClient) DeleteBook(ctx context.Context, id string) error {
	ctx, span := p.start(ctx, "delete_book", attribute.String("book.id", id))
	defer span.End()

	res, err := p.db.ExecContext(ctx, `DELETE FROM books WHERE id::text = $1`, id)
	if err != nil {
		return p.fail(span, "delete_book", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", catalog.ErrBookNotFound, id)
	}
	return nil
}

const profileColumns = `id::text, COALESCE(email, '') AS email, COALESCE(full_name, '') AS full_name, role, created_at`

// GetProfile retrieves a user's profile.
func (p *PostgresClient) GetProfile(ctx context.Context, userID string) (*membership.Profile, error) {
	ctx, span := p.start(ctx, "get_profile", attribute.String("user.id", userID))
	defer span.End()

	profile := &membership.Profile{}
	err := p.db.GetContext(ctx, profile, `SELECT `+profileColumns+` FROM profiles WHERE id::text = $1`, userID)
	if err != nil {
		return nil, p.fail(span, "get_profile", err)
	}
	return profile, nil
}

// ListProfiles returns all profiles, newest first.
func (p *PostgresClient) ListProfiles(ctx context.Context) ([]*membership.Profile, error) {
	ctx, span := p.start(ctx, "list_profiles")
	defer span.End()

	var profiles []*membership.Profile
	if err := p.db.SelectContext(ctx, &profiles, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`); err != nil {
		return nil, p.fail(span, "list_profiles", err)
	}
	return profiles, nil
}

// UpdateRole sets a user's role.
func (p *PostgresClient) UpdateRole(ctx context.Context, userID string, role membership.Role) error {
	ctx, span := p.start(ctx, "update_role", attribute.String("user.id", userID))
	defer span.End()

	res, err := p.db.ExecContext(ctx, `UPDATE profiles SET role = $1 WHERE id::text = $2`, string(role), userID)
	if err != nil {
		return p.fail(span, "update_role", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &RemoteError{Op: "update_role", Message: "profile not found"}
	}
	return nil
}

// ListWishlist returns a user's wishlist, newest first.
func (p *PostgresClient) ListWishlist(ctx context.Context, userID string) ([]*wishlist.Entry, error) {
	ctx, span := p.start(ctx, "list_wishlist", attribute.String("user.id", userID))
	defer span.End()

	var entries []*wishlist.Entry
	err := p.db.SelectContext(ctx, &entries, `
		SELECT id::text, user_id::text, book_id::text, created_at
		FROM wishlist
		WHERE user_id::text = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, p.fail(span, "list_wishlist", err)
	}
	return entries, nil
}

// AddToWishlist bookmarks a book.
func (p *PostgresClient) AddToWishlist(ctx context.Context, userID, bookID string) (*wishlist.Entry, error) {
	ctx, span := p.start(ctx, "add_to_wishlist", attribute.String("user.id", userID), attribute.String("book.id", bookID))
	defer span.End()

	entry := &wishlist.Entry{}
	err := p.db.GetContext(ctx, entry, `
		INSERT INTO wishlist (user_id, book_id)
		VALUES ($1, $2)
		RETURNING id::text, user_id::text, book_id::text, created_at`, userID, bookID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, wishlist.ErrAlreadyWishlisted
		}
		return nil, p.fail(span, "add_to_wishlist", err)
	}
	return entry, nil
}

// RemoveFromWishlist deletes a bookmark.
func (p *PostgresClient) RemoveFromWishlist(ctx context.Context, userID, bookID string) error {
	ctx, span := p.start(ctx, "remove_from_wishlist", attribute.String("user.id", userID), attribute.String("book.id", bookID))
	defer span.End()

	res, err := p.db.ExecContext(ctx, `DELETE FROM wishlist WHERE user_id::text = $1 AND book_id::text = $2`, userID, bookID)
	if err != nil {
		return p.fail(span, "remove_from_wishlist", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wishlist.ErrNotWishlisted
	}
	return nil
}

func (p *PostgresClient) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "postgres."+op, trace.WithAttributes(attrs...))
}

// fail records err on span and converts it into a RemoteError. Exceptions
// raised inside stored procedures keep their message so it can be shown
// to the user.
func (p *PostgresClient) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)

	re := &RemoteError{Op: op, Err: err}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		re.Message = pqErr.Message
		span.SetAttributes(attribute.String("pg.code", string(pqErr.Code)))
	}
	return re
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.TrimSpace(s))
}
