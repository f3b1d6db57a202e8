// internal/catalog/domain.go
package catalog

import (
	"time"
)

// Book represents a title in the library catalog.
type Book struct {
	ID            string    `json:"id" db:"id"`
	ISBN          string    `json:"isbn" db:"isbn"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	Genre         string    `json:"genre,omitempty" db:"genre"`
	Description   string    `json:"description,omitempty" db:"description"`
	PublishedYear int       `json:"published_year,omitempty" db:"published_year"`
	TotalCopies   int       `json:"total_copies" db:"total_copies"`
	PDFURL        string    `json:"pdf_url,omitempty" db:"pdf_url"`
	CoverURL      string    `json:"cover_url,omitempty" db:"cover_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// BookInput carries the editable fields of a book. Nil fields are left
// unchanged on update.
type BookInput struct {
	ISBN          *string `json:"isbn,omitempty"`
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	Genre         *string `json:"genre,omitempty"`
	Description   *string `json:"description,omitempty"`
	PublishedYear *int    `json:"published_year,omitempty"`
	TotalCopies   *int    `json:"total_copies,omitempty"`
	PDFURL        *string `json:"pdf_url,omitempty"`
	CoverURL      *string `json:"cover_url,omitempty"`
}

// Filter narrows a catalog listing.
type Filter struct {
	Genre  string
	Limit  int
	Offset int
}
