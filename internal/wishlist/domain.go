// internal/wishlist/domain.go
package wishlist

import (
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
	"time"
)

// Entry is a bookmark of a book by a user.
type Entry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	BookID    string    `json:"book_id" db:"book_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Item is a wishlist entry as shown to its owner, with the bookmarked book
// and the owner's current lending view of it.
type Item struct {
	Entry
	Book    *catalog.Book `json:"book,omitempty"`
	Lending lending.View  `json:"lending"`
}
