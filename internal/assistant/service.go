// internal/assistant/service.go
package assistant

import (
	"context"
	"librarydesk/internal/catalog"
	"librarydesk/internal/lending"
)

// Kind names what an answer was generated for.
type Kind string

const (
	KindDescription     Kind = "description"
	KindSummary         Kind = "summary"
	KindRecommendations Kind = "recommendations"
)

// Answer is generated text for a book or a reader.
type Answer struct {
	Kind   Kind   `json:"kind"`
	BookID string `json:"book_id,omitempty"`
	Text   string `json:"text"`
	Cached bool   `json:"cached"`
}

// Service defines the interface for the assistant service.
type Service interface {
	Describe(ctx context.Context, userID, bookID string) (*Answer, error)
	Summarize(ctx context.Context, userID, bookID string) (*Answer, error)
	Recommend(ctx context.Context, userID string) (*Answer, error)
}

// Books looks up catalog entries.
type Books interface {
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
}

// Transactions loads a user's normalized transaction log.
type Transactions interface {
	Transactions(ctx context.Context, userID string) ([]lending.Transaction, error)
}
