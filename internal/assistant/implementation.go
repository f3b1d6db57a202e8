// internal/assistant/implementation.go
package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"librarydesk/internal/catalog"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrRateLimited = errors.New("too many assistant requests, try again shortly")
	ErrUnavailable = errors.New("the assistant is not configured")
)

// recentTitles is how many distinct borrowed books feed a recommendation.
const recentTitles = 5

// Options tunes caching and rate limiting.
type Options struct {
	CacheTTL time.Duration
	// PerMinute is the sustained number of requests a user may make.
	PerMinute int
	Burst     int
}

// service implements the Service interface.
type service struct {
	generator    Generator
	cache        Cache
	books        Books
	transactions Transactions
	limiter      *userLimiter
	ttl          time.Duration
	logger       *zap.Logger
}

// NewService creates a new assistant service instance. A nil generator
// makes every request fail with ErrUnavailable.
func NewService(generator Generator, cache Cache, books Books, transactions Transactions, opts Options, logger *zap.Logger) Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.PerMinute <= 0 {
		opts.PerMinute = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.PerMinute
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &service{
		generator:    generator,
		cache:        cache,
		books:        books,
		transactions: transactions,
		limiter:      newUserLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), opts.Burst),
		ttl:          opts.CacheTTL,
		logger:       logger,
	}
}

func (s *service) Describe(ctx context.Context, userID, bookID string) (*Answer, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.answer(ctx, userID, KindDescription, bookID, descriptionPrompt(book))
}

func (s *service) Summarize(ctx context.Context, userID, bookID string) (*Answer, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.answer(ctx, userID, KindSummary, bookID, summaryPrompt(book))
}

func (s *service) Recommend(ctx context.Context, userID string) (*Answer, error) {
	txs, err := s.transactions.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var recent []*catalog.Book
	seen := make(map[string]bool)
	for _, tx := range txs {
		if len(recent) == recentTitles {
			break
		}
		if seen[tx.BookID] {
			continue
		}
		seen[tx.BookID] = true
		book, err := s.books.GetBook(ctx, tx.BookID)
		if errors.Is(err, catalog.ErrBookNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recent = append(recent, book)
	}
	return s.answer(ctx, userID, KindRecommendations, "", recommendationPrompt(recent))
}

// answer serves prompt from the cache or generates it. Cache hits do not
// count against the user's rate limit; cache failures are logged and
// otherwise ignored.
func (s *service) answer(ctx context.Context, userID string, kind Kind, bookID, prompt string) (*Answer, error) {
	if s.generator == nil {
		return nil, ErrUnavailable
	}

	sum := sha256.Sum256([]byte(prompt))
	key := string(kind) + ":" + hex.EncodeToString(sum[:])

	if text, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("assistant cache read failed", zap.Error(err))
	} else if ok {
		return &Answer{Kind: kind, BookID: bookID, Text: text, Cached: true}, nil
	}

	if !s.limiter.allow(userID) {
		return nil, ErrRateLimited
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("assistant generation failed",
			zap.String("kind", string(kind)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to generate %s: %w", kind, err)
	}

	if err := s.cache.Set(ctx, key, text, s.ttl); err != nil {
		s.logger.Warn("assistant cache write failed", zap.Error(err))
	}
	return &Answer{Kind: kind, BookID: bookID, Text: text}, nil
}
