// internal/catalog/search.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// rawSearcher is the slice of the meilisearch index API we use.
type rawSearcher interface {
	SearchRawWithContext(ctx context.Context, query string, request *meilisearch.SearchRequest) (*json.RawMessage, error)
}

// MeiliSearcher queries a meilisearch index through a circuit breaker so a
// dead index fails fast and Search falls back to the backend.
type MeiliSearcher struct {
	index   rawSearcher
	breaker *gobreaker.CircuitBreaker
}

// NewMeiliSearcher connects to the books index at host.
func NewMeiliSearcher(host, apiKey, indexUID string, logger *zap.Logger) *MeiliSearcher {
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
	return newMeiliSearcher(client.Index(indexUID), logger)
}

func newMeiliSearcher(index rawSearcher, logger *zap.Logger) *MeiliSearcher {
	return &MeiliSearcher{
		index: index,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "catalog-search",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

type searchResponse struct {
	Hits []*Book `json:"hits"`
}

// Search runs query against the index.
func (m *MeiliSearcher) Search(ctx context.Context, query string, limit int) ([]*Book, error) {
	out, err := m.breaker.Execute(func() (interface{}, error) {
		raw, err := m.index.SearchRawWithContext(ctx, query, &meilisearch.SearchRequest{Limit: int64(limit)})
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, fmt.Errorf("empty search response")
		}
		var resp searchResponse
		if err := json.Unmarshal(*raw, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode search response: %w", err)
		}
		return resp.Hits, nil
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch: %w", err)
	}
	return out.([]*Book), nil
}
