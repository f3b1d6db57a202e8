// internal/circulation/inflight.go
package circulation

import "sync"

type inflightKey struct {
	userID string
	bookID string
}

// inflight tracks the lending actions currently awaiting the backend, one
// per user and book.
type inflight struct {
	mu      sync.Mutex
	pending map[inflightKey]struct{}
}

func newInflight() *inflight {
	return &inflight{pending: make(map[inflightKey]struct{})}
}

// acquire marks the pair busy. It returns false if it already was.
func (f *inflight) acquire(userID, bookID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := inflightKey{userID, bookID}
	if _, busy := f.pending[k]; busy {
		return false
	}
	f.pending[k] = struct{}{}
	return true
}

func (f *inflight) release(userID, bookID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, inflightKey{userID, bookID})
}

func (f *inflight) busy(userID, bookID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[inflightKey{userID, bookID}]
	return ok
}
