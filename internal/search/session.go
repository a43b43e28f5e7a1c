package search

import (
	"context"
	"sync"
)

// Searcher is satisfied by *Engine.
type Searcher interface {
	Search(ctx context.Context, req Request) (*AggregatedResponse, error)
}

// Session serializes the queries of one user. Starting a query cancels the
// one in flight, and a result that arrives after a newer query started is
// reported as ErrStaleQuery instead of being shown.
type Session struct {
	searcher Searcher

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

func NewSession(s Searcher) *Session {
	return &Session{searcher: s}
}

// Search returns the response together with the generation it belongs to.
func (s *Session) Search(ctx context.Context, req Request) (*AggregatedResponse, uint64, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	resp, err := s.searcher.Search(ctx, req)

	s.mu.Lock()
	current := s.generation == gen
	if current {
		s.cancel = nil
	}
	s.mu.Unlock()
	cancel()

	if !current {
		return nil, gen, ErrStaleQuery
	}
	return resp, gen, err
}

// Close cancels any query in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
}
