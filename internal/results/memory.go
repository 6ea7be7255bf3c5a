package results

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Memory is a Store in process memory. Outcomes older than its TTL are
// invisible to Take and are removed by Sweep.
type Memory struct {
	mu  sync.Mutex
	m   map[string]Outcome
	ttl time.Duration
	now func() time.Time
}

// NewMemory creates an empty memory store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{m: make(map[string]Outcome), ttl: ttl, now: time.Now}
}

// Put implements Store.
func (s *Memory) Put(ctx context.Context, id string, o Outcome) error {
	if o.Finished.IsZero() {
		o.Finished = s.now()
	}
	s.mu.Lock()
	s.m[id] = o
	s.mu.Unlock()
	return nil
}

// Take implements Store.
func (s *Memory) Take(ctx context.Context, id string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.m[id]
	if !ok {
		return Outcome{}, ErrNotFound
	}
	delete(s.m, id)
	if s.expired(o) {
		return Outcome{}, ErrNotFound
	}
	return o, nil
}

// Len returns the number of stored outcomes, including expired ones not yet
// swept.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep removes expired outcomes and returns how many it removed.
func (s *Memory) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, o := range s.m {
		if s.expired(o) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

func (s *Memory) expired(o Outcome) bool {
	return s.now().Sub(o.Finished) > s.ttl
}

// Run sweeps every interval until ctx is done. It always returns ctx.Err().
func (s *Memory) Run(ctx context.Context, interval time.Duration) error {
	logger := slog.Default().With("component", "results")
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("removed expired results", "count", n)
			}
		}
	}
}
