// Package backoff implements the wait strategy used between reconnection and
// retry attempts.
package backoff

import (
	"context"
	"sync"
	"time"
)

// Backoff waits according to a strategy. Reset rewinds the strategy to its
// first delay; it is called on evidence of a healthy peer, not merely on a
// successful TCP connect, since a reachable device may still fail to answer.
type Backoff interface {
	// Wait sleeps for the next delay of the strategy, or returns early with
	// ctx.Err() when the context is cancelled.
	Wait(ctx context.Context) error
	Reset()
}

// Sequence waits according to a fixed sequence of delays. Once the sequence
// is exhausted it keeps using the last value.
type Sequence struct {
	mu     sync.Mutex
	delays []time.Duration
	index  int
}

// NewSequence builds a sequence backoff. It panics on an empty sequence,
// which is a configuration error caught at load time.
func NewSequence(delays ...time.Duration) *Sequence {
	if len(delays) == 0 {
		panic("backoff: empty sequence")
	}
	return &Sequence{delays: delays}
}

func (s *Sequence) Wait(ctx context.Context) error {
	s.mu.Lock()
	delay := s.delays[s.index]
	if s.index < len(s.delays)-1 {
		s.index++
	}
	s.mu.Unlock()
	if delay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequence) Reset() {
	s.mu.Lock()
	s.index = 0
	s.mu.Unlock()
}
