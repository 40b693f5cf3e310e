package store

import (
	"context"
	"sync"
	"time"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/ports"
)

// sweepInterval bounds how often Create scans for evictable entries.
const sweepInterval = time.Minute

// MemoryStore is an in-memory implementation of the ChallengeStore
// interface, suitable for tests and single-node deployments.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*core.Challenge
	outcomes   map[string]core.Outcome
	lastSweep  time.Time

	now func() time.Time
}

// NewMemoryStore creates a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]*core.Challenge),
		outcomes:   make(map[string]core.Outcome),
		now:        time.Now,
	}
}

// SetClock overrides the store's clock. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create stores a fresh Pending challenge and opportunistically evicts
// entries past their retention window, so the store stays bounded under
// the same policy the Redis keys expire with.
func (s *MemoryStore) Create(ctx context.Context, ch core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())

	cp := ch
	s.challenges[ch.ID] = &cp
	return nil
}

// sweepLocked drops challenges (and their outcomes) whose expiry is more
// than retention in the past. Runs at most once per sweepInterval. The
// caller must hold s.mu.
func (s *MemoryStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for id, ch := range s.challenges {
		if now.After(ch.ExpiresAt.Add(retention)) {
			delete(s.challenges, id)
			delete(s.outcomes, id)
		}
	}
}

// Consume transitions Pending -> Consumed under the store lock, so only
// one of any number of racing callers observes the Pending state.
func (s *MemoryStore) Consume(ctx context.Context, id string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}

	if ch.State == core.ChallengePending && ch.Expired(s.now()) {
		ch.State = core.ChallengeExpired
	}

	switch ch.State {
	case core.ChallengeConsumed:
		return nil, core.ErrChallengeConsumed
	case core.ChallengeExpired:
		return nil, core.ErrChallengeExpired
	}

	prior := *ch
	ch.State = core.ChallengeConsumed
	return &prior, nil
}

// Peek returns the current view of a challenge without consuming it.
// Expiry is reported but the stored record is left untouched beyond the
// lazy state mark.
func (s *MemoryStore) Peek(ctx context.Context, id string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}

	cp := *ch
	if cp.State == core.ChallengePending && cp.Expired(s.now()) {
		cp.State = core.ChallengeExpired
	}
	return &cp, nil
}

// RecordOutcome stores the terminal result for a consumed challenge.
func (s *MemoryStore) RecordOutcome(ctx context.Context, id string, out core.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[id]; !ok {
		return core.ErrChallengeNotFound
	}
	s.outcomes[id] = out
	return nil
}

// Outcome returns the recorded result for a challenge id.
func (s *MemoryStore) Outcome(ctx context.Context, id string) (*core.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, ok := s.outcomes[id]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	cp := out
	return &cp, nil
}

var _ ports.ChallengeStore = (*MemoryStore)(nil)
