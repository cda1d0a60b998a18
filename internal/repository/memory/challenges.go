package memory

import (
	"container/heap"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/repository"
)

type challengeSlot struct {
	pending domain.PendingRegistration
	expiry  *expiryEntry
}

// ChallengeStore holds pending registrations in a map indexed by challenge id
// with a min-heap of deadlines driving eviction. A challenge is evicted once
// its deadline plus the retention period has passed.
type ChallengeStore struct {
	mu        sync.Mutex
	slots     map[string]*challengeSlot
	expiry    expiryHeap
	retention time.Duration
	now       clock
	logger    *zap.Logger
}

// NewChallengeStore constructs an empty store.
func NewChallengeStore(logger *zap.Logger) *ChallengeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChallengeStore{
		slots:  make(map[string]*challengeSlot),
		now:    utcNow,
		logger: logger,
	}
}

// WithRetention keeps expired challenges readable for d past their deadline,
// so callers can tell an expired challenge from an unknown one.
func (s *ChallengeStore) WithRetention(d time.Duration) *ChallengeStore {
	if d > 0 {
		s.mu.Lock()
		s.retention = d
		s.mu.Unlock()
	}
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *ChallengeStore) WithClock(now func() time.Time) *ChallengeStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *ChallengeStore) Save(_ context.Context, pending domain.PendingRegistration) error {
	id := strings.TrimSpace(pending.ChallengeID)
	if id == "" {
		return errors.New("challenge id is required")
	}
	if pending.ExpiresAt.IsZero() {
		return errors.New("expiry is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slot, ok := s.slots[id]; ok {
		s.removeLocked(id, slot)
	}

	entry := &expiryEntry{id: id, expiresAt: pending.ExpiresAt}
	heap.Push(&s.expiry, entry)
	s.slots[id] = &challengeSlot{pending: pending, expiry: entry}
	return nil
}

func (s *ChallengeStore) Get(_ context.Context, challengeID string) (*domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.lookupLocked(challengeID)
	if err != nil {
		return nil, err
	}
	out := slot.pending
	return &out, nil
}

func (s *ChallengeStore) IncrementAttempts(_ context.Context, challengeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.lookupLocked(challengeID)
	if err != nil {
		return 0, err
	}
	slot.pending.Attempts++
	return slot.pending.Attempts, nil
}

func (s *ChallengeStore) MarkVerified(_ context.Context, challengeID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.lookupLocked(challengeID)
	if err != nil {
		return err
	}
	slot.pending.State = domain.ChallengePendingCommit
	slot.pending.ExpiresAt = expiresAt
	slot.expiry.expiresAt = expiresAt
	heap.Fix(&s.expiry, slot.expiry.index)
	return nil
}

func (s *ChallengeStore) Consume(_ context.Context, challengeID string) (*domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.lookupLocked(challengeID)
	if err != nil {
		return nil, err
	}
	s.removeLocked(slot.pending.ChallengeID, slot)
	out := slot.pending
	return &out, nil
}

func (s *ChallengeStore) Delete(_ context.Context, challengeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(challengeID)
	slot, ok := s.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.removeLocked(id, slot)
	return nil
}

// Len reports the number of challenges currently held, expired or not.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Sweep evicts every challenge whose retention window has passed and returns how many were removed.
func (s *ChallengeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for s.expiry.Len() > 0 {
		next := s.expiry[0]
		if now.Before(next.expiresAt.Add(s.retention)) {
			break
		}
		heap.Pop(&s.expiry)
		delete(s.slots, next.id)
		evicted++
	}
	return evicted
}

// Run sweeps expired challenges every interval until ctx is cancelled.
func (s *ChallengeStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("evicted expired challenges", zap.Int("count", n))
			}
		}
	}
}

// lookupLocked returns the slot for the challenge id. Deadlines are enforced by
// the caller; expired slots stay visible until the next sweep.
func (s *ChallengeStore) lookupLocked(challengeID string) (*challengeSlot, error) {
	slot, ok := s.slots[strings.TrimSpace(challengeID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return slot, nil
}

func (s *ChallengeStore) removeLocked(id string, slot *challengeSlot) {
	if slot.expiry != nil && slot.expiry.index >= 0 {
		heap.Remove(&s.expiry, slot.expiry.index)
	}
	delete(s.slots, id)
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)
