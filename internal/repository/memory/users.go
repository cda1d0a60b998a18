package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/repository"
)

// UserStore keeps user records in a map keyed by email.
type UserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

// NewUserStore constructs an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) Create(_ context.Context, user domain.User) error {
	key := strings.TrimSpace(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[key]; exists {
		return repository.ErrConflict
	}
	user.Email = key
	s.users[key] = cloneUser(user)
	return nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[strings.TrimSpace(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(user)
	return &out, nil
}

func (s *UserStore) TouchVerified(_ context.Context, email string, at time.Time) error {
	return s.update(email, func(u *domain.User) { u.LastVerifiedAt = at })
}

func (s *UserStore) TouchLogin(_ context.Context, email string, at time.Time) error {
	return s.update(email, func(u *domain.User) {
		ts := at
		u.LastLoginAt = &ts
	})
}

func (s *UserStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *UserStore) DeleteByEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(email)
	if _, ok := s.users[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, key)
	return nil
}

func (s *UserStore) update(email string, mutate func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(email)
	user, ok := s.users[key]
	if !ok {
		return repository.ErrNotFound
	}
	mutate(&user)
	s.users[key] = user
	return nil
}

func cloneUser(u domain.User) domain.User {
	if u.LastLoginAt != nil {
		ts := *u.LastLoginAt
		u.LastLoginAt = &ts
	}
	return u
}

var _ port.UserRepository = (*UserStore)(nil)
