package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/repository"
)

func TestUserStore_CreateAndGet(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.Create(ctx, domain.User{Email: "a@x.com", Username: "alice", PasswordHash: "h", CreatedAt: now, LastVerifiedAt: now})
	require.NoError(t, err)

	got, err := s.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, now, got.CreatedAt)
	assert.Nil(t, got.LastLoginAt)

	err = s.Create(ctx, domain.User{Email: "a@x.com", Username: "mallory"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserStore_ConcurrentCreateKeepsOneRecord(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Create(ctx, domain.User{Email: "race@x.com", Username: "racer"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if assert.ErrorIs(t, err, repository.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, conflicts)

	users, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserStore_TouchAndDelete(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, domain.User{Email: "a@x.com", Username: "alice", CreatedAt: created, LastVerifiedAt: created}))
	require.NoError(t, s.Create(ctx, domain.User{Email: "b@x.com", Username: "bob", CreatedAt: created.Add(time.Second), LastVerifiedAt: created}))

	later := created.Add(time.Hour)
	require.NoError(t, s.TouchVerified(ctx, "a@x.com", later))
	require.NoError(t, s.TouchLogin(ctx, "a@x.com", later))

	got, err := s.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, later, got.LastVerifiedAt)
	require.NotNil(t, got.LastLoginAt)
	assert.Equal(t, later, *got.LastLoginAt)
	assert.Equal(t, created, got.CreatedAt)

	assert.ErrorIs(t, s.TouchLogin(ctx, "ghost@x.com", later), repository.ErrNotFound)

	require.NoError(t, s.DeleteByEmail(ctx, "a@x.com"))
	assert.ErrorIs(t, s.DeleteByEmail(ctx, "a@x.com"), repository.ErrNotFound)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "b@x.com", users[0].Email)
}
