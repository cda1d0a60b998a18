package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/repository"
	"github.com/arklim/otp-auth-service/internal/repository/memory"
)

func seedUser(t *testing.T, users *memory.UserStore, email, username, hash string) {
	t.Helper()

	clock := newTestClock()
	if err := users.Create(context.Background(), domain.User{
		Email:          email,
		Username:       username,
		PasswordHash:   hash,
		CreatedAt:      clock.Now(),
		LastVerifiedAt: clock.Now(),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestLoginSuccessRecordsLastLogin(t *testing.T) {
	users := memory.NewUserStore()
	seedUser(t, users, "a@x.com", "alice", "hashed:p1")

	events := &recordingEvents{}
	metrics := newCountingMetrics()
	clock := newTestClock()
	svc := NewAuthService(users, &prefixHasher{}, events, metrics, nil)
	svc.now = clock.Now

	user, err := svc.Login(context.Background(), "a@x.com", "p1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.Username != "alice" || user.Email != "a@x.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash != "" {
		t.Fatalf("login result must not expose the hash")
	}

	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(clock.Now()) {
		t.Fatalf("expected lastLoginAt to be recorded, got %v", stored.LastLoginAt)
	}
	if len(events.loggedIn) != 1 || metrics.logins[OutcomeSuccess] != 1 {
		t.Fatalf("expected login event and metric")
	}
}

func TestLoginFailures(t *testing.T) {
	users := memory.NewUserStore()
	seedUser(t, users, "a@x.com", "alice", "hashed:p1")
	svc := NewAuthService(users, &prefixHasher{}, nil, nil, nil)

	if _, err := svc.Login(context.Background(), "nobody@x.com", "p1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "", "p1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing email, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing password, got %v", err)
	}

	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	if stored.LastLoginAt != nil {
		t.Fatalf("failed logins must not touch lastLoginAt")
	}
}

func TestLoginStoreUnavailable(t *testing.T) {
	users := &mockUserRepository{getErr: errors.New("connection refused")}
	svc := NewAuthService(users, &prefixHasher{}, nil, nil, nil)

	if _, err := svc.Login(context.Background(), "a@x.com", "p1"); !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestLoginTouchFailure(t *testing.T) {
	users := &mockUserRepository{
		getResult:     &domain.User{Email: "a@x.com", Username: "alice", PasswordHash: "hashed:p1"},
		touchLoginErr: repository.ErrNotFound,
	}
	svc := NewAuthService(users, &prefixHasher{}, nil, nil, nil)

	if _, err := svc.Login(context.Background(), "a@x.com", "p1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for concurrently deleted user, got %v", err)
	}
	if users.touchLoginCalls != 1 {
		t.Fatalf("expected one touch call, got %d", users.touchLoginCalls)
	}
}
