package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/repository"
)

func newMockRepository(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return NewUserRepository(mock, ""), mock
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO "auth"\."users" \(email,username,password_hash,created_at,last_verified_at,last_login_at\)`).
		WithArgs("a@x.com", "alice", "hash", now, now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), domain.User{
		Email:          "a@x.com",
		Username:       "alice",
		PasswordHash:   "hash",
		CreatedAt:      now,
		LastVerifiedAt: now,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Create_UniqueViolationIsConflict(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO "auth"\."users"`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), domain.User{Email: "a@x.com", Username: "alice", PasswordHash: "hash"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserRepository_Create_OtherErrorsAreWrapped(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO "auth"\."users"`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), domain.User{Email: "a@x.com"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, repository.ErrConflict) {
		t.Fatalf("generic failure must not be reported as conflict")
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	login := created.Add(time.Hour)

	rows := pgxmock.NewRows(userColumns).
		AddRow("a@x.com", "alice", "hash", created, created, &login)

	mock.ExpectQuery(`SELECT email, username, password_hash, created_at, last_verified_at, last_login_at FROM "auth"\."users" WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.Username != "alice" || user.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.LastLoginAt == nil || !user.LastLoginAt.Equal(login) {
		t.Fatalf("expected last login %v, got %v", login, user.LastLoginAt)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM "auth"\."users" WHERE email = \$1`).
		WithArgs("missing@x.com").
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err := repo.GetByEmail(context.Background(), "missing@x.com")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_TouchVerified(t *testing.T) {
	repo, mock := newMockRepository(t)

	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE "auth"\."users" SET last_verified_at = \$1 WHERE email = \$2`).
		WithArgs(at, "a@x.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.TouchVerified(context.Background(), "a@x.com", at); err != nil {
		t.Fatalf("TouchVerified returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_TouchLogin_NoRows(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE "auth"\."users" SET last_login_at = \$1 WHERE email = \$2`).
		WithArgs(pgxmock.AnyArg(), "ghost@x.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.TouchLogin(context.Background(), "ghost@x.com", time.Now())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	login := created.Add(time.Minute)
	var never *time.Time

	rows := pgxmock.NewRows(userColumns).
		AddRow("a@x.com", "alice", "hash-a", created, created, &login).
		AddRow("b@x.com", "bob", "hash-b", created, created, never)

	mock.ExpectQuery(`SELECT .* FROM "auth"\."users" ORDER BY created_at ASC`).
		WillReturnRows(rows)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[1].LastLoginAt != nil {
		t.Fatalf("expected nil last login for bob")
	}
}

func TestUserRepository_DeleteByEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM "auth"\."users" WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM "auth"\."users" WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.DeleteByEmail(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("DeleteByEmail returned error: %v", err)
	}
	if err := repo.DeleteByEmail(context.Background(), "a@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserRepository_UsesConfiguredSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	repo := NewUserRepository(mock, "tenant_a")
	mock.ExpectExec(`DELETE FROM "tenant_a"\."users" WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.DeleteByEmail(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("DeleteByEmail returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSchemaOrDefault(t *testing.T) {
	if got := schemaOrDefault("  "); got != "auth" {
		t.Fatalf("expected default schema, got %q", got)
	}
	if got := schemaOrDefault("tenant_a"); got != "tenant_a" {
		t.Fatalf("expected configured schema, got %q", got)
	}
}
