package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/otp-auth-service/internal/core/domain"
	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/repository"
)

const (
	defaultSchema = "auth"
	usersTable    = "users"
)

var userColumns = []string{
	"email",
	"username",
	"password_hash",
	"created_at",
	"last_verified_at",
	"last_login_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	table   string
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository over the users table in schema.
// An empty schema selects "auth".
func NewUserRepository(exec pgExecutor, schema string) *UserRepository {
	return &UserRepository{
		exec:    exec,
		table:   pgx.Identifier{schemaOrDefault(schema), usersTable}.Sanitize(),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row. A duplicate email surfaces as repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(r.table).
		Columns(userColumns...).
		Values(
			user.Email,
			user.Username,
			user.PasswordHash,
			user.CreatedAt,
			user.LastVerifiedAt,
			user.LastLoginAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("insert user %s: %w", pgErr.ConstraintName, repository.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by its unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(r.table).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

// TouchVerified records the completion of a verification cycle.
func (r *UserRepository) TouchVerified(ctx context.Context, email string, at time.Time) error {
	return r.touch(ctx, "last_verified_at", email, at)
}

// TouchLogin records a successful direct login.
func (r *UserRepository) TouchLogin(ctx context.Context, email string, at time.Time) error {
	return r.touch(ctx, "last_login_at", email, at)
}

func (r *UserRepository) touch(ctx context.Context, column, email string, at time.Time) error {
	stmt, args, err := r.builder.Update(r.table).
		Set(column, at).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s sql: %w", column, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns every user ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(r.table).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// DeleteByEmail removes the user identified by email.
func (r *UserRepository) DeleteByEmail(ctx context.Context, email string) error {
	stmt, args, err := r.builder.Delete(r.table).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user      domain.User
		lastLogin *time.Time
	)

	if err := row.Scan(
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.LastVerifiedAt,
		&lastLogin,
	); err != nil {
		return domain.User{}, err
	}

	user.LastLoginAt = lastLogin
	return user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
