package postgres

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolationCode = "23505"

//go:embed migrations/*.sql
var migrations embed.FS

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migrate creates schema when missing and applies the embedded migrations
// into it. Migrations use unqualified names and resolve through search_path,
// so schema must be first on the pool's search_path.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	createSchema := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schemaOrDefault(schema)}.Sanitize()
	if _, err := pool.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func schemaOrDefault(schema string) string {
	if s := strings.TrimSpace(schema); s != "" {
		return s
	}
	return defaultSchema
}
