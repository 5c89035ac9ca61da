package store

import (
	"context"
	"embed"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migrations holds the goose migrations of the schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"

// DBTX is the subset of pgx used by the repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	ErrUserNotFound = errors.New("store: user not found")
	ErrUserInactive = errors.New("store: user is inactive")
	ErrUserBanned   = errors.New("store: user is banned")
)

// validID reports whether id can be compared with a uuid column. Invalid
// ids are treated as missing rows instead of SQL errors.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
