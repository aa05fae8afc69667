package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/nurpe/obras-service/internal/remote"
)

var (
	// ErrForeignKey is returned when a delete or upsert violates a foreign key.
	ErrForeignKey = errors.New("foreign key violation")
	// ErrSchema is returned when a table or column the service needs is missing.
	ErrSchema = errors.New("remote schema is missing a table or column")
)

// Postgres error codes used for classification.
const (
	codeForeignKeyViolation = "23503"
	codeUndefinedColumn     = "42703"
	codeUndefinedTable      = "42P01"
)

// Remote is the row-level contract of the remote storage: four record tables
// addressed by name, each keyed by a string id.
type Remote interface {
	SelectAll(ctx context.Context, table string) ([]remote.Row, error)
	Upsert(ctx context.Context, table string, rows []remote.Row) error
	Delete(ctx context.Context, table, id string) error
}

// classify wraps driver errors with the package sentinels so callers can tell
// referential and schema failures apart from generic ones.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("%w: %w", ErrForeignKey, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %w", ErrForeignKey, err)
		case codeUndefinedColumn, codeUndefinedTable:
			return fmt.Errorf("%w: %w", ErrSchema, err)
		}
	}
	return err
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}
