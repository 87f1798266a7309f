package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("pg.errors.failed_to_open_connection")
	ErrFailedToParseDBConfig    = errors.New("pg.errors.failed_to_parse_config")
	ErrHealthcheckFailed        = errors.New("pg.errors.healthcheck_failed")
	ErrFailedToApplyMigrations  = errors.New("pg.errors.failed_to_apply_migrations")
	ErrMigrationsDirNotFound    = errors.New("pg.errors.migrations_dir_not_found")
	ErrMigrationPathNotProvided = errors.New("pg.errors.migration_path_not_provided")
)

// IsNotFoundError reports whether err is pgx's empty-result sentinel, so
// storages can map it onto their own not-found errors.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
// The registry relies on it for create-vs-exists semantics.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolationError detects referential integrity violations
// (SQLSTATE 23503).
func IsForeignKeyViolationError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
