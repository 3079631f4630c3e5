package store

import (
	"context"
	_ "embed"

	"github.com/loungecrasher/music-tools/internal/errs"
)

//go:embed migrate.sql
var migrateSQL string

// CurrentSchemaVersion is the schema version this build creates and
// expects to find on an existing store file.
const CurrentSchemaVersion = 2

// Migrate applies the embedded schema idempotently and ensures the
// settings row for schema_version exists.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migrateSQL); err != nil {
		return errs.Store("apply schema", err)
	}
	return s.checkSchemaVersion(ctx)
}

// checkSchemaVersion reads the persisted schema_version and fails
// fatally (IntegrityError) if it doesn't match what this build can
// read, since there is no forward migration path defined above
// CurrentSchemaVersion.
func (s *Store) checkSchemaVersion(ctx context.Context) error {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'schema_version'`)
	if err := row.Scan(&raw); err != nil {
		return errs.Integrity("read schema_version", err)
	}
	if raw != "2" {
		return errs.Integrity("schema version mismatch: store has "+raw+", this build expects 2", nil)
	}
	return nil
}
