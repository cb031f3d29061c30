package journal

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// migrations are applied in order. The database user_version records how
// many have run, so entries may only ever be appended.
var migrations = []string{
	baseSchema,
	`CREATE INDEX IF NOT EXISTS idx_delivery_steps_outcome ON delivery_steps(outcome, created_at);`,
}

// ErrSchemaMismatch indicates the journal was written by a newer leadcast.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("%w: journal has version %d, this build knows %d (delete %s to reset)",
			ErrSchemaMismatch, version, len(migrations), s.path)
	}
	for next := version; next < len(migrations); next++ {
		if err := s.migrate(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context, index int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", index+1, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migrations[index]); err != nil {
		return fmt.Errorf("apply migration %d: %w", index+1, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", index+1)); err != nil {
		return fmt.Errorf("record journal version %d: %w", index+1, err)
	}
	return tx.Commit()
}
