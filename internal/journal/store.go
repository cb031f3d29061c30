package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"leadcast/internal/config"
)

const (
	// FileName is the journal database file inside the log directory.
	FileName = "journal.db"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Entry is one delivery step.
type Entry struct {
	ID            int64
	AttemptID     string
	Outcome       string
	Destination   string
	Channel       string
	Status        string
	Kind          string
	Error         string
	ArtifactBytes int64
	FormatLabel   string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Store persists journal entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the journal under the configured log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, FileName))
}

// OpenPath opens or creates a journal database at path.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one entry. A zero CreatedAt is set to now.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.AttemptID) == "" || strings.TrimSpace(entry.Channel) == "" {
		return errors.New("journal entry requires attempt id and channel")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO delivery_steps (
                attempt_id, outcome, destination, channel, status, kind,
                error_message, artifact_bytes, format_label, duration_ms, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.AttemptID,
			nullableString(entry.Outcome),
			nullableString(entry.Destination),
			entry.Channel,
			entry.Status,
			nullableString(entry.Kind),
			nullableString(entry.Error),
			entry.ArtifactBytes,
			nullableString(entry.FormatLabel),
			entry.Duration.Milliseconds(),
			entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, outcome, destination, channel, status, kind,
                error_message, artifact_bytes, format_label, duration_ms, created_at
         FROM delivery_steps ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForAttempt returns the steps of one attempt in execution order.
func (s *Store) ForAttempt(ctx context.Context, attemptID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, outcome, destination, channel, status, kind,
                error_message, artifact_bytes, format_label, duration_ms, created_at
         FROM delivery_steps WHERE attempt_id = ? ORDER BY id ASC`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Prune deletes entries older than the cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM delivery_steps WHERE created_at < ?", olderThan.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("prune journal: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry                                      Entry
			outcome, destination, kind, errMsg, format sql.NullString
			durationMS                                 int64
			createdAt                                  string
		)
		if err := rows.Scan(&entry.ID, &entry.AttemptID, &outcome, &destination, &entry.Channel, &entry.Status,
			&kind, &errMsg, &entry.ArtifactBytes, &format, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Outcome = outcome.String
		entry.Destination = destination.String
		entry.Kind = kind.String
		entry.Error = errMsg.String
		entry.FormatLabel = format.String
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
