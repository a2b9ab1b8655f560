package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/rostersync/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Fixed width so modified_at sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps snapshots in an append-only SQLite table.
// Uses WAL mode so a running server can read while a sync writes.
type SQLiteStore struct {
	db     *sql.DB
	prefix string
	now    func() time.Time
}

// OpenSQLite creates or opens a SQLite snapshot database at path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path, prefix string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SQLiteStore{db: db, prefix: prefix, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot under the store prefix.
// Insertion order breaks modification-time ties.
func (s *SQLiteStore) Latest(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, modified_at, body
		FROM snapshots
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY modified_at DESC, id DESC
		LIMIT 1
	`, s.prefix, s.prefix)
	return scanSnapshot(row)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, modified_at, body FROM snapshots WHERE key = ?
	`, key)
	snap, err := scanSnapshot(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return snap, err
}

// Put inserts a new snapshot. Existing keys are never overwritten.
func (s *SQLiteStore) Put(ctx context.Context, key string, records []record.Record) error {
	body, err := encodeBody(key, records)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, modified_at, body) VALUES (?, ?, ?)
	`, key, s.now().UTC().Format(sqliteTimeLayout), body)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM snapshots
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key COLLATE BINARY ASC
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan snapshot key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return keys, nil
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		key      string
		modified string
		body     []byte
	)
	if err := row.Scan(&key, &modified, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	t, err := time.Parse(sqliteTimeLayout, modified)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: bad modified_at %q: %w", key, modified, err)
	}
	return decodeBody(key, t, body)
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
