package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

// ErrEmptyPath is returned by Open when no database path is configured.
var ErrEmptyPath = errors.New("history path is empty")

// Entry is one recorded package sync.
type Entry struct {
	// ID is assigned by the database.
	ID int64
	// RunID groups the entries of one sync invocation.
	RunID string
	// Package is "owner/repo".
	Package string
	// Tag is the release tag, empty when the lookup failed.
	Tag string
	// Asset is the selected asset name, empty when selection failed.
	Asset string
	// Installed lists the executables copied into the install directory.
	Installed []string
	// Truncated reports that the download was cut by the size cap.
	Truncated bool
	// ErrorKind is the taxonomy kind of the failure, empty on success.
	ErrorKind string
	// ErrorMessage is the failure text, empty on success.
	ErrorMessage string
	// StartedAt is when the pipeline began.
	StartedAt time.Time
	// Duration is how long the pipeline ran.
	Duration time.Duration
}

// Succeeded reports whether the entry has no error.
func (e *Entry) Succeeded() bool {
	return e.ErrorKind == "" && e.ErrorMessage == ""
}

// Recorder appends sync outcomes.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// Repository reads and writes the sync history.
type Repository interface {
	Recorder
	Latest(ctx context.Context) ([]*Entry, error)
	Close() error
}

// SQLiteRepository stores the history in a SQLite database file.
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	repo := &SQLiteRepository{db: db}
	if err = repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sync_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT    NOT NULL,
			package       TEXT    NOT NULL,
			tag           TEXT    NOT NULL DEFAULT '',
			asset         TEXT    NOT NULL DEFAULT '',
			installed     TEXT    NOT NULL DEFAULT '[]',
			truncated     INTEGER NOT NULL DEFAULT 0,
			error_kind    TEXT    NOT NULL DEFAULT '',
			error_message TEXT    NOT NULL DEFAULT '',
			started_at    INTEGER NOT NULL,
			duration_ns   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sync_history_package ON sync_history (package, id);
	`)
	if err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}

	return nil
}

// Record appends entry and sets its ID.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	installed := entry.Installed
	if installed == nil {
		installed = []string{}
	}

	encoded, err := json.Marshal(installed)
	if err != nil {
		return fmt.Errorf("encode installed executables: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_history (
			run_id, package, tag, asset, installed, truncated,
			error_kind, error_message, started_at, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.RunID, entry.Package, entry.Tag, entry.Asset, string(encoded), entry.Truncated,
		entry.ErrorKind, entry.ErrorMessage, entry.StartedAt.UnixNano(), int64(entry.Duration),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if entry.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("read history entry id: %w", err)
	}

	return nil
}

// Latest returns the newest entry of every package ordered by package name.
func (r *SQLiteRepository) Latest(ctx context.Context) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.run_id, h.package, h.tag, h.asset, h.installed, h.truncated,
		       h.error_kind, h.error_message, h.started_at, h.duration_ns
		FROM sync_history h
		WHERE h.id = (SELECT MAX(id) FROM sync_history WHERE package = h.package)
		ORDER BY h.package
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	defer rows.Close()

	var entries []*Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		entry      Entry
		installed  string
		startedAt  int64
		durationNS int64
	)

	err := rows.Scan(
		&entry.ID, &entry.RunID, &entry.Package, &entry.Tag, &entry.Asset, &installed, &entry.Truncated,
		&entry.ErrorKind, &entry.ErrorMessage, &startedAt, &durationNS,
	)
	if err != nil {
		return nil, fmt.Errorf("scan history entry: %w", err)
	}

	if err = json.Unmarshal([]byte(installed), &entry.Installed); err != nil {
		return nil, fmt.Errorf("decode installed executables: %w", err)
	}

	entry.StartedAt = time.Unix(0, startedAt)
	entry.Duration = time.Duration(durationNS)

	return &entry, nil
}
