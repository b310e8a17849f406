package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/morozRed/ripple/internal/logging"
	_ "modernc.org/sqlite"
)

// Entry is one processed change event.
type Entry struct {
	ID             string        `json:"id"`
	Path           string        `json:"path"`
	Classification string        `json:"classification"`
	ChangedLines   []int         `json:"changed_lines"`
	Added          int           `json:"added"`
	Deleted        int           `json:"deleted"`
	Ordered        []string      `json:"ordered"`
	DeletionImpact []string      `json:"deletion_impact"`
	Duration       time.Duration `json:"duration_ns"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Store appends entries to a SQLite database.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the history database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	logger = logging.OrDiscard(logger)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{conn: conn, logger: logger, path: path}
	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	logger.Debug("history database ready", "path", path)
	return store, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			classification TEXT NOT NULL,
			changed_lines TEXT NOT NULL,
			added INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			ordered TEXT NOT NULL,
			deletion_impact TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Record inserts e.
func (s *Store) Record(ctx context.Context, e Entry) error {
	changed, err := json.Marshal(nonNilInts(e.ChangedLines))
	if err != nil {
		return err
	}
	ordered, err := json.Marshal(nonNilStrings(e.Ordered))
	if err != nil {
		return err
	}
	deletion, err := json.Marshal(nonNilStrings(e.DeletionImpact))
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO events (id, path, classification, changed_lines, added, deleted, ordered, deletion_impact, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.conn.ExecContext(ctx, query,
		e.ID,
		e.Path,
		e.Classification,
		string(changed),
		e.Added,
		e.Deleted,
		string(ordered),
		string(deletion),
		int64(e.Duration),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, path, classification, changed_lines, added, deleted, ordered, deletion_impact, duration_ns, created_at
		FROM events
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e                         Entry
			changed, ordered, deleted string
			duration                  int64
			createdAt                 string
		)
		if err := rows.Scan(&e.ID, &e.Path, &e.Classification, &changed, &e.Added, &e.Deleted, &ordered, &deleted, &duration, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(changed), &e.ChangedLines); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(ordered), &e.Ordered); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(deleted), &e.DeletionImpact); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Duration = time.Duration(duration)
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func nonNilInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
