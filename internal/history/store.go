package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"asrtt/internal/config"
	"asrtt/internal/services/gitlab"
	"asrtt/internal/tracker"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultLimit bounds Recent when the caller passes no limit.
	DefaultLimit = 20
	// MaxLimit caps how many rows Recent returns.
	MaxLimit = 500

	// timeLayout is fixed-width so text ordering matches time ordering.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Entry is one closed session as stored in the journal.
type Entry struct {
	ID        string
	Worker    string
	Branch    string
	Project   string
	Host      string
	Issue     int
	Elapsed   time.Duration
	Logged    bool
	Reason    string
	StartedAt time.Time
	StoppedAt time.Time
}

// Store persists closed sessions in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the journal configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.History.Path)
}

// OpenPath opens or creates a journal at path.
func OpenPath(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

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

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record appends a closed session.
func (s *Store) Record(ctx context.Context, session tracker.Session) error {
	ctx = ensureContext(ctx)
	issue, linked := gitlab.IssueFromBranch(session.Branch)
	var issueValue sql.NullInt64
	if linked {
		issueValue = sql.NullInt64{Int64: int64(issue), Valid: true}
	}
	var started sql.NullString
	if !session.StartedAt.IsZero() {
		started = sql.NullString{String: session.StartedAt.UTC().Format(timeLayout), Valid: true}
	}
	stopped := session.StoppedAt
	if stopped.IsZero() {
		stopped = time.Now()
	}

	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
			(id, worker, branch, project, host, issue, elapsed_seconds, logged, reason, started_at, stopped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(),
			session.Worker,
			session.Branch,
			session.Project,
			session.Host,
			issueValue,
			int64(session.Elapsed/time.Second),
			boolToInt(session.Remote && linked),
			string(session.Reason),
			started,
			stopped.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		id, worker, branch, project, host, issue, elapsed_seconds, logged, reason, started_at, stopped_at
		FROM sessions ORDER BY stopped_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			issue   sql.NullInt64
			elapsed int64
			logged  int
			started sql.NullString
			stopped string
		)
		if err := rows.Scan(&entry.ID, &entry.Worker, &entry.Branch, &entry.Project, &entry.Host,
			&issue, &elapsed, &logged, &entry.Reason, &started, &stopped); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if issue.Valid {
			entry.Issue = int(issue.Int64)
		}
		entry.Elapsed = time.Duration(elapsed) * time.Second
		entry.Logged = logged != 0
		if started.Valid {
			entry.StartedAt = parseTime(started.String)
		}
		entry.StoppedAt = parseTime(stopped)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return entries, nil
}

// Prune deletes sessions stopped before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE stopped_at < ?", cutoff.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return removed, nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
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
