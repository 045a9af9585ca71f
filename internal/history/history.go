package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	zerr "github.com/ivlev/screenzoom/internal/errors"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Run is one finished export.
type Run struct {
	ID        string
	ProjectID string
	State     string // completed, failed or cancelled
	Output    string
	Frames    int
	Total     int
	FPS       float64
	Quality   string
	StartedAt time.Time
	Elapsed   time.Duration
	Error     string
}

// Store keeps export runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes the database at baseDir/history.db.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "history.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS export_runs (
		  id          TEXT PRIMARY KEY,
		  project_id  TEXT NOT NULL,
		  state       TEXT NOT NULL,
		  output      TEXT,
		  frames      INTEGER NOT NULL,
		  total       INTEGER NOT NULL,
		  fps         REAL NOT NULL,
		  quality     TEXT,
		  started_at  INTEGER NOT NULL,
		  elapsed_ms  INTEGER NOT NULL,
		  error       TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_export_runs_project_started
		ON export_runs(project_id, started_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// Record stores a run. A ULID is assigned when run.ID is empty.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ProjectID == "" {
		return zerr.NewInvalidSettings("history run without project id")
	}
	if run.ID == "" {
		id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
		if err != nil {
			return zerr.NewInternal(err)
		}
		run.ID = id.String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_runs (id, project_id, state, output, frames, total, fps, quality, started_at, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.ProjectID, run.State, toNullString(run.Output), run.Frames, run.Total, run.FPS,
		toNullString(run.Quality), run.StartedAt.UnixMilli(), run.Elapsed.Milliseconds(), toNullString(run.Error))
	if err != nil {
		return zerr.NewInternal(err)
	}
	return nil
}

// List returns the newest runs of a project first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, projectID string, limit int) ([]Run, error) {
	query := `
		SELECT id, project_id, state, output, frames, total, fps, quality, started_at, elapsed_ms, error
		FROM export_runs
		WHERE project_id = ?
		ORDER BY started_at DESC, id DESC
	`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, zerr.NewInternal(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, zerr.NewInternal(err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.NewInternal(err)
	}
	return runs, nil
}

// Latest returns the newest run of a project.
func (s *Store) Latest(ctx context.Context, projectID string) (Run, error) {
	runs, err := s.List(ctx, projectID, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, zerr.NewNotFound("export run", projectID)
	}
	return runs[0], nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run                     Run
		output, quality, errMsg sql.NullString
		startedAt, elapsedMs    int64
	)
	if err := rows.Scan(&run.ID, &run.ProjectID, &run.State, &output, &run.Frames, &run.Total,
		&run.FPS, &quality, &startedAt, &elapsedMs, &errMsg); err != nil {
		return Run{}, err
	}
	run.Output = output.String
	run.Quality = quality.String
	run.Error = errMsg.String
	run.StartedAt = time.UnixMilli(startedAt)
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return run, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
