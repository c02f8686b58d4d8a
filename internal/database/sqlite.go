package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tkilaker/newsminer/internal/models"
)

// Times are stored as fixed width UTC text so they sort lexically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is a single file store for local runs
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLite{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		search_phrase TEXT NOT NULL,
		news_category TEXT NOT NULL DEFAULT '',
		number_of_months INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		failure_kind TEXT NOT NULL DEFAULT '',
		failure_message TEXT NOT NULL DEFAULT '',
		record_count INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		published_at TEXT NOT NULL,
		picture_file TEXT NOT NULL,
		keyword_count INTEGER NOT NULL,
		contains_monetary INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS records_published_at_idx ON records (published_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run
func (s *SQLite) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunRunning

	query := `
		INSERT INTO runs (id, job_id, search_phrase, news_category, number_of_months, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.JobID,
		run.Job.SearchPhrase,
		run.Job.NewsCategory,
		run.Job.NumberOfMonths,
		string(run.Status),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// FinishRun records the outcome of a run
func (s *SQLite) FinishRun(ctx context.Context, id string, outcome RunOutcome) error {
	query := `
		UPDATE runs
		SET status = ?, failure_kind = ?, failure_message = ?, record_count = ?, finished_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(outcome.Status),
		outcome.FailureKind,
		outcome.FailureMessage,
		outcome.RecordCount,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}

	return nil
}

// SaveRecords inserts the records of a run in one transaction
func (s *SQLite) SaveRecords(ctx context.Context, runID string, records []models.ArticleRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, title, description, published_at, picture_file, keyword_count, contains_monetary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			runID,
			r.Title,
			r.Description,
			formatTime(r.PublishedAt),
			r.ImageFile,
			r.KeywordCount,
			r.ContainsMonetary,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}

	return nil
}

// ListRuns retrieves runs, most recent first
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a run by its ID
func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanSQLiteRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// RunRecords retrieves the records of a run in extraction order
func (s *SQLite) RunRecords(ctx context.Context, runID string) ([]*Record, error) {
	query := `
		SELECT id, run_id, title, description, published_at, picture_file, keyword_count, contains_monetary, created_at
		FROM records
		WHERE run_id = ?
		ORDER BY id
	`
	return s.queryRecords(ctx, query, runID)
}

// RecentRecords retrieves the most recently published records
func (s *SQLite) RecentRecords(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT id, run_id, title, description, published_at, picture_file, keyword_count, contains_monetary, created_at
		FROM records
		ORDER BY published_at DESC, id DESC
		LIMIT ?
	`
	return s.queryRecords(ctx, query, limit)
}

func (s *SQLite) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		var publishedAt, createdAt string
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Title,
			&r.Description,
			&publishedAt,
			&r.ImageFile,
			&r.KeywordCount,
			&r.ContainsMonetary,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if r.PublishedAt, err = parseTime(publishedAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*Run, error) {
	var run Run
	var status, startedAt string
	var finishedAt sql.NullString

	err := row.Scan(
		&run.ID,
		&run.JobID,
		&run.Job.SearchPhrase,
		&run.Job.NewsCategory,
		&run.Job.NumberOfMonths,
		&status,
		&run.FailureKind,
		&run.FailureMessage,
		&run.RecordCount,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}

	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

var _ Store = (*SQLite)(nil)
