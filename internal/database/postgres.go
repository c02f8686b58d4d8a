package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tkilaker/newsminer/internal/models"
)

const postgresSchema = `
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
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS records (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		picture_file TEXT NOT NULL,
		keyword_count INTEGER NOT NULL,
		contains_monetary BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS records_published_at_idx ON records (published_at DESC);
`

// Postgres is the pgx backed store
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to url and creates the schema
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the pool
func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}

// CreateRun inserts a new run
func (db *Postgres) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunRunning

	query := `
		INSERT INTO runs (id, job_id, search_phrase, news_category, number_of_months, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.pool.Exec(ctx, query,
		run.ID,
		run.JobID,
		run.Job.SearchPhrase,
		run.Job.NewsCategory,
		run.Job.NumberOfMonths,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// FinishRun records the outcome of a run
func (db *Postgres) FinishRun(ctx context.Context, id string, outcome RunOutcome) error {
	query := `
		UPDATE runs
		SET status = $2, failure_kind = $3, failure_message = $4, record_count = $5, finished_at = $6
		WHERE id = $1
	`

	tag, err := db.pool.Exec(ctx, query,
		id,
		outcome.Status,
		outcome.FailureKind,
		outcome.FailureMessage,
		outcome.RecordCount,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}

	return nil
}

// SaveRecords bulk loads the records of a run
func (db *Postgres) SaveRecords(ctx context.Context, runID string, records []models.ArticleRecord) error {
	if len(records) == 0 {
		return nil
	}

	columns := []string{"run_id", "title", "description", "published_at", "picture_file", "keyword_count", "contains_monetary"}
	_, err := db.pool.CopyFrom(ctx, pgx.Identifier{"records"}, columns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{runID, r.Title, r.Description, r.PublishedAt, r.ImageFile, r.KeywordCount, r.ContainsMonetary}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}

	return nil
}

const runColumns = `id, job_id, search_phrase, news_category, number_of_months, status,
		failure_kind, failure_message, record_count, started_at, finished_at`

// ListRuns retrieves runs, most recent first
func (db *Postgres) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
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
func (db *Postgres) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanPostgresRun(db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// RunRecords retrieves the records of a run in extraction order
func (db *Postgres) RunRecords(ctx context.Context, runID string) ([]*Record, error) {
	query := `
		SELECT id, run_id, title, description, published_at, picture_file, keyword_count, contains_monetary, created_at
		FROM records
		WHERE run_id = $1
		ORDER BY id
	`
	return db.queryRecords(ctx, query, runID)
}

// RecentRecords retrieves the most recently published records
func (db *Postgres) RecentRecords(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT id, run_id, title, description, published_at, picture_file, keyword_count, contains_monetary, created_at
		FROM records
		ORDER BY published_at DESC, id DESC
		LIMIT $1
	`
	return db.queryRecords(ctx, query, limit)
}

func (db *Postgres) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Title,
			&r.Description,
			&r.PublishedAt,
			&r.ImageFile,
			&r.KeywordCount,
			&r.ContainsMonetary,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

func scanPostgresRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.JobID,
		&run.Job.SearchPhrase,
		&run.Job.NewsCategory,
		&run.Job.NumberOfMonths,
		&run.Status,
		&run.FailureKind,
		&run.FailureMessage,
		&run.RecordCount,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

var _ Store = (*Postgres)(nil)
