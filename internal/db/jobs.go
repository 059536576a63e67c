// internal/db/jobs.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// JobRecord is one row of generation-job history: every call the studio
// makes into the pipeline backend that produces an asset (scene render,
// lip-sync, music, composition) gets a record.
type JobRecord struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Kind       string     `json:"kind"` // scene_render, lipsync, music, youtube_audio, compose, reference_image
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobCounts aggregates job history per status.
type JobCounts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Store keeps generation-job history in SQLite.
type Store struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
`

// New opens (creating if needed) the job-history database at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite is happiest with a single writer connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// RecordStart inserts a running job.
func (s *Store) RecordStart(ctx context.Context, id, projectID, kind string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO jobs (id, project_id, kind, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		id, projectID, kind, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record job start: %w", err)
	}
	return nil
}

// RecordFinish marks a job completed or failed.
func (s *Store) RecordFinish(ctx context.Context, id string, jobErr error) error {
	status, errMsg := "completed", ""
	if jobErr != nil {
		status, errMsg = "failed", jobErr.Error()
	}

	_, err := s.conn.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record job finish: %w", err)
	}
	return nil
}

// RecentJobs returns up to limit jobs, newest first. projectID filters to
// one project when non-empty.
func (s *Store) RecentJobs(ctx context.Context, projectID string, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, project_id, kind, status, error, started_at, finished_at
		FROM jobs `
	args := []interface{}{}
	if projectID != "" {
		query += `WHERE project_id = ? `
		args = append(args, projectID)
	}
	query += `ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		var finished sql.NullTime
		if err := rows.Scan(&j.ID, &j.ProjectID, &j.Kind, &j.Status, &j.Error, &j.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Counts aggregates job history by status.
func (s *Store) Counts(ctx context.Context) (*JobCounts, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := &JobCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts.Total += n
		switch status {
		case "running":
			counts.Running = n
		case "completed":
			counts.Completed = n
		case "failed":
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}
