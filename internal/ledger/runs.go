package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loom/internal/services"
	"loom/internal/transcribe"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Run is one row of run history.
type Run struct {
	ID           string
	Input        string
	OutputDir    string
	Status       Status
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string
	Chunks       int
	Succeeded    int
	Skipped      int
	Failed       int
	SRTPath      string
}

// Duration returns how long the run took, or has been running.
func (r Run) Duration(now time.Time) time.Duration {
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if r.StartedAt.IsZero() || end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}

// ChunkResult is the recorded outcome of one chunk within a run.
type ChunkResult struct {
	RunID        string
	Chunk        string
	Status       string
	Attempts     int
	Region       string
	ErrorMessage string
	UpdatedAt    time.Time
}

// Finish carries the final state written by FinishRun.
type Finish struct {
	Status    Status
	Err       error
	Chunks    int
	Succeeded int
	Skipped   int
	Failed    int
	SRTPath   string
}

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, id, input, outputDir string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("run id is required")
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, input, output_dir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, input, outputDir, string(StatusRunning), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordChunk upserts a chunk outcome for the run id carried by ctx.
func (s *Store) RecordChunk(ctx context.Context, outcome transcribe.Outcome) error {
	runID, ok := services.RunIDFromContext(orBackground(ctx))
	if !ok {
		return errors.New("record chunk: no run id in context")
	}
	errMsg := ""
	if outcome.Err != nil {
		errMsg = outcome.Err.Error()
	}
	_, err := s.exec(ctx,
		`INSERT INTO chunk_results (run_id, chunk, status, attempts, region, error_message, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, chunk) DO UPDATE SET
		   status = excluded.status,
		   attempts = excluded.attempts,
		   region = excluded.region,
		   error_message = excluded.error_message,
		   updated_at = excluded.updated_at`,
		runID, outcome.Chunk, string(outcome.Status), outcome.Attempts,
		nullable(outcome.Region), nullable(errMsg), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("record chunk %s: %w", outcome.Chunk, err)
	}
	return nil
}

// FinishRun stamps the final status and counts of a run.
func (s *Store) FinishRun(ctx context.Context, id string, fin Finish) error {
	errMsg := ""
	if fin.Err != nil {
		errMsg = fin.Err.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ?,
		   chunks = ?, succeeded = ?, skipped = ?, failed = ?, srt_path = ?
		 WHERE id = ?`,
		string(fin.Status), formatTime(s.now()), nullable(errMsg),
		fin.Chunks, fin.Succeeded, fin.Skipped, fin.Failed, nullable(fin.SRTPath),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, services.ErrNotFound)
	}
	return nil
}

const runColumns = `id, input, output_dir, status, started_at, finished_at, error_message,
	chunks, succeeded, skipped, failed, srt_path`

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = orBackground(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id, returning nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(orBackground(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ChunkResults lists the chunk outcomes of a run ordered by chunk name.
func (s *Store) ChunkResults(ctx context.Context, runID string) ([]ChunkResult, error) {
	rows, err := s.db.QueryContext(orBackground(ctx),
		`SELECT run_id, chunk, status, attempts, region, error_message, updated_at
		 FROM chunk_results WHERE run_id = ? ORDER BY chunk`, runID)
	if err != nil {
		return nil, fmt.Errorf("list chunk results: %w", err)
	}
	defer rows.Close()

	var results []ChunkResult
	for rows.Next() {
		var (
			r         ChunkResult
			region    sql.NullString
			errMsg    sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&r.RunID, &r.Chunk, &r.Status, &r.Attempts, &region, &errMsg, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		r.Region = region.String
		r.ErrorMessage = errMsg.String
		r.UpdatedAt, _ = parseTime(updatedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		status     string
		startedAt  string
		finishedAt sql.NullString
		errMsg     sql.NullString
		srtPath    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID, &run.Input, &run.OutputDir, &status, &startedAt, &finishedAt, &errMsg,
		&run.Chunks, &run.Succeeded, &run.Skipped, &run.Failed, &srtPath,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.ErrorMessage = errMsg.String
	run.SRTPath = srtPath.String
	run.StartedAt, _ = parseTime(startedAt)
	if finishedAt.Valid {
		if t, ok := parseTime(finishedAt.String); ok {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

var _ transcribe.Recorder = (*Store)(nil)
