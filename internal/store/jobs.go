// This file implements the durable job queue: enqueue, the claim protocol,
// outcome commits and the operator views.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/folio/pkg/types"
)

const jobColumns = "job_id, job_type, payload, status, result, claimed_by, created_at, updated_at"

// EnqueueJob inserts a PENDING job.
func (s *Store) EnqueueJob(ctx context.Context, jobType string, payload json.RawMessage) (*types.Job, error) {
	if jobType == "" {
		return nil, fmt.Errorf("job type must not be empty: %w", types.ErrValidation)
	}
	if !json.Valid(payload) {
		return nil, types.ErrInvalidPayload
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now, ts := s.now()
	_, err = s.exec(ctx, s.db,
		"INSERT INTO jobs ("+jobColumns+") VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)",
		id, jobType, string(payload), string(types.JobPending), ts, ts,
	)
	if err != nil {
		return nil, translate(err, "inserting job")
	}
	return &types.Job{
		JobID:     id,
		JobType:   jobType,
		Payload:   payload,
		Status:    types.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetJob returns the job with the given id.
func (s *Store) GetJob(ctx context.Context, id string) (*types.Job, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := s.queryRow(ctx, s.db, "SELECT "+jobColumns+" FROM jobs WHERE job_id = ?", id)
	job, err := hydrateJob(row)
	if err != nil {
		return nil, notFound(err, "getting job "+id)
	}
	return job, nil
}

// ListJobs returns jobs in FIFO order, optionally restricted to one status.
func (s *Store) ListJobs(ctx context.Context, status types.JobStatus) ([]types.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at, job_id"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []types.Job
	for rows.Next() {
		job, err := hydrateJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// ClaimJob moves the oldest PENDING job to RUNNING on behalf of worker and
// returns it, or returns nil when the queue is empty.
//
// On Postgres the candidate row is read with FOR UPDATE SKIP LOCKED so
// concurrent claimers pass over each other's rows. On SQLite the single
// connection serialises claimers and the update is guarded on the PENDING
// status.
func (s *Store) ClaimJob(ctx context.Context, worker string) (*types.Job, error) {
	var job *types.Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if s.dialect == DialectPostgres {
			job, err = s.claimSkipLocked(ctx, tx, worker)
		} else {
			job, err = s.claimGuarded(ctx, tx, worker)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return job, nil
}

func (s *Store) claimSkipLocked(ctx context.Context, tx *sql.Tx, worker string) (*types.Job, error) {
	row := s.queryRow(ctx, tx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ?
         ORDER BY created_at, job_id LIMIT 1 FOR UPDATE SKIP LOCKED`,
		string(types.JobPending),
	)
	job, err := hydrateJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	now, ts := s.now()
	if _, err := s.exec(ctx, tx,
		"UPDATE jobs SET status = ?, claimed_by = ?, updated_at = ? WHERE job_id = ?",
		string(types.JobRunning), worker, ts, job.JobID,
	); err != nil {
		return nil, err
	}
	job.Status = types.JobRunning
	job.ClaimedBy = &worker
	job.UpdatedAt = now
	return job, nil
}

func (s *Store) claimGuarded(ctx context.Context, tx *sql.Tx, worker string) (*types.Job, error) {
	_, ts := s.now()
	row := s.queryRow(ctx, tx,
		`UPDATE jobs SET status = ?, claimed_by = ?, updated_at = ?
         WHERE status = ? AND job_id = (
             SELECT job_id FROM jobs WHERE status = ? ORDER BY created_at, job_id LIMIT 1
         )
         RETURNING `+jobColumns,
		string(types.JobRunning), worker, ts, string(types.JobPending), string(types.JobPending),
	)
	job, err := hydrateJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// CompleteJob marks a RUNNING job COMPLETED with result.
func (s *Store) CompleteJob(ctx context.Context, id string, result *string) error {
	return s.finishJob(ctx, id, types.JobCompleted, result)
}

// FailJob marks a RUNNING job FAILED with reason.
func (s *Store) FailJob(ctx context.Context, id, reason string) error {
	return s.finishJob(ctx, id, types.JobFailed, &reason)
}

func (s *Store) finishJob(ctx context.Context, id string, status types.JobStatus, result *string) error {
	_, ts := s.now()
	res, err := s.exec(ctx, s.db,
		"UPDATE jobs SET status = ?, result = ?, updated_at = ? WHERE job_id = ? AND status = ?",
		string(status), nullString(result), ts, id, string(types.JobRunning),
	)
	if err != nil {
		return fmt.Errorf("finishing job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing job %s: %w", id, err)
	}
	if n == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("finishing job %s: not running: %w", id, types.ErrConflict)
	}
	return nil
}

// FailRunningJobs marks the RUNNING jobs whose claimer id starts with
// claimerPrefix FAILED with reason and returns how many rows changed. An
// empty prefix matches every RUNNING job.
func (s *Store) FailRunningJobs(ctx context.Context, claimerPrefix, reason string) (int64, error) {
	_, ts := s.now()
	query := "UPDATE jobs SET status = ?, result = ?, updated_at = ? WHERE status = ?"
	args := []any{string(types.JobFailed), reason, ts, string(types.JobRunning)}
	if claimerPrefix != "" {
		query += ` AND claimed_by LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(claimerPrefix))
	}
	res, err := s.exec(ctx, s.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failing running jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetJob returns a RUNNING or FAILED job to PENDING so it is claimed
// again, clearing its result and claimer.
func (s *Store) ResetJob(ctx context.Context, id string) error {
	_, ts := s.now()
	res, err := s.exec(ctx, s.db,
		"UPDATE jobs SET status = ?, result = NULL, claimed_by = NULL, updated_at = ? WHERE job_id = ? AND status IN (?, ?)",
		string(types.JobPending), ts, id, string(types.JobRunning), string(types.JobFailed),
	)
	if err != nil {
		return fmt.Errorf("resetting job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resetting job %s: %w", id, err)
	}
	if n == 0 {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("resetting job %s in %s: %w", id, job.Status, types.ErrConflict)
	}
	return nil
}

// likePrefix escapes the LIKE wildcards in prefix and appends %.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func hydrateJob(row rowScanner) (*types.Job, error) {
	var (
		job                  types.Job
		payload, status      string
		result, claimedBy    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&job.JobID, &job.JobType, &payload, &status, &result, &claimedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	job.Status = types.JobStatus(status)
	job.Result = stringPtr(result)
	job.ClaimedBy = stringPtr(claimedBy)
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}
