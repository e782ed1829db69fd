package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	_ "modernc.org/sqlite"

	"github.com/aristath/batchflow/internal/task"
)

// SQLiteTracker implements Tracker using SQLite.
type SQLiteTracker struct {
	db *sql.DB
}

// NewSQLiteTracker creates a SQLite-backed tracker at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy
// timeout so concurrent status updates from worker goroutines queue
// instead of failing.
func NewSQLiteTracker(ctx context.Context, dbPath string) (*SQLiteTracker, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initTracker(ctx, db)
}

// NewMemoryTracker creates an in-memory tracker for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryTracker(ctx context.Context) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	return initTracker(ctx, db)
}

func initTracker(ctx context.Context, db *sql.DB) (*SQLiteTracker, error) {
	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One writer, one reader; SQLite serializes writes anyway.
	db.SetMaxOpenConns(2)

	t := &SQLiteTracker{db: db}
	if err := t.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return t, nil
}

// Close closes the database connection.
func (s *SQLiteTracker) Close() error {
	return s.db.Close()
}

// Fingerprint computes a stable hash of a task definition. The tracker
// compares fingerprints on resume so an edited task list cannot be
// silently replayed against stale records.
func Fingerprint(t *task.Task) (string, error) {
	h, err := hashstructure.Hash(t, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hashing task %s: %w", t.ID, err)
	}
	return fmt.Sprintf("%016x", h), nil
}

// RegisterTask upserts the task definition, failing with an
// InconsistencyError when a prior registration carries a different
// fingerprint.
func (s *SQLiteTracker) RegisterTask(ctx context.Context, t *task.Task) error {
	fp, err := Fingerprint(t)
	if err != nil {
		return err
	}

	var existing string
	err = s.db.QueryRowContext(ctx, `SELECT fingerprint FROM tasks WHERE id = ?`, t.ID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		// First registration.
	case err != nil:
		return fmt.Errorf("failed to query task fingerprint: %w", err)
	case existing != fp:
		return &InconsistencyError{
			TaskID: t.ID,
			Detail: fmt.Sprintf("task definition changed since last run (fingerprint %s != %s)", fp, existing),
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, seq, description, phase, domain, predecessor, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seq = excluded.seq,
			description = excluded.description,
			phase = excluded.phase,
			domain = excluded.domain,
			predecessor = excluded.predecessor,
			fingerprint = excluded.fingerprint
	`, t.ID, t.Seq, t.Description, t.Phase, t.Domain, t.Predecessor, fp)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// setStatus upserts the execution record for a task.
func (s *SQLiteTracker) setStatus(ctx context.Context, taskID string, status task.Status, commitRef, evidence string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_records (task_id, status, commit_ref, evidence, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			commit_ref = excluded.commit_ref,
			evidence = excluded.evidence,
			updated_at = CURRENT_TIMESTAMP
	`, taskID, status, commitRef, evidence)
	if err != nil {
		return fmt.Errorf("failed to update execution record for %s: %w", taskID, err)
	}
	return nil
}

// MarkPending creates or resets the task's execution record.
func (s *SQLiteTracker) MarkPending(ctx context.Context, taskID string) error {
	return s.setStatus(ctx, taskID, task.StatusPending, "", "")
}

// MarkInProgress transitions the record to in_progress.
func (s *SQLiteTracker) MarkInProgress(ctx context.Context, taskID string) error {
	return s.setStatus(ctx, taskID, task.StatusInProgress, "", "")
}

// MarkCompleted records completion with the checkpoint commit and evidence.
func (s *SQLiteTracker) MarkCompleted(ctx context.Context, taskID, commitRef, evidence string) error {
	return s.setStatus(ctx, taskID, task.StatusCompleted, commitRef, evidence)
}

// MarkFailed records failure; the reason lands in the evidence column
// and, via the rollback manager, in the failure ledger.
func (s *SQLiteTracker) MarkFailed(ctx context.Context, taskID, reason string) error {
	return s.setStatus(ctx, taskID, task.StatusFailed, "", reason)
}

// MarkBlocked records that the task was never dispatched.
func (s *SQLiteTracker) MarkBlocked(ctx context.Context, taskID, reason string) error {
	return s.setStatus(ctx, taskID, task.StatusBlocked, "", reason)
}

// QueryStatus returns the task's execution record. A task with no
// record yet reports StatusPending.
func (s *SQLiteTracker) QueryStatus(ctx context.Context, taskID string) (task.ExecutionRecord, error) {
	rec := task.ExecutionRecord{TaskID: taskID, Status: task.StatusPending}
	var commitRef, evidence sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT status, commit_ref, evidence, updated_at
		FROM execution_records
		WHERE task_id = ?
	`, taskID).Scan(&rec.Status, &commitRef, &evidence, &rec.Timestamp)

	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("failed to query execution record for %s: %w", taskID, err)
	}

	rec.CommitRef = commitRef.String
	rec.Evidence = evidence.String
	return rec, nil
}

// ListRecords returns all execution records ordered by task sequence.
func (s *SQLiteTracker) ListRecords(ctx context.Context) ([]task.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.task_id, r.status, r.commit_ref, r.evidence, r.updated_at
		FROM execution_records r
		JOIN tasks t ON t.id = r.task_id
		ORDER BY t.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	defer rows.Close()

	var records []task.ExecutionRecord
	for rows.Next() {
		var rec task.ExecutionRecord
		var commitRef, evidence sql.NullString
		if err := rows.Scan(&rec.TaskID, &rec.Status, &commitRef, &evidence, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		rec.CommitRef = commitRef.String
		rec.Evidence = evidence.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}
	return records, nil
}

// AppendFailure appends an entry to the failure ledger.
func (s *SQLiteTracker) AppendFailure(ctx context.Context, taskID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failure_ledger (task_id, reason)
		VALUES (?, ?)
	`, taskID, reason)
	if err != nil {
		return fmt.Errorf("failed to append failure entry for %s: %w", taskID, err)
	}
	return nil
}

// Failures returns the ledger in append order.
func (s *SQLiteTracker) Failures(ctx context.Context) ([]FailureEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, reason, created_at
		FROM failure_ledger
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure ledger: %w", err)
	}
	defer rows.Close()

	var entries []FailureEntry
	for rows.Next() {
		var e FailureEntry
		if err := rows.Scan(&e.TaskID, &e.Reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan failure entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure ledger: %w", err)
	}
	return entries, nil
}

// SaveCheckpoint records the commit created for a settled group.
func (s *SQLiteTracker) SaveCheckpoint(ctx context.Context, groupIndex int, commitRef string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, group_idx, commit_ref)
		VALUES (?, ?, ?)
	`, uuid.NewString(), groupIndex, commitRef)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for group %d: %w", groupIndex, err)
	}
	return nil
}

// Checkpoints returns all checkpoints in group order.
func (s *SQLiteTracker) Checkpoints(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_idx, commit_ref, created_at
		FROM checkpoints
		ORDER BY group_idx
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(&cp.ID, &cp.GroupIndex, &cp.CommitRef, &cp.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}
	return checkpoints, nil
}
