package tracker

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteTracker) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		description TEXT NOT NULL,
		phase INTEGER NOT NULL,
		domain INTEGER NOT NULL,
		predecessor TEXT,
		fingerprint TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS execution_records (
		task_id TEXT PRIMARY KEY,
		status INTEGER NOT NULL,
		commit_ref TEXT,
		evidence TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS failure_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		group_idx INTEGER NOT NULL,
		commit_ref TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_failure_ledger_task_id ON failure_ledger(task_id);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_group_idx ON checkpoints(group_idx);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
