// Package runstore provides SQLite-backed history of work-item executions,
// so past runs stay inspectable after the process exits.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/buildpool"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
)

// Store provides SQLite-backed item-run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertItemRun records the start of one work item's execution
func (s *Store) InsertItemRun(rec buildpool.ItemRun) error {
	_, err := s.db.Exec(`
		INSERT INTO item_runs (id, run_id, item_id, feature_name, order_path, status, attempts, error_message, started_at, tokens_input, tokens_output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.RunID,
		rec.ItemID,
		rec.FeatureName,
		rec.OrderPath,
		rec.Status,
		rec.Attempts,
		rec.Error,
		rec.StartedAt,
		rec.TokensIn,
		rec.TokensOut,
	)
	return err
}

// UpdateItemRun records an item's final outcome
func (s *Store) UpdateItemRun(id string, outcome domain.Outcome) error {
	status := "failed"
	if outcome.Succeeded {
		status = "completed"
	}
	_, err := s.db.Exec(`
		UPDATE item_runs
		SET status = ?, attempts = ?, error_message = ?, finished_at = ?, tokens_input = ?, tokens_output = ?
		WHERE id = ?
	`,
		status,
		outcome.Attempts,
		outcome.Error,
		time.Now(),
		outcome.TokensInput,
		outcome.TokensOutput,
		id,
	)
	return err
}

// ListItemRuns returns all item runs for a pipeline run, oldest first
func (s *Store) ListItemRuns(runID string) ([]buildpool.ItemRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, item_id, feature_name, order_path, status, attempts, error_message, started_at, finished_at, tokens_input, tokens_output
		FROM item_runs WHERE run_id = ? ORDER BY started_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []buildpool.ItemRun
	for rows.Next() {
		var rec buildpool.ItemRun
		var orderPath, errMsg sql.NullString
		var finishedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ItemID, &rec.FeatureName, &orderPath, &rec.Status, &rec.Attempts, &errMsg, &rec.StartedAt, &finishedAt, &rec.TokensIn, &rec.TokensOut); err != nil {
			return nil, err
		}
		rec.OrderPath = orderPath.String
		rec.Error = errMsg.String
		if finishedAt.Valid {
			rec.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}

// ListRecentItemRuns returns the most recent item runs across all pipeline runs
func (s *Store) ListRecentItemRuns(limit int) ([]buildpool.ItemRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, item_id, feature_name, order_path, status, attempts, error_message, started_at, finished_at, tokens_input, tokens_output
		FROM item_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []buildpool.ItemRun
	for rows.Next() {
		var rec buildpool.ItemRun
		var orderPath, errMsg sql.NullString
		var finishedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ItemID, &rec.FeatureName, &orderPath, &rec.Status, &rec.Attempts, &errMsg, &rec.StartedAt, &finishedAt, &rec.TokensIn, &rec.TokensOut); err != nil {
			return nil, err
		}
		rec.OrderPath = orderPath.String
		rec.Error = errMsg.String
		if finishedAt.Valid {
			rec.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}

// RunCounts returns succeeded/failed totals for a pipeline run
func (s *Store) RunCounts(runID string) (completed, failed int, err error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM item_runs WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, err
		}
		switch status {
		case "completed":
			completed = count
		case "failed":
			failed = count
		}
	}
	return completed, failed, rows.Err()
}
