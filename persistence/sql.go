package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLStrategy persists the queue image in a single table via database/sql,
// driver-agnostic (exercised in tests against github.com/mattn/go-sqlite3,
// grounded on the pack's orbit_db example). Save replaces the full table
// inside a transaction; Load orders by (priority, submit_time).
type SQLStrategy struct {
	db        *sql.DB
	tableName string
}

// NewSQLStrategy wraps an already-open *sql.DB. Callers own the DB's
// lifecycle (opening, closing, driver selection); this strategy only issues
// statements against it.
func NewSQLStrategy(db *sql.DB) *SQLStrategy {
	return &SQLStrategy{db: db, tableName: "persistent_tasks"}
}

// EnsureSchema creates the persistent_tasks table if it does not exist.
// Callers typically invoke this once at startup.
func (s *SQLStrategy) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		task_id TEXT NOT NULL,
		submit_time BIGINT NOT NULL,
		priority INTEGER NOT NULL,
		serialized_task BLOB
	)`, s.tableName))
	if err != nil {
		return wrapErr("sql.ensureschema", err)
	}
	return nil
}

func (s *SQLStrategy) Save(ctx context.Context, tasks []SerializableTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("sql.save.begin", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName)); err != nil {
		tx.Rollback()
		return wrapErr("sql.save.delete", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (task_id, submit_time, priority, serialized_task) VALUES (?, ?, ?, ?)", s.tableName))
	if err != nil {
		tx.Rollback()
		return wrapErr("sql.save.prepare", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, t.TaskID, t.SubmitTimeMs, t.Priority, t.Blob); err != nil {
			tx.Rollback()
			return wrapErr("sql.save.insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("sql.save.commit", err)
	}
	return nil
}

func (s *SQLStrategy) Load(ctx context.Context) ([]SerializableTask, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT task_id, submit_time, priority, serialized_task FROM %s ORDER BY priority, submit_time", s.tableName))
	if err != nil {
		return nil, wrapErr("sql.load.query", err)
	}
	defer rows.Close()

	var out []SerializableTask
	for rows.Next() {
		var t SerializableTask
		if err := rows.Scan(&t.TaskID, &t.SubmitTimeMs, &t.Priority, &t.Blob); err != nil {
			return nil, wrapErr("sql.load.scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("sql.load.rows", err)
	}
	return out, nil
}

func (s *SQLStrategy) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName)); err != nil {
		return wrapErr("sql.cleanup", err)
	}
	return nil
}

var _ Strategy = (*SQLStrategy)(nil)
