package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"zapdesk/internal/entities"
)

// SQLiteHandoffRepository keeps the handoff registry durable on local disk
// when no Postgres is configured (single-box installs). Same contract as
// the Postgres version; only persistence differs.
type SQLiteHandoffRepository struct {
	db *sql.DB
}

func NewSQLiteHandoffRepository(path string) (*SQLiteHandoffRepository, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS handoffs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			contact_name TEXT DEFAULT '',
			opened_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			closed_at TIMESTAMP,
			attended_by TEXT DEFAULT ''
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_handoffs_open
			ON handoffs (instance, conversation_id) WHERE closed_at IS NULL;
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate sqlite handoffs: %w", err)
	}

	return &SQLiteHandoffRepository{db: db}, nil
}

func (r *SQLiteHandoffRepository) Get(ctx context.Context, instance, conversationID string) (*entities.HandoffRecord, error) {
	var h entities.HandoffRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, instance, conversation_id, contact_name, opened_at, closed_at, attended_by
		FROM handoffs WHERE instance = ? AND conversation_id = ? AND closed_at IS NULL
	`, instance, conversationID).Scan(&h.ID, &h.Instance, &h.ConversationID, &h.ContactName,
		&h.OpenedAt, &h.ClosedAt, &h.AttendedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *SQLiteHandoffRepository) Open(ctx context.Context, instance, conversationID, contactName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO handoffs (instance, conversation_id, contact_name)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, instance, conversationID, contactName)
	return err
}

func (r *SQLiteHandoffRepository) Close(ctx context.Context, instance, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE handoffs SET closed_at = CURRENT_TIMESTAMP
		WHERE instance = ? AND conversation_id = ? AND closed_at IS NULL
	`, instance, conversationID)
	return err
}

func (r *SQLiteHandoffRepository) Finalize(ctx context.Context, id int64, attendedBy string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE handoffs SET closed_at = CURRENT_TIMESTAMP, attended_by = ? WHERE id = ? AND closed_at IS NULL",
		attendedBy, id)
	return err
}

func (r *SQLiteHandoffRepository) ListOpen(ctx context.Context, instance string) ([]entities.HandoffRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instance, conversation_id, contact_name, opened_at, closed_at, attended_by
		FROM handoffs WHERE instance = ? AND closed_at IS NULL ORDER BY opened_at
	`, instance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHandoffRows(rows)
}

func (r *SQLiteHandoffRepository) ListClosed(ctx context.Context, instance string, limit int) ([]entities.HandoffRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instance, conversation_id, contact_name, opened_at, closed_at, attended_by
		FROM handoffs WHERE instance = ? AND closed_at IS NOT NULL
		ORDER BY closed_at DESC LIMIT ?
	`, instance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHandoffRows(rows)
}

func scanHandoffRows(rows *sql.Rows) ([]entities.HandoffRecord, error) {
	records := []entities.HandoffRecord{}
	for rows.Next() {
		var h entities.HandoffRecord
		if err := rows.Scan(&h.ID, &h.Instance, &h.ConversationID, &h.ContactName,
			&h.OpenedAt, &h.ClosedAt, &h.AttendedBy); err != nil {
			return nil, err
		}
		records = append(records, h)
	}
	return records, rows.Err()
}

func (r *SQLiteHandoffRepository) Shutdown() error {
	return r.db.Close()
}
