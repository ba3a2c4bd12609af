package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapdesk/internal/entities"
)

// HandoffRegistry is the full durable contract: what the router consults
// plus what the operator queue screens need. Implemented by the Postgres
// repository and the single-box SQLite one.
type HandoffRegistry interface {
	Get(ctx context.Context, instance, conversationID string) (*entities.HandoffRecord, error)
	Open(ctx context.Context, instance, conversationID, contactName string) error
	Close(ctx context.Context, instance, conversationID string) error
	Finalize(ctx context.Context, id int64, attendedBy string) error
	ListOpen(ctx context.Context, instance string) ([]entities.HandoffRecord, error)
	ListClosed(ctx context.Context, instance string, limit int) ([]entities.HandoffRecord, error)
}

// HandoffRepository is the durable registry of conversations under human
// control. It has to survive restarts: operators rely on the bot staying
// quiet in chats they own.
type HandoffRepository struct {
	db *pgxpool.Pool
}

func NewHandoffRepository(db *pgxpool.Pool) *HandoffRepository {
	return &HandoffRepository{db: db}
}

// Get returns the open record for a conversation, nil when the bot owns it.
func (r *HandoffRepository) Get(ctx context.Context, instance, conversationID string) (*entities.HandoffRecord, error) {
	var h entities.HandoffRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, instance, conversation_id, contact_name, opened_at, closed_at, attended_by
		FROM handoffs WHERE instance = $1 AND conversation_id = $2 AND closed_at IS NULL
	`, instance, conversationID).Scan(&h.ID, &h.Instance, &h.ConversationID, &h.ContactName,
		&h.OpenedAt, &h.ClosedAt, &h.AttendedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Open marks the conversation as human-owned. Re-opening an already open
// conversation is a no-op thanks to the partial unique index.
func (r *HandoffRepository) Open(ctx context.Context, instance, conversationID, contactName string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO handoffs (instance, conversation_id, contact_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (instance, conversation_id) WHERE closed_at IS NULL DO NOTHING
	`, instance, conversationID, contactName)
	return err
}

// Close hands the conversation back to the bot.
func (r *HandoffRepository) Close(ctx context.Context, instance, conversationID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE handoffs SET closed_at = NOW()
		WHERE instance = $1 AND conversation_id = $2 AND closed_at IS NULL
	`, instance, conversationID)
	return err
}

// Finalize closes the conversation recording which operator handled it.
func (r *HandoffRepository) Finalize(ctx context.Context, id int64, attendedBy string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE handoffs SET closed_at = NOW(), attended_by = $1 WHERE id = $2 AND closed_at IS NULL",
		attendedBy, id)
	return err
}

// ListOpen returns the queue an operator sees for one instance.
func (r *HandoffRepository) ListOpen(ctx context.Context, instance string) ([]entities.HandoffRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, instance, conversation_id, contact_name, opened_at, closed_at, attended_by
		FROM handoffs WHERE instance = $1 AND closed_at IS NULL ORDER BY opened_at
	`, instance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// ListClosed returns finished conversations, newest first.
func (r *HandoffRepository) ListClosed(ctx context.Context, instance string, limit int) ([]entities.HandoffRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, instance, conversation_id, contact_name, opened_at, closed_at, attended_by
		FROM handoffs WHERE instance = $1 AND closed_at IS NOT NULL
		ORDER BY closed_at DESC LIMIT $2
	`, instance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
