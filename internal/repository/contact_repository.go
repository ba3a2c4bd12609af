package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"zapdesk/internal/entities"
)

// ContactRepository stores the auto-captured leads.
type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

// Ensure registers the conversation as a lead on first contact. Subsequent
// calls are no-ops.
func (r *ContactRepository) Ensure(ctx context.Context, instance, conversationID, name string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contacts (instance, conversation_id, name, tags)
		VALUES ($1, $2, $3, 'captura_automatica')
		ON CONFLICT (instance, conversation_id) DO NOTHING
	`, instance, conversationID, name)
	return err
}

func (r *ContactRepository) ListByInstance(ctx context.Context, instance string, limit, offset int) ([]entities.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, instance, conversation_id, name, tags, created_at
		FROM contacts WHERE instance = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, instance, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []entities.Contact{}
	for rows.Next() {
		var c entities.Contact
		if err := rows.Scan(&c.ID, &c.Instance, &c.ConversationID, &c.Name, &c.Tags, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) Rename(ctx context.Context, instance, conversationID, name string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE contacts SET name = $1 WHERE instance = $2 AND conversation_id = $3",
		name, instance, conversationID)
	return err
}
