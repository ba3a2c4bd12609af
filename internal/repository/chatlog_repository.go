package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"zapdesk/internal/entities"
)

// ChatLogRepository persists the conversation history operators read, and
// backs the per-instance metrics endpoint.
type ChatLogRepository struct {
	db *pgxpool.Pool
}

func NewChatLogRepository(db *pgxpool.Pool) *ChatLogRepository {
	return &ChatLogRepository{db: db}
}

func (r *ChatLogRepository) Insert(ctx context.Context, log *entities.ChatLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_logs (instance, conversation_id, from_me, kind, content, media_url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, log.Instance, log.ConversationID, log.FromMe, log.Kind, log.Content, log.MediaURL)
	return err
}

// History returns the last messages of one conversation, oldest first.
func (r *ChatLogRepository) History(ctx context.Context, instance, conversationID string, limit int) ([]entities.ChatLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, instance, conversation_id, from_me, kind, COALESCE(content, ''), COALESCE(media_url, ''), created_at
		FROM (
			SELECT * FROM chat_logs
			WHERE instance = $1 AND conversation_id = $2
			ORDER BY id DESC LIMIT $3
		) recent ORDER BY id
	`, instance, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []entities.ChatLog{}
	for rows.Next() {
		var l entities.ChatLog
		if err := rows.Scan(&l.ID, &l.Instance, &l.ConversationID, &l.FromMe,
			&l.Kind, &l.Content, &l.MediaURL, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Metrics aggregates the dashboard counters for one instance.
type Metrics struct {
	BotMessages   int `json:"bot_messages"`
	TotalContacts int `json:"total_contacts"`
	NewThisMonth  int `json:"new_this_month"`
	OpenHandoffs  int `json:"open_handoffs"`
}

func (r *ChatLogRepository) Metrics(ctx context.Context, instance string) (*Metrics, error) {
	var m Metrics

	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM chat_logs WHERE instance = $1 AND from_me = TRUE",
		instance).Scan(&m.BotMessages)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM contacts WHERE instance = $1", instance).Scan(&m.TotalContacts)
	if err != nil {
		return nil, err
	}

	monthStart := time.Now().AddDate(0, 0, 1-time.Now().Day()).Truncate(24 * time.Hour)
	err = r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM contacts WHERE instance = $1 AND created_at >= $2",
		instance, monthStart).Scan(&m.NewThisMonth)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM handoffs WHERE instance = $1 AND closed_at IS NULL",
		instance).Scan(&m.OpenHandoffs)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
