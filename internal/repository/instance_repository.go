package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InstanceRepository holds the per-tenant engine switches. The router asks
// it whether the bot is enabled before doing anything else.
type InstanceRepository struct {
	db *pgxpool.Pool
}

func NewInstanceRepository(db *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// BotEnabled defaults to true for instances never toggled.
func (r *InstanceRepository) BotEnabled(ctx context.Context, instance string) (bool, error) {
	var enabled bool
	err := r.db.QueryRow(ctx,
		"SELECT bot_enabled FROM instance_settings WHERE instance = $1", instance).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func (r *InstanceRepository) SetBotEnabled(ctx context.Context, instance string, enabled bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO instance_settings (instance, bot_enabled, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (instance) DO UPDATE SET bot_enabled = EXCLUDED.bot_enabled, updated_at = NOW()
	`, instance, enabled)
	return err
}
