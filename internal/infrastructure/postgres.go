package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Trigger catalog. ON DELETE CASCADE keeps the tree free of orphaned
	// children when a parent node is removed.
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS triggers (
			id SERIAL PRIMARY KEY,
			instance VARCHAR(100) NOT NULL,
			keyword VARCHAR(100) NOT NULL,
			response_text TEXT NOT NULL,
			menu_label VARCHAR(100) DEFAULT 'Geral',
			category VARCHAR(50) DEFAULT 'Atendimento',
			parent_id INT REFERENCES triggers(id) ON DELETE CASCADE,
			media_ref TEXT,
			media_kind VARCHAR(20) DEFAULT 'texto',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create triggers table: %w", err)
	}
	p.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_triggers_instance ON triggers (instance);")

	// Handoff registry. closed_at IS NULL means the conversation is still
	// owned by a human.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS handoffs (
			id SERIAL PRIMARY KEY,
			instance VARCHAR(100) NOT NULL,
			conversation_id VARCHAR(100) NOT NULL,
			contact_name VARCHAR(255) DEFAULT '',
			opened_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			closed_at TIMESTAMP,
			attended_by VARCHAR(100) DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("create handoffs table: %w", err)
	}
	p.Pool.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_handoffs_open
		ON handoffs (instance, conversation_id) WHERE closed_at IS NULL;`)

	// Conversation history for the operator view and metrics.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_logs (
			id SERIAL PRIMARY KEY,
			instance VARCHAR(100) NOT NULL,
			conversation_id VARCHAR(100) NOT NULL,
			from_me BOOLEAN DEFAULT FALSE,
			kind VARCHAR(20) DEFAULT 'texto',
			content TEXT,
			media_url TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create chat_logs table: %w", err)
	}
	p.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_chat_logs_convo ON chat_logs (instance, conversation_id);")

	// Auto-captured leads.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS contacts (
			id SERIAL PRIMARY KEY,
			instance VARCHAR(100) NOT NULL,
			conversation_id VARCHAR(100) NOT NULL,
			name VARCHAR(255) DEFAULT '',
			tags VARCHAR(255) DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (instance, conversation_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create contacts table: %w", err)
	}

	// Per-tenant switches consulted before any routing.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS instance_settings (
			instance VARCHAR(100) PRIMARY KEY,
			bot_enabled BOOLEAN DEFAULT TRUE,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create instance_settings table: %w", err)
	}

	// Operator accounts for the management API.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS operators (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(100) DEFAULT '',
			role VARCHAR(20) DEFAULT 'operator',
			instance VARCHAR(100) DEFAULT '',
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create operators table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
