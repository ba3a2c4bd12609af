package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapdesk/internal/entities"
)

type OperatorRepository struct {
	db *pgxpool.Pool
}

func NewOperatorRepository(db *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Create(ctx context.Context, op *entities.Operator) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO operators (username, password_hash, name, role, instance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, op.Username, op.PasswordHash, op.Name, op.Role, op.Instance).Scan(&op.ID)
}

func (r *OperatorRepository) GetByUsername(ctx context.Context, username string) (*entities.Operator, error) {
	var op entities.Operator
	err := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, name, role, instance, is_active
		FROM operators WHERE username = $1
	`, username).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Name, &op.Role, &op.Instance, &op.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *OperatorRepository) ListByInstance(ctx context.Context, instance string) ([]entities.Operator, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, username, password_hash, name, role, instance, is_active
		FROM operators WHERE instance = $1 ORDER BY id
	`, instance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := []entities.Operator{}
	for rows.Next() {
		var op entities.Operator
		if err := rows.Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Name, &op.Role, &op.Instance, &op.IsActive); err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}

func (r *OperatorRepository) SetActive(ctx context.Context, id int, active bool) error {
	_, err := r.db.Exec(ctx, "UPDATE operators SET is_active = $1 WHERE id = $2", active, id)
	return err
}
