package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapdesk/internal/entities"
)

const triggerColumns = "id, instance, keyword, response_text, menu_label, category, parent_id, COALESCE(media_ref, ''), media_kind, created_at"

// TriggerRepository is the catalog of menu nodes. The engine only reads it;
// writes come from the management API.
type TriggerRepository struct {
	db *pgxpool.Pool
}

func NewTriggerRepository(db *pgxpool.Pool) *TriggerRepository {
	return &TriggerRepository{db: db}
}

func scanTrigger(row pgx.Row) (*entities.TriggerNode, error) {
	var t entities.TriggerNode
	err := row.Scan(&t.ID, &t.Instance, &t.Keyword, &t.ResponseText, &t.MenuLabel,
		&t.Category, &t.ParentID, &t.MediaRef, &t.MediaKind, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // catalog miss is a routing branch, not an error
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindDefault resolves the instance's root welcome node.
func (r *TriggerRepository) FindDefault(ctx context.Context, instance string) (*entities.TriggerNode, error) {
	return scanTrigger(r.db.QueryRow(ctx,
		"SELECT "+triggerColumns+" FROM triggers WHERE instance = $1 AND keyword = 'default' AND parent_id IS NULL",
		instance))
}

// FindByKeyword matches case-insensitively at one tree level. parentID nil
// means the root level.
func (r *TriggerRepository) FindByKeyword(ctx context.Context, instance, keyword string, parentID *int64) (*entities.TriggerNode, error) {
	if parentID != nil {
		return scanTrigger(r.db.QueryRow(ctx,
			"SELECT "+triggerColumns+" FROM triggers WHERE instance = $1 AND LOWER(keyword) = LOWER($2) AND parent_id = $3",
			instance, keyword, *parentID))
	}
	return scanTrigger(r.db.QueryRow(ctx,
		"SELECT "+triggerColumns+" FROM triggers WHERE instance = $1 AND LOWER(keyword) = LOWER($2) AND parent_id IS NULL",
		instance, keyword))
}

func (r *TriggerRepository) FindByID(ctx context.Context, id int64) (*entities.TriggerNode, error) {
	return scanTrigger(r.db.QueryRow(ctx,
		"SELECT "+triggerColumns+" FROM triggers WHERE id = $1", id))
}

// ListChildren returns the submenu under parentID (root menu when nil) in
// creation order. The reserved 'default' node is excluded from root
// listings so the welcome message never offers itself as an option.
func (r *TriggerRepository) ListChildren(ctx context.Context, instance string, parentID *int64) ([]entities.TriggerNode, error) {
	var rows pgx.Rows
	var err error
	if parentID != nil {
		rows, err = r.db.Query(ctx,
			"SELECT "+triggerColumns+" FROM triggers WHERE instance = $1 AND parent_id = $2 ORDER BY id",
			instance, *parentID)
	} else {
		rows, err = r.db.Query(ctx,
			"SELECT "+triggerColumns+" FROM triggers WHERE instance = $1 AND parent_id IS NULL AND keyword != 'default' ORDER BY id",
			instance)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []entities.TriggerNode{}
	for rows.Next() {
		var t entities.TriggerNode
		if err := rows.Scan(&t.ID, &t.Instance, &t.Keyword, &t.ResponseText, &t.MenuLabel,
			&t.Category, &t.ParentID, &t.MediaRef, &t.MediaKind, &t.CreatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, t)
	}
	return nodes, rows.Err()
}

// ListByInstance returns the whole tree for the management screens.
func (r *TriggerRepository) ListByInstance(ctx context.Context, instance string) ([]entities.TriggerNode, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+triggerColumns+" FROM triggers WHERE instance = $1 ORDER BY id", instance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []entities.TriggerNode{}
	for rows.Next() {
		var t entities.TriggerNode
		if err := rows.Scan(&t.ID, &t.Instance, &t.Keyword, &t.ResponseText, &t.MenuLabel,
			&t.Category, &t.ParentID, &t.MediaRef, &t.MediaKind, &t.CreatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, t)
	}
	return nodes, rows.Err()
}

// Upsert creates a node, or replaces the response of an existing
// (instance, keyword, parent) slot so editing a menu entry never duplicates
// it. The 'default' root node goes through the same path.
func (r *TriggerRepository) Upsert(ctx context.Context, t *entities.TriggerNode) error {
	existing, err := r.FindByKeyword(ctx, t.Instance, t.Keyword, t.ParentID)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err = r.db.Exec(ctx, `
			UPDATE triggers SET response_text = $1, menu_label = $2, category = $3, media_ref = $4, media_kind = $5
			WHERE id = $6
		`, t.ResponseText, t.MenuLabel, t.Category, t.MediaRef, t.MediaKind, existing.ID)
		t.ID = existing.ID
		return err
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO triggers (instance, keyword, response_text, menu_label, category, parent_id, media_ref, media_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, t.Instance, t.Keyword, t.ResponseText, t.MenuLabel, t.Category, t.ParentID, t.MediaRef, t.MediaKind).Scan(&t.ID)
}

// Delete removes a node. Children go with it via the FK cascade, so no
// orphaned submenu survives.
func (r *TriggerRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM triggers WHERE id = $1", id)
	return err
}

// CountByInstance backs the plan-limit check on the management side.
func (r *TriggerRepository) CountByInstance(ctx context.Context, instance string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM triggers WHERE instance = $1", instance).Scan(&count)
	return count, err
}
