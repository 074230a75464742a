package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, description, base_price_usd, is_active, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...interface{}) error }) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.BasePriceUsd,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listMenuItems = `-- name: ListMenuItems :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE ($1::uuid IS NULL OR category_id = $1)
  AND ($2::boolean IS NULL OR is_active = $2)
ORDER BY name
`

type ListMenuItemsParams struct {
	CategoryID pgtype.UUID `json:"category_id"`
	IsActive   pgtype.Bool `json:"is_active"`
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.CategoryID, arg.IsActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMenuItem = `-- name: GetMenuItem :one
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

const getMenuItemForOrder = `-- name: GetMenuItemForOrder :one
SELECT id, name, base_price_usd FROM menu_items
WHERE id = $1 AND is_active = true
`

type GetMenuItemForOrderRow struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	BasePriceUsd pgtype.Numeric `json:"base_price_usd"`
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (GetMenuItemForOrderRow, error) {
	row := q.db.QueryRow(ctx, getMenuItemForOrder, id)
	var i GetMenuItemForOrderRow
	err := row.Scan(&i.ID, &i.Name, &i.BasePriceUsd)
	return i, err
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (category_id, name, description, base_price_usd)
VALUES ($1, $2, $3, $4)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	CategoryID   uuid.UUID      `json:"category_id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	BasePriceUsd pgtype.Numeric `json:"base_price_usd"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.BasePriceUsd,
	))
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items
SET category_id = $2, name = $3, description = $4, base_price_usd = $5, is_active = $6, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID           uuid.UUID      `json:"id"`
	CategoryID   uuid.UUID      `json:"category_id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	BasePriceUsd pgtype.Numeric `json:"base_price_usd"`
	IsActive     bool           `json:"is_active"`
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.BasePriceUsd,
		arg.IsActive,
	))
}

const softDeleteMenuItem = `-- name: SoftDeleteMenuItem :one
UPDATE menu_items SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteMenuItem, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
