package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listRecipesByMenuItem = `-- name: ListRecipesByMenuItem :many
SELECT r.id, r.menu_item_id, r.ingredient_id, r.quantity, r.created_at,
       i.name AS ingredient_name, i.unit
FROM recipes r
JOIN ingredients i ON i.id = r.ingredient_id
WHERE r.menu_item_id = $1
ORDER BY i.name
`

type ListRecipesByMenuItemRow struct {
	ID             uuid.UUID      `json:"id"`
	MenuItemID     uuid.UUID      `json:"menu_item_id"`
	IngredientID   uuid.UUID      `json:"ingredient_id"`
	Quantity       pgtype.Numeric `json:"quantity"`
	CreatedAt      time.Time      `json:"created_at"`
	IngredientName string         `json:"ingredient_name"`
	Unit           string         `json:"unit"`
}

func (q *Queries) ListRecipesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]ListRecipesByMenuItemRow, error) {
	rows, err := q.db.Query(ctx, listRecipesByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListRecipesByMenuItemRow{}
	for rows.Next() {
		var i ListRecipesByMenuItemRow
		if err := rows.Scan(
			&i.ID,
			&i.MenuItemID,
			&i.IngredientID,
			&i.Quantity,
			&i.CreatedAt,
			&i.IngredientName,
			&i.Unit,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRecipesForMenuItems = `-- name: ListRecipesForMenuItems :many
SELECT id, menu_item_id, ingredient_id, quantity, created_at
FROM recipes
WHERE menu_item_id = ANY($1::uuid[])
`

func (q *Queries) ListRecipesForMenuItems(ctx context.Context, menuItemIds []uuid.UUID) ([]Recipe, error) {
	rows, err := q.db.Query(ctx, listRecipesForMenuItems, menuItemIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Recipe{}
	for rows.Next() {
		var i Recipe
		if err := rows.Scan(
			&i.ID,
			&i.MenuItemID,
			&i.IngredientID,
			&i.Quantity,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRecipesByMenuItem = `-- name: DeleteRecipesByMenuItem :exec
DELETE FROM recipes WHERE menu_item_id = $1
`

func (q *Queries) DeleteRecipesByMenuItem(ctx context.Context, menuItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteRecipesByMenuItem, menuItemID)
	return err
}

const createRecipe = `-- name: CreateRecipe :one
INSERT INTO recipes (menu_item_id, ingredient_id, quantity)
VALUES ($1, $2, $3)
RETURNING id, menu_item_id, ingredient_id, quantity, created_at
`

type CreateRecipeParams struct {
	MenuItemID   uuid.UUID      `json:"menu_item_id"`
	IngredientID uuid.UUID      `json:"ingredient_id"`
	Quantity     pgtype.Numeric `json:"quantity"`
}

func (q *Queries) CreateRecipe(ctx context.Context, arg CreateRecipeParams) (Recipe, error) {
	row := q.db.QueryRow(ctx, createRecipe, arg.MenuItemID, arg.IngredientID, arg.Quantity)
	var i Recipe
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.IngredientID,
		&i.Quantity,
		&i.CreatedAt,
	)
	return i, err
}
